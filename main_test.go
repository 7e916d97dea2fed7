package main

import (
	"strings"
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "default today", args: nil, want: "2024-03-15"},
		{name: "iso date", args: []string{"2024-03-01"}, want: "2024-03-01"},
		{name: "us date", args: []string{"03/02/2024"}, want: "2024-03-02"},
		{name: "long form", args: []string{"March 3, 2024"}, want: "2024-03-03"},
		{name: "garbage", args: []string{"not-a-date"}, wantErr: true},
		{name: "too many", args: []string{"2024-03-01", "2024-03-02"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDay(tt.args, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDay(%v) = %v, want error", tt.args, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDay(%v) error: %v", tt.args, err)
			}
			if s := got.Format("2006-01-02"); s != tt.want {
				t.Errorf("parseDay(%v) = %s, want %s", tt.args, s, tt.want)
			}
		})
	}
}

func TestParseDayErrorNamesInput(t *testing.T) {
	_, err := parseDay([]string{"32/13/2024x"}, time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "32/13/2024x") {
		t.Errorf("error %q does not name the input", got)
	}
}
