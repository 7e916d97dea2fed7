package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mdobak/go-xerrors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "warn"})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestErrorWithStackTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "info", Format: "json"})

	logger.Error("export failed", slog.Any("error", xerrors.New(errors.New("boom"))))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}

	group, ok := entry["error"].(map[string]any)
	if !ok {
		t.Fatalf("error attr should be a group, got %T", entry["error"])
	}
	if group["msg"] != "boom" {
		t.Errorf("error.msg = %v, want boom", group["msg"])
	}
	if _, ok := group["trace"]; !ok {
		t.Error("error.trace missing for xerrors error")
	}
}

func TestPlainErrorHasNoTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Format: "json"})

	logger.Error("plain", slog.Any("error", errors.New("flat")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	group := entry["error"].(map[string]any)
	if _, ok := group["trace"]; ok {
		t.Error("plain errors should not carry a trace")
	}
}

func openExport() error {
	return xerrors.New(errors.New("disk full"))
}

func TestTraceStartsWhereErrorWasCreated(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Format: "json"})

	err := fmt.Errorf("writing export: %w", openExport())
	logger.Error("export failed", slog.Any("error", err))

	var entry struct {
		Error struct {
			Msg   string       `json:"msg"`
			Trace []stackFrame `json:"trace"`
		} `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry.Error.Msg != "writing export: disk full" {
		t.Errorf("error.msg = %q", entry.Error.Msg)
	}
	if len(entry.Error.Trace) == 0 {
		t.Fatal("wrapped xerrors error lost its trace")
	}
	if got := entry.Error.Trace[0].Func; got != "logging.openExport" {
		t.Errorf("first frame = %q, want logging.openExport", got)
	}
}
