package garmin

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"missing", "", DefaultBackoff},
		{"seconds", "30", 30 * time.Second},
		{"zero seconds", "0", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past http date", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"garbage", "soon", DefaultBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfter(tt.value, now); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestUpdateFromResponse(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter(0)
	r.now = func() time.Time { return now }

	r.UpdateFromResponse(&http.Response{StatusCode: http.StatusOK, Header: http.Header{}})
	if !r.BlockedUntil().IsZero() {
		t.Fatalf("200 response should not set a back-off")
	}

	h := http.Header{}
	h.Set("Retry-After", "120")
	r.UpdateFromResponse(&http.Response{StatusCode: http.StatusTooManyRequests, Header: h})

	if want := now.Add(2 * time.Minute); !r.BlockedUntil().Equal(want) {
		t.Errorf("BlockedUntil() = %v, want %v", r.BlockedUntil(), want)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	r := NewRateLimiter(0)
	r.blockedUntil = time.Now().Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Wait(ctx); err != context.Canceled {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
	if r.Requests() != 0 {
		t.Errorf("Requests() = %d, want 0 after cancelled wait", r.Requests())
	}
}

func TestWaitMinInterval(t *testing.T) {
	r := NewRateLimiter(20 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("three waits took %v, want at least 40ms", elapsed)
	}
	if r.Requests() != 3 {
		t.Errorf("Requests() = %d, want 3", r.Requests())
	}
}
