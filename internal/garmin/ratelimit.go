package garmin

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DefaultBackoff is used when a 429 carries no usable Retry-After header
const DefaultBackoff = 60 * time.Second

// RateLimiter paces requests to Connect. Connect publishes no quota headers,
// so pacing is a minimum interval between requests plus whatever back-off
// the last 429 response asked for.
type RateLimiter struct {
	mu sync.Mutex

	// Minimum interval between requests
	minInterval time.Duration
	lastRequest time.Time

	// Set from Retry-After on 429 responses
	blockedUntil time.Time

	requests int
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter with the given minimum interval
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Wait blocks until a request can be made without hammering the API
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	var waitTime time.Duration
	if !r.lastRequest.IsZero() {
		if elapsed := now.Sub(r.lastRequest); elapsed < r.minInterval {
			waitTime = r.minInterval - elapsed
		}
	}
	if until := r.blockedUntil.Sub(now); until > waitTime {
		waitTime = until
	}

	if waitTime > 0 {
		r.mu.Unlock()
		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.mu.Lock()
			return ctx.Err()
		}
		r.mu.Lock()
	}

	r.requests++
	r.lastRequest = r.now()
	return nil
}

// UpdateFromResponse records a back-off when Connect answers 429
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp.StatusCode != http.StatusTooManyRequests {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.blockedUntil = now.Add(retryAfter(resp.Header.Get("Retry-After"), now))
}

// Requests returns how many requests have been let through
func (r *RateLimiter) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}

// BlockedUntil returns the end of the current back-off, zero if none was set
func (r *RateLimiter) BlockedUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blockedUntil
}

// retryAfter parses a Retry-After value given as seconds or an HTTP date
func retryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return DefaultBackoff
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return DefaultBackoff
}
