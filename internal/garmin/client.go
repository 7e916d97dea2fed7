package garmin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mdobak/go-xerrors"
	"golang.org/x/oauth2"
)

// UserAgent is sent with every API and SSO request; Connect rejects unknown
// clients
const UserAgent = "GCM-iOS-5.7.2.1"

// MobileUserAgent is sent to the OAuth service, which only serves the
// Connect mobile app
const MobileUserAgent = "com.garmin.android.apps.connectmobile"

// DateLayout is the calendar-date format used in Connect URLs and file names
const DateLayout = "2006-01-02"

// Connect API paths
const (
	ProfilePath     = "/userprofile-service/socialProfile"
	HeartRatePath   = "/wellness-service/wellness/dailyHeartRate"
	HRVPath         = "/hrv-service/hrv"
	StressPath      = "/wellness-service/wellness/dailyStress"
	SleepPath       = "/wellness-service/wellness/dailySleepData"
	DefaultInterval = 250 * time.Millisecond
)

// APIURL returns the Connect API base URL for a Garmin domain
func APIURL(domain string) string {
	return "https://connectapi." + domain
}

// Client is a Garmin Connect API client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewClient creates a client that authenticates every request through
// tokenSource. A zero timeout leaves the http.Client without one.
func NewClient(baseURL string, tokenSource oauth2.TokenSource, timeout time.Duration) *Client {
	httpClient := oauth2.NewClient(context.Background(), tokenSource)
	httpClient.Timeout = timeout
	return &Client{
		baseURL:     baseURL,
		httpClient:  httpClient,
		rateLimiter: NewRateLimiter(DefaultInterval),
	}
}

// Profile fetches the signed-in user's social profile
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	raw, err := c.getJSON(ctx, ProfilePath, nil)
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if p.DisplayName == "" {
		return nil, fmt.Errorf("profile has no display name")
	}
	return &p, nil
}

// DailyHeartRate fetches the day's heart-rate timeline for a user
func (c *Client) DailyHeartRate(ctx context.Context, displayName string, day time.Time) (*DailyHeartRate, error) {
	params := url.Values{}
	params.Set("date", day.Format(DateLayout))

	raw, err := c.getJSON(ctx, HeartRatePath+"/"+url.PathEscape(displayName), params)
	if err != nil {
		return nil, err
	}

	hr := DailyHeartRate{Raw: raw}
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &hr); err != nil {
			return nil, fmt.Errorf("decoding heart rate: %w", err)
		}
	}
	return &hr, nil
}

// HRV fetches the day's heart-rate-variability summary
func (c *Client) HRV(ctx context.Context, day time.Time) (json.RawMessage, error) {
	return c.getJSON(ctx, HRVPath+"/"+day.Format(DateLayout), nil)
}

// DailyStress fetches the day's stress timeline
func (c *Client) DailyStress(ctx context.Context, day time.Time) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("date", day.Format(DateLayout))
	return c.getJSON(ctx, StressPath+"/"+day.Format(DateLayout), params)
}

// DailySleep fetches the sleep record ending on day. bufferMinutes widens
// the window Connect searches for sleep around the day's boundaries.
func (c *Client) DailySleep(ctx context.Context, displayName string, day time.Time, bufferMinutes int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("date", day.Format(DateLayout))
	params.Set("nonSleepBufferMinutes", strconv.Itoa(bufferMinutes))
	return c.getJSON(ctx, SleepPath+"/"+url.PathEscape(displayName), params)
}

// Requests returns how many requests the client has sent
func (c *Client) Requests() int {
	return c.rateLimiter.Requests()
}

// getJSON performs a paced GET and returns the body. Empty bodies and
// 204 responses come back as JSON null.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.New(err)
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromResponse(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.New(fmt.Errorf("reading %s: %w", path, err))
	}

	if resp.StatusCode == http.StatusNoContent {
		return json.RawMessage("null"), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.New(&APIError{Path: path, StatusCode: resp.StatusCode, Body: string(body)})
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, xerrors.New(fmt.Errorf("invalid JSON from %s", path))
	}
	return json.RawMessage(body), nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
