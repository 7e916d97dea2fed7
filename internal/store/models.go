package store

import "time"

// Auth represents the cached Garmin Connect session: the long-lived OAuth1
// token from sign-in and the OAuth2 token last exchanged for it
type Auth struct {
	DisplayName      string    `db:"display_name"`
	OAuth1Token      string    `db:"oauth1_token"`
	OAuth1Secret     string    `db:"oauth1_secret"`
	MFAToken         string    `db:"mfa_token"`
	AccessToken      string    `db:"access_token"`
	RefreshToken     string    `db:"refresh_token"`
	ExpiresAt        time.Time `db:"expires_at"`
	RefreshExpiresAt time.Time `db:"refresh_expires_at"` // zero when unknown
}

// Run is one export invocation
type Run struct {
	RunID      string    `db:"run_id"`
	Day        string    `db:"day"` // YYYY-MM-DD
	Samples    int       `db:"samples"`
	Classified int       `db:"classified"` // samples with a value
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"` // zero until the run completes
}

// Export is a file written by a run
type Export struct {
	RunID string `db:"run_id"`
	Day   string `db:"day"`
	Kind  string `db:"kind"` // "heart_rate", "csv", "zones", "hrv", "stress", "sleep", "metrics"
	Path  string `db:"path"`
	Bytes int64  `db:"bytes"`
}
