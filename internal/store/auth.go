package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNoAuth is returned when no authentication is stored
var ErrNoAuth = errors.New("no authentication stored")

// GetAuth retrieves the stored session
func (db *DB) GetAuth() (*Auth, error) {
	row := db.QueryRow(`
		SELECT display_name, oauth1_token, oauth1_secret, mfa_token,
			access_token, refresh_token, expires_at, refresh_expires_at
		FROM auth
		WHERE id = 1
	`)

	var auth Auth
	var expiresAt int64
	var refreshExpiresAt sql.NullInt64
	err := row.Scan(&auth.DisplayName, &auth.OAuth1Token, &auth.OAuth1Secret, &auth.MFAToken,
		&auth.AccessToken, &auth.RefreshToken, &expiresAt, &refreshExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoAuth
	}
	if err != nil {
		return nil, err
	}

	auth.ExpiresAt = time.Unix(expiresAt, 0)
	if refreshExpiresAt.Valid {
		auth.RefreshExpiresAt = time.Unix(refreshExpiresAt.Int64, 0)
	}
	return &auth, nil
}

// SaveAuth stores or updates the session
func (db *DB) SaveAuth(auth *Auth) error {
	_, err := db.Exec(`
		INSERT INTO auth (id, display_name, oauth1_token, oauth1_secret, mfa_token,
			access_token, refresh_token, expires_at, refresh_expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			oauth1_token = excluded.oauth1_token,
			oauth1_secret = excluded.oauth1_secret,
			mfa_token = excluded.mfa_token,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			refresh_expires_at = excluded.refresh_expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, auth.DisplayName, auth.OAuth1Token, auth.OAuth1Secret, auth.MFAToken, auth.AccessToken, auth.RefreshToken, auth.ExpiresAt.Unix(), nullUnix(auth.RefreshExpiresAt))
	return err
}

// UpdateTokens stores a newly exchanged OAuth2 token. A zero
// refreshExpiresAt keeps the stored refresh expiry.
func (db *DB) UpdateTokens(accessToken, refreshToken string, expiresAt, refreshExpiresAt time.Time) error {
	result, err := db.Exec(`
		UPDATE auth
		SET access_token = ?, refresh_token = ?, expires_at = ?,
			refresh_expires_at = COALESCE(?, refresh_expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, accessToken, refreshToken, expiresAt.Unix(), nullUnix(refreshExpiresAt))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNoAuth
	}
	return nil
}

// ClearAuth removes the stored session
func (db *DB) ClearAuth() error {
	_, err := db.Exec(`DELETE FROM auth WHERE id = 1`)
	return err
}

func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
