package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"hrexport/internal/store"
)

// TokenStore persists the session between runs
type TokenStore interface {
	GetAuth() (*store.Auth, error)
	SaveAuth(*store.Auth) error
	UpdateTokens(accessToken, refreshToken string, expiresAt, refreshExpiresAt time.Time) error
}

// ProfileLookup resolves the signed-in user's display name
type ProfileLookup func(ctx context.Context, ts oauth2.TokenSource) (string, error)

// Session is the Garmin Connect login state. Callers check IsAuthenticated
// and take the Authenticate path explicitly when it reports false.
type Session struct {
	endpoints   Endpoints
	tokens      TokenStore
	lookup      ProfileLookup
	logger      *slog.Logger
	ts          *TokenSource
	displayName string
}

// NewSession creates a session, resuming any session kept in tokens
func NewSession(ep Endpoints, tokens TokenStore, lookup ProfileLookup, logger *slog.Logger) (*Session, error) {
	s := &Session{
		endpoints: ep,
		tokens:    tokens,
		lookup:    lookup,
		logger:    logger,
	}

	stored, err := tokens.GetAuth()
	if errors.Is(err, store.ErrNoAuth) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading stored session: %w", err)
	}

	s.resume(stored)
	return s, nil
}

func (s *Session) resume(a *store.Auth) {
	if a.OAuth1Token == "" || a.OAuth1Secret == "" {
		s.logger.Debug("stored session has no OAuth1 token")
		return
	}
	o1 := OAuth1Token{Token: a.OAuth1Token, Secret: a.OAuth1Secret, MFAToken: a.MFAToken}
	token := &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       a.ExpiresAt,
	}
	s.ts = NewTokenSource(s.endpoints, o1, token, s.persistRefresh)
	s.displayName = a.DisplayName
}

func (s *Session) persistRefresh(t *oauth2.Token) error {
	s.logger.Debug("renewed Garmin token", "expires_at", t.Expiry)
	return s.tokens.UpdateTokens(t.AccessToken, t.RefreshToken, t.Expiry, RefreshExpiry(t))
}

// IsAuthenticated reports whether a usable token can be produced without
// asking for credentials. An expiring access token is renewed here.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	if s.ts == nil || s.displayName == "" {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	if _, err := s.ts.Token(); err != nil {
		s.logger.Debug("stored session is not usable", "error", err)
		return false
	}
	return true
}

// Authenticate signs in with creds, resolves the display name and persists
// the new session, replacing any stored one.
func (s *Session) Authenticate(ctx context.Context, creds Credentials) error {
	grant, err := Login(ctx, s.endpoints, creds)
	if err != nil {
		return err
	}

	// Nothing is stored until the profile resolves, so renewals during the
	// lookup are not persisted
	ts := NewTokenSource(s.endpoints, grant.OAuth1, grant.OAuth2, nil)
	displayName, err := s.lookup(ctx, ts)
	if err != nil {
		return fmt.Errorf("looking up profile: %w", err)
	}

	current := ts.Current()
	a := &store.Auth{
		DisplayName:      displayName,
		OAuth1Token:      grant.OAuth1.Token,
		OAuth1Secret:     grant.OAuth1.Secret,
		MFAToken:         grant.OAuth1.MFAToken,
		AccessToken:      current.AccessToken,
		RefreshToken:     current.RefreshToken,
		ExpiresAt:        current.Expiry,
		RefreshExpiresAt: RefreshExpiry(current),
	}
	if err := s.tokens.SaveAuth(a); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	ts.setPersist(s.persistRefresh)
	s.ts = ts
	s.displayName = displayName
	s.logger.Info("signed in to Garmin Connect", "display_name", displayName)
	return nil
}

// TokenSource returns the session's token source
func (s *Session) TokenSource() (oauth2.TokenSource, error) {
	if s.ts == nil {
		return nil, ErrNotAuthenticated
	}
	return s.ts, nil
}

// DisplayName returns the Connect display name used in per-user URLs
func (s *Session) DisplayName() string {
	return s.displayName
}
