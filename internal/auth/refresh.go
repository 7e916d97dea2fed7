package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// refreshBuffer is how long before expiry an access token is treated as stale
const refreshBuffer = 60 * time.Second

// TokenSource hands out Connect access tokens. Shortly before an access
// token expires it runs the OAuth1 exchange again and passes the new token
// to persist.
type TokenSource struct {
	mu      sync.Mutex
	ep      Endpoints
	oauth1  OAuth1Token
	token   *oauth2.Token
	persist func(*oauth2.Token) error
	now     func() time.Time
}

// NewTokenSource creates a TokenSource renewing token through o1. A nil
// token is exchanged on first use.
func NewTokenSource(ep Endpoints, o1 OAuth1Token, token *oauth2.Token, persist func(*oauth2.Token) error) *TokenSource {
	return &TokenSource{
		ep:      ep,
		oauth1:  o1,
		token:   token,
		persist: persist,
		now:     time.Now,
	}
}

// Token returns a usable access token, renewing it when stale
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.staleLocked() {
		return ts.token, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ts.ep.timeout())
	defer cancel()

	fresh, err := Exchange(ctx, ts.ep, ts.oauth1)
	if err != nil {
		return nil, err
	}
	if ts.persist != nil {
		if err := ts.persist(fresh); err != nil {
			return nil, fmt.Errorf("saving renewed token: %w", err)
		}
	}

	ts.token = fresh
	return fresh, nil
}

func (ts *TokenSource) staleLocked() bool {
	return ts.token == nil || ts.token.Expiry.Sub(ts.now()) <= refreshBuffer
}

func (ts *TokenSource) setPersist(persist func(*oauth2.Token) error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.persist = persist
}

// Stale reports whether the next Token call will renew
func (ts *TokenSource) Stale() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.staleLocked()
}

// Current returns the held token without renewing
func (ts *TokenSource) Current() *oauth2.Token {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.token
}
