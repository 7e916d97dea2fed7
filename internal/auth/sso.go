package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mdobak/go-xerrors"
	"golang.org/x/oauth2"

	"hrexport/internal/garmin"
)

var (
	csrfRe   = regexp.MustCompile(`name="_csrf"\s+value="(.+?)"`)
	titleRe  = regexp.MustCompile(`<title>(.+?)</title>`)
	ticketRe = regexp.MustCompile(`embed\?ticket=([^"]+)"`)
)

// tokenResponse is the body of the OAuth1 → OAuth2 exchange
type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// Login signs in through Garmin SSO, trades the service ticket for an
// OAuth1 token and exchanges that for the first OAuth2 token.
func Login(ctx context.Context, ep Endpoints, creds Credentials) (*Grant, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: ep.timeout()}

	ticket, err := signIn(ctx, client, ep, creds)
	if err != nil {
		return nil, err
	}

	o1, err := preauthorize(ctx, ep, ticket)
	if err != nil {
		return nil, err
	}

	o2, err := Exchange(ctx, ep, o1)
	if err != nil {
		return nil, err
	}
	return &Grant{OAuth1: o1, OAuth2: o2}, nil
}

func signIn(ctx context.Context, client *http.Client, ep Endpoints, creds Credentials) (string, error) {
	embedURL := ep.SSOBase + EmbedPath

	// The embed page sets the session cookies the sign-in form expects
	embedParams := url.Values{}
	embedParams.Set("id", "gauth-widget")
	embedParams.Set("embedWidget", "true")
	embedParams.Set("gauthHost", ep.SSOBase+"/sso")
	if _, err := fetch(ctx, client, http.MethodGet, embedURL+"?"+embedParams.Encode(), nil, "", garmin.UserAgent); err != nil {
		return "", fmt.Errorf("loading SSO embed page: %w", err)
	}

	signInParams := url.Values{}
	signInParams.Set("id", "gauth-widget")
	signInParams.Set("embedWidget", "true")
	signInParams.Set("gauthHost", embedURL)
	signInParams.Set("service", embedURL)
	signInParams.Set("source", embedURL)
	signInParams.Set("redirectAfterAccountLoginUrl", embedURL)
	signInParams.Set("redirectAfterAccountCreationUrl", embedURL)
	signInURL := ep.SSOBase + SignInPath + "?" + signInParams.Encode()

	page, err := fetch(ctx, client, http.MethodGet, signInURL, nil, embedURL, garmin.UserAgent)
	if err != nil {
		return "", fmt.Errorf("loading SSO sign-in page: %w", err)
	}
	csrf := firstMatch(csrfRe, page)
	if csrf == "" {
		return "", fmt.Errorf("sign-in page has no CSRF token")
	}

	form := url.Values{}
	form.Set("username", creds.Email)
	form.Set("password", creds.Password)
	form.Set("embed", "true")
	form.Set("_csrf", csrf)

	page, err = fetch(ctx, client, http.MethodPost, signInURL, form, signInURL, garmin.UserAgent)
	if rejected(err) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("submitting credentials: %w", err)
	}

	title := firstMatch(titleRe, page)
	switch {
	case title == "Success":
	case strings.Contains(title, "MFA"):
		return "", ErrMFARequired
	default:
		return "", ErrInvalidCredentials
	}

	ticket := firstMatch(ticketRe, page)
	if ticket == "" {
		return "", fmt.Errorf("sign-in succeeded but no service ticket was returned")
	}
	return ticket, nil
}

// preauthorize trades an SSO service ticket for an OAuth1 token. The
// request is signed with the consumer only.
func preauthorize(ctx context.Context, ep Endpoints, ticket string) (OAuth1Token, error) {
	params := url.Values{}
	params.Set("ticket", ticket)
	params.Set("login-url", ep.SSOBase+EmbedPath)
	params.Set("accepts-mfa-tokens", "true")

	client := ep.signedClient(ctx, OAuth1Token{})
	body, err := fetch(ctx, client, http.MethodGet, ep.APIBase+PreauthorizedPath+"?"+params.Encode(), nil, "", garmin.MobileUserAgent)
	if rejected(err) {
		return OAuth1Token{}, ErrInvalidCredentials
	}
	if err != nil {
		return OAuth1Token{}, fmt.Errorf("getting OAuth1 token: %w", err)
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return OAuth1Token{}, fmt.Errorf("decoding OAuth1 token: %w", err)
	}
	tok := OAuth1Token{
		Token:    values.Get("oauth_token"),
		Secret:   values.Get("oauth_token_secret"),
		MFAToken: values.Get("mfa_token"),
	}
	if tok.Token == "" || tok.Secret == "" {
		return OAuth1Token{}, fmt.Errorf("preauthorized response has no OAuth1 token")
	}
	return tok, nil
}

// Exchange trades an OAuth1 token for a fresh OAuth2 token. It is used both
// at sign-in and to renew an expiring access token.
func Exchange(ctx context.Context, ep Endpoints, o1 OAuth1Token) (*oauth2.Token, error) {
	form := url.Values{}
	if o1.MFAToken != "" {
		form.Set("mfa_token", o1.MFAToken)
	}

	client := ep.signedClient(ctx, o1)
	body, err := fetch(ctx, client, http.MethodPost, ep.APIBase+ExchangePath, form, "", garmin.MobileUserAgent)
	if rejected(err) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("exchanging OAuth1 token: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal([]byte(body), &tr); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access token")
	}

	return newToken(tr, time.Now())
}

// newToken builds an oauth2.Token from an exchange response. When the
// response omits expires_in the access token's exp claim is used.
func newToken(tr tokenResponse, now time.Time) (*oauth2.Token, error) {
	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	token := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tokenType,
	}

	if tr.ExpiresIn > 0 {
		token.Expiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	} else {
		exp, err := jwtExpiry(tr.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("determining token expiry: %w", err)
		}
		token.Expiry = exp
	}

	if tr.RefreshTokenExpiresIn > 0 {
		token = token.WithExtra(map[string]interface{}{
			refreshExpiryKey: now.Add(time.Duration(tr.RefreshTokenExpiresIn) * time.Second),
		})
	}
	return token, nil
}

// jwtExpiry reads the exp claim without verifying the signature; the token
// came straight from the exchange endpoint over TLS.
func jwtExpiry(accessToken string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return exp.Time, nil
}

// statusError is a non-200 response from an SSO or OAuth endpoint
type statusError struct {
	Path       string
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.Path)
}

// rejected reports whether err is a 401 or 403 response
func rejected(err error) bool {
	var se *statusError
	return errors.As(err, &se) &&
		(se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}

func fetch(ctx context.Context, client *http.Client, method, target string, form url.Values, referer, userAgent string) (string, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", xerrors.New(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", xerrors.New(err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", xerrors.New(&statusError{Path: req.URL.Path, StatusCode: resp.StatusCode})
	}
	return string(data), nil
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
