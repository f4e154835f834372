package tokensource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// Endpoint paths relative to the connection base URL.
const (
	LoginPath   = "/auth:login"
	RefreshPath = "/auth:refresh"
)

// DefaultTimeout bounds a single token request.
const DefaultTimeout = 30 * time.Second

// Option configures a Source.
type Option func(*sourceConfig)

// sourceConfig holds configuration for New.
type sourceConfig struct {
	baseTransport http.RoundTripper
	timeout       time.Duration
	now           func() time.Time
}

// WithTransport sets a custom base transport for token requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *sourceConfig) {
		c.baseTransport = transport
	}
}

// WithTimeout bounds each token request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *sourceConfig) {
		c.timeout = timeout
	}
}

// WithClock overrides the clock used to turn expires_in into an absolute expiry.
func WithClock(now func() time.Time) Option {
	return func(c *sourceConfig) {
		c.now = now
	}
}

// Source exchanges user credentials or refresh tokens for new credentials.
type Source struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// New creates a Source for the Moon API at baseURL.
func New(baseURL string, opts ...Option) (*Source, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	cfg := &sourceConfig{
		baseTransport: http.DefaultTransport,
		timeout:       DefaultTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Source{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.baseTransport,
		},
		now: cfg.now,
	}, nil
}

// Login exchanges a username and password for credentials.
func (s *Source) Login(ctx context.Context, username, password string) (tokenstore.Credentials, error) {
	if username == "" || password == "" {
		return tokenstore.Credentials{}, apierror.Invalid("username and password are required")
	}

	body, err := s.post(ctx, LoginPath, map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return tokenstore.Credentials{}, err
	}

	return s.parseTokenResponse(body, "")
}

// Refresh exchanges a refresh token for new credentials. If the server does
// not rotate the refresh token, the given one is kept.
func (s *Source) Refresh(ctx context.Context, refreshToken string) (tokenstore.Credentials, error) {
	if refreshToken == "" {
		return tokenstore.Credentials{}, &apierror.Error{
			Code:    apierror.CodeSessionExpired,
			Message: "no refresh token available",
		}
	}

	body, err := s.post(ctx, RefreshPath, map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return tokenstore.Credentials{}, err
	}

	return s.parseTokenResponse(body, refreshToken)
}

// post sends a JSON token request and returns the body of a 2xx response.
// Failures are returned as *apierror.Error.
func (s *Source) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, apierror.Normalize(fmt.Errorf("marshaling token request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, apierror.Invalid("building token request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apierror.FromTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.FromTransportError(fmt.Errorf("reading token response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierror.FromResponse(resp.StatusCode, body)
	}

	return body, nil
}

// parseTokenResponse reads credentials from a login or refresh response.
// Both snake_case and camelCase field names are accepted.
func (s *Source) parseTokenResponse(body []byte, previousRefreshToken string) (tokenstore.Credentials, error) {
	if !gjson.ValidBytes(body) {
		return tokenstore.Credentials{}, &apierror.Error{
			Code:    apierror.CodeUnknown,
			Message: "token response is not valid JSON",
			Details: string(body),
		}
	}
	res := gjson.ParseBytes(body)

	creds := tokenstore.Credentials{
		AccessToken:  firstString(res, "access_token", "accessToken"),
		RefreshToken: firstString(res, "refresh_token", "refreshToken"),
	}
	if creds.AccessToken == "" {
		return tokenstore.Credentials{}, &apierror.Error{
			Code:    apierror.CodeUnknown,
			Message: "token response is missing access_token",
			Details: json.RawMessage(body),
		}
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = previousRefreshToken
	}

	creds.ExpiresAt = s.expiry(res, creds.AccessToken)
	return creds, nil
}

// expiry resolves the absolute expiry from expires_in, expires_at or the JWT exp claim.
func (s *Source) expiry(res gjson.Result, accessToken string) time.Time {
	if in := first(res, "expires_in", "expiresIn"); in.Type == gjson.Number && in.Int() > 0 {
		return s.now().Add(time.Duration(in.Int()) * time.Second)
	}

	if at := first(res, "expires_at", "expiresAt"); at.Exists() {
		if t, ok := parseTimestamp(at); ok {
			return t
		}
	}

	if exp, ok := ExpiryFromJWT(accessToken); ok {
		return exp
	}

	return time.Time{}
}

// parseTimestamp accepts RFC 3339 strings and Unix timestamps in seconds or milliseconds.
func parseTimestamp(v gjson.Result) (time.Time, bool) {
	switch v.Type {
	case gjson.String:
		t, err := time.Parse(time.RFC3339, v.Str)
		return t, err == nil
	case gjson.Number:
		n := v.Int()
		if n <= 0 {
			return time.Time{}, false
		}
		// Values beyond year 33658 in seconds are milliseconds
		if n > 1e12 {
			return time.UnixMilli(n), true
		}
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}

func first(res gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func firstString(res gjson.Result, paths ...string) string {
	if v := first(res, paths...); v.Type == gjson.String {
		return v.Str
	}
	return ""
}
