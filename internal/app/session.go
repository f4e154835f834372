package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/moonctl/internal/tokensource"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// ErrNoSession is returned when the store holds no access token.
var ErrNoSession = errors.New("not logged in")

// Session exposes the stored credentials of a connection as an
// oauth2.TokenSource. It never refreshes; that is the client's job on 401.
type Session struct {
	store tokenstore.TokenStore
	now   func() time.Time
}

// Compile-time check to ensure Session implements oauth2.TokenSource
var _ oauth2.TokenSource = (*Session)(nil)

// NewSession creates a Session reading from store.
func NewSession(store tokenstore.TokenStore) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}
	return &Session{store: store, now: time.Now}, nil
}

// Token returns the stored credentials.
func (s *Session) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	return s.token(context.Background())
}

func (s *Session) token(ctx context.Context) (*oauth2.Token, error) {
	creds, err := tokenstore.Load(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, ErrNoSession
	}

	if creds.ExpiresAt.IsZero() {
		if exp, ok := tokensource.ExpiryFromJWT(creds.AccessToken); ok {
			creds.ExpiresAt = exp
		}
	}
	return creds.Token(), nil
}

// SessionStatus summarizes the stored session without revealing tokens.
type SessionStatus struct {
	LoggedIn  bool       `json:"logged_in"`
	Valid     bool       `json:"valid"`
	Renewable bool       `json:"renewable"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ExpiresIn string     `json:"expires_in,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
}

// Status reports whether a session exists and whether its access token is
// still usable. Claims are read from the token without verification.
func (s *Session) Status(ctx context.Context) (SessionStatus, error) {
	token, err := s.token(ctx)
	if errors.Is(err, ErrNoSession) {
		return SessionStatus{}, nil
	}
	if err != nil {
		return SessionStatus{}, err
	}

	status := SessionStatus{
		LoggedIn:  true,
		Valid:     token.Valid(),
		Renewable: token.RefreshToken != "",
	}

	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		status.ExpiresAt = &expiry
		if remaining := expiry.Sub(s.now()); remaining > 0 {
			status.ExpiresIn = remaining.Round(time.Second).String()
		} else {
			status.Valid = false
		}
	}

	if claims, ok := tokensource.ParseClaims(token.AccessToken); ok {
		status.Subject = claims.Subject
		status.Issuer = claims.Issuer
	}

	return status, nil
}
