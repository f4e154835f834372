package tokenstore

import (
	"context"
	"errors"
	"time"
)

// ErrReadOnly is returned by stores that cannot persist credentials.
var ErrReadOnly = errors.New("token storage is read-only")

// TokenStore reads and writes the credentials of a single connection.
//
// Getters return the zero value when nothing is stored; an error is only
// returned when the backend itself fails. Implementations are safe for
// concurrent use.
type TokenStore interface {
	// AccessToken returns the stored access token or "".
	AccessToken(ctx context.Context) (string, error)

	// RefreshToken returns the stored refresh token or "".
	RefreshToken(ctx context.Context) (string, error)

	// ExpiresAt returns the access token expiry, zero when unknown.
	ExpiresAt(ctx context.Context) (time.Time, error)

	// SetTokens replaces all stored credentials.
	SetTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error

	// ClearTokens removes all stored credentials.
	ClearTokens(ctx context.Context) error
}

// Load reads all credentials from s in one call.
func Load(ctx context.Context, s TokenStore) (Credentials, error) {
	var (
		creds Credentials
		err   error
	)
	if creds.AccessToken, err = s.AccessToken(ctx); err != nil {
		return Credentials{}, err
	}
	if creds.RefreshToken, err = s.RefreshToken(ctx); err != nil {
		return Credentials{}, err
	}
	if creds.ExpiresAt, err = s.ExpiresAt(ctx); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Save writes creds to s. Empty credentials clear the store.
func Save(ctx context.Context, s TokenStore, creds Credentials) error {
	if creds.IsZero() {
		return s.ClearTokens(ctx)
	}
	return s.SetTokens(ctx, creds.AccessToken, creds.RefreshToken, creds.ExpiresAt)
}
