package tokenstore

import (
	"context"
	"fmt"
	"os"
	"time"
)

// EnvStore provides read-only access to a static token (typically a Moon API
// key) stored in an environment variable. It never holds a refresh token, so
// a 401 from the server ends the session.
type EnvStore struct {
	envKey string
}

// Compile-time check to ensure EnvStore implements TokenStore
var _ TokenStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvStore{
		envKey: envKey,
	}, nil
}

// AccessToken returns the token from the environment variable.
func (e *EnvStore) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return os.Getenv(e.envKey), nil
}

// RefreshToken always returns "".
func (e *EnvStore) RefreshToken(ctx context.Context) (string, error) {
	return "", ctx.Err()
}

// ExpiresAt always returns the zero time.
func (e *EnvStore) ExpiresAt(ctx context.Context) (time.Time, error) {
	return time.Time{}, ctx.Err()
}

// SetTokens is not supported for environment variables.
func (e *EnvStore) SetTokens(ctx context.Context, _, _ string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable %s: %w", e.envKey, ErrReadOnly)
}

// ClearTokens is not supported for environment variables.
func (e *EnvStore) ClearTokens(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable %s: %w", e.envKey, ErrReadOnly)
}
