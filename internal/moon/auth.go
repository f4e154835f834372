package moon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/httpclient"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// CurrentUser is the body of GET /auth:me.
type CurrentUser struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	CanWrite bool   `json:"can_write,omitempty"`
}

// AuthService manages the session of the connection.
type AuthService struct {
	requester     Requester
	authenticator Authenticator
}

// Login exchanges username and password for a session and stores it.
func (s *AuthService) Login(ctx context.Context, username, password string) (tokenstore.Credentials, error) {
	if username == "" || password == "" {
		return tokenstore.Credentials{}, apierror.Invalid("username and password are required")
	}
	if s.authenticator == nil {
		return tokenstore.Credentials{}, apierror.Invalid("password login is not configured")
	}

	creds, err := s.authenticator.Login(ctx, username, password)
	if err != nil {
		return tokenstore.Credentials{}, apierror.Normalize(err)
	}

	if err := tokenstore.Save(ctx, s.requester.Store(), creds); err != nil {
		return tokenstore.Credentials{}, apierror.Normalize(fmt.Errorf("failed to store credentials: %w", err))
	}

	slog.InfoContext(ctx, "logged in", "username", username, "expires_at", creds.ExpiresAt)
	return creds, nil
}

// Logout revokes the refresh token on the server and clears the local
// session. The local session is cleared even if the server call fails.
func (s *AuthService) Logout(ctx context.Context) error {
	store := s.requester.Store()

	var serverErr error
	refreshToken, err := store.RefreshToken(ctx)
	if err != nil {
		serverErr = fmt.Errorf("failed to read refresh token: %w", err)
	} else if refreshToken != "" {
		_, serverErr = s.requester.Post(ctx, "/auth:logout", map[string]string{"refresh_token": refreshToken})
		if serverErr != nil {
			slog.WarnContext(ctx, "server logout failed, clearing local session anyway", "error", serverErr)
		}
	}

	clearErr := store.ClearTokens(ctx)
	if errors.Is(clearErr, tokenstore.ErrReadOnly) {
		clearErr = nil
	}
	if clearErr == nil {
		return serverErr
	}

	clearErr = apierror.Normalize(fmt.Errorf("failed to clear credentials: %w", clearErr))
	if serverErr == nil {
		return clearErr
	}
	return errors.Join(serverErr, clearErr)
}

// Me returns the user the current session belongs to.
func (s *AuthService) Me(ctx context.Context) (CurrentUser, error) {
	return httpclient.JSON[CurrentUser](s.requester.Get(ctx, "/auth:me"))
}
