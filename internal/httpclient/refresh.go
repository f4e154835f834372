package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/florianilch/moonctl/internal/apierror"
)

// refreshFlightKey identifies the single refresh cycle of a Client.
const refreshFlightKey = "refresh"

// refresh runs or joins the refresh cycle on behalf of a request that was
// rejected while carrying staleToken.
//
// The network call runs detached from ctx so that a caller giving up does not
// fail the other requests waiting on the same cycle. ctx still bounds how long
// this caller waits.
func (c *Client) refresh(ctx context.Context, staleToken string) error {
	ch := c.refreshGroup.DoChan(refreshFlightKey, func() (any, error) {
		return nil, c.runRefresh(context.WithoutCancel(ctx), staleToken)
	})

	select {
	case res := <-ch:
		if res.Shared {
			slog.DebugContext(ctx, "joined in-flight token refresh")
		}
		if res.Err != nil {
			return apierror.Normalize(res.Err)
		}
		return nil
	case <-ctx.Done():
		return apierror.FromTransportError(ctx.Err())
	}
}

// runRefresh performs one refresh cycle. It is only ever called from within
// the refresh flight.
func (c *Client) runRefresh(ctx context.Context, staleToken string) error {
	if current, err := c.store.AccessToken(ctx); err == nil && current != staleToken {
		// A cycle that finished between the 401 and now already replaced the token.
		if current != "" {
			slog.DebugContext(ctx, "access token already refreshed")
			return nil
		}
		// A failed cycle already cleared the session and notified about it.
		return &apierror.Error{
			Code:    apierror.CodeSessionExpired,
			Message: "session expired",
			Status:  http.StatusUnauthorized,
		}
	}

	refreshToken, err := c.store.RefreshToken(ctx)
	if err != nil {
		return c.expireSession(ctx, apierror.Normalize(err))
	}

	start := time.Now()
	creds, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		c.observer.ObserveRefresh(false, time.Since(start))
		return c.expireSession(ctx, apierror.Normalize(err))
	}

	if err := c.store.SetTokens(ctx, creds.AccessToken, creds.RefreshToken, creds.ExpiresAt); err != nil {
		c.observer.ObserveRefresh(false, time.Since(start))
		return c.expireSession(ctx, apierror.Normalize(err))
	}

	c.observer.ObserveRefresh(true, time.Since(start))
	slog.InfoContext(ctx, "access token refreshed", "expires_at", creds.ExpiresAt)
	return nil
}

// expireSession ends a failed cycle: credentials the server rejected are
// cleared, the session-expired callback runs once, and the returned error is
// delivered to every waiter.
func (c *Client) expireSession(ctx context.Context, cause *apierror.Error) error {
	slog.WarnContext(ctx, "token refresh failed, session expired",
		"code", cause.Code,
		"status", cause.Status,
	)

	if isRejected(cause) {
		if err := c.store.ClearTokens(ctx); err != nil {
			slog.WarnContext(ctx, "failed to clear credentials", "error", err)
		}
	}

	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}

	return &apierror.Error{
		Code:      apierror.CodeSessionExpired,
		Message:   "session expired: " + cause.Message,
		UserError: cause.UserError,
		Status:    cause.Status,
		Details:   cause,
	}
}

// isRejected reports whether the refresh failed because the session is gone,
// as opposed to the server being unreachable, overloaded or rate limiting.
func isRejected(err *apierror.Error) bool {
	if err.Code == apierror.CodeSessionExpired {
		return true
	}
	switch err.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}
