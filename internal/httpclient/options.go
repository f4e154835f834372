package httpclient

import (
	"net/http"
	"time"
)

// Default client settings.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultUserAgent   = "moonctl"
)

// Option configures a Client.
type Option func(*clientConfig)

// clientConfig holds configuration for New.
type clientConfig struct {
	transport            http.RoundTripper
	timeout              time.Duration
	retry                RetryPolicy
	refresher            Refresher
	onSessionExpired     func()
	idempotentReplayOnly bool
	observer             Observer
	userAgent            string
}

// WithTransport sets the underlying transport for all requests, including
// token refresh. If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.transport = transport
	}
}

// WithTimeout bounds every single attempt. An attempt that times out counts
// as a network failure and is retried.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *clientConfig) {
		c.retry = policy
	}
}

// WithRefresher replaces the refresher used on 401 responses.
// By default the client calls {baseURL}/auth:refresh.
func WithRefresher(refresher Refresher) Option {
	return func(c *clientConfig) {
		c.refresher = refresher
	}
}

// WithSessionExpired registers a callback that runs once per failed refresh cycle.
func WithSessionExpired(fn func()) Option {
	return func(c *clientConfig) {
		c.onSessionExpired = fn
	}
}

// WithIdempotentReplayOnly limits automatic replay after a refresh to
// idempotent methods. POST and PATCH requests rejected with 401 are then
// returned to the caller instead of being sent a second time.
func WithIdempotentReplayOnly() Option {
	return func(c *clientConfig) {
		c.idempotentReplayOnly = true
	}
}

// WithObserver registers an Observer for attempts, retries and refreshes.
func WithObserver(observer Observer) Option {
	return func(c *clientConfig) {
		c.observer = observer
	}
}

// WithUserAgent sets the User-Agent header of outgoing requests.
func WithUserAgent(userAgent string) Option {
	return func(c *clientConfig) {
		c.userAgent = userAgent
	}
}
