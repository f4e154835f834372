package httpclient

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/florianilch/moonctl/internal/apierror"
)

// RetryPolicy controls retries of transient failures (network errors and 5xx).
// The delay before attempt n (n >= 2) is BaseDelay * 2^(n-2).
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns 3 attempts with a 1s base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return p
}

// backoff returns a fresh delay schedule. Each Step yields the next delay,
// doubling from BaseDelay without jitter.
func (p RetryPolicy) backoff() wait.Backoff {
	return wait.Backoff{
		Duration: p.BaseDelay,
		Factor:   2,
		Steps:    p.MaxAttempts,
	}
}

// Delays returns the waits between attempts when every attempt fails.
func (p RetryPolicy) Delays() []time.Duration {
	p = p.normalized()
	b := p.backoff()
	delays := make([]time.Duration, 0, p.MaxAttempts-1)
	for range p.MaxAttempts - 1 {
		delays = append(delays, b.Step())
	}
	return delays
}

// sendWithRetry sends p until it succeeds, fails permanently, or attempts
// run out. The last observed error is returned.
func (c *Client) sendWithRetry(ctx context.Context, p *pendingRequest, token string) (*Response, *apierror.Error) {
	schedule := c.retry.backoff()

	for attempt := 1; ; attempt++ {
		resp, apiErr := c.send(ctx, p, token)
		if apiErr == nil {
			return resp, nil
		}

		if !apiErr.Retryable() || attempt >= c.retry.MaxAttempts || ctx.Err() != nil {
			return nil, apiErr
		}

		delay := schedule.Step()
		c.observer.ObserveRetry(p.method, attempt, delay)
		slog.DebugContext(ctx, "retrying request",
			"method", p.method,
			"attempt", attempt+1,
			"delay", delay,
			"code", apiErr.Code,
		)

		if err := c.sleep(ctx, delay); err != nil {
			return nil, apierror.FromTransportError(err)
		}
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
