package httpclient

import "time"

// Observer receives pipeline events, e.g. to record metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// ObserveAttempt is called after every transport attempt. status is 0
	// when no response was received; code is the normalized error code or ""
	// on success.
	ObserveAttempt(method string, status int, code string, duration time.Duration)

	// ObserveRetry is called before waiting delay for the next attempt.
	ObserveRetry(method string, attempt int, delay time.Duration)

	// ObserveRefresh is called once per refresh cycle that reached the network.
	ObserveRefresh(ok bool, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, int, string, time.Duration) {}
func (nopObserver) ObserveRetry(string, int, time.Duration)           {}
func (nopObserver) ObserveRefresh(bool, time.Duration)                {}
