package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/florianilch/moonctl/internal/httpclient"
)

const metricsNamespace = "moonctl"

// ClientMetrics records httpclient pipeline events as Prometheus metrics.
type ClientMetrics struct {
	attempts        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
}

// Compile-time check that ClientMetrics can observe the client
var _ httpclient.Observer = (*ClientMetrics)(nil)

// NewClientMetrics registers the client metrics with reg.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)

	return &ClientMetrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "attempts_total",
			Help:      "Transport attempts by method, status and error code.",
		}, []string{"method", "status", "code"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of single transport attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Retries of transient failures.",
		}, []string{"method"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "token_refreshes_total",
			Help:      "Token refresh cycles by outcome.",
		}, []string{"outcome"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "client",
			Name:      "token_refresh_duration_seconds",
			Help:      "Duration of token refresh cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *ClientMetrics) ObserveAttempt(method string, status int, code string, d time.Duration) {
	statusLabel := "none"
	if status != 0 {
		statusLabel = strconv.Itoa(status)
	}
	m.attempts.WithLabelValues(method, statusLabel, code).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *ClientMetrics) ObserveRetry(method string, _ int, _ time.Duration) {
	m.retries.WithLabelValues(method).Inc()
}

func (m *ClientMetrics) ObserveRefresh(ok bool, d time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(d.Seconds())
}
