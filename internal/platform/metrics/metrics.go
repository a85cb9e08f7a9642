package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	TokensMinted      prometheus.Counter
	TokensRejected    prometheus.Counter
	CacheHits         *prometheus.CounterVec
	CacheMisses       *prometheus.CounterVec
	RateLimitExceeded *prometheus.CounterVec
	AuthorityDuration *prometheus.HistogramVec
	AuthorityErrors   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TokensMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coursegate_tokens_minted_total",
			Help: "Session tokens minted after successful credential verification",
		}),
		TokensRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coursegate_tokens_rejected_total",
			Help: "Presented tokens rejected as invalid, expired, or mismatched",
		}),
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coursegate_cache_hits_total",
			Help: "Shared cache hits by key namespace",
		}, []string{"namespace"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coursegate_cache_misses_total",
			Help: "Shared cache misses by key namespace",
		}, []string{"namespace"}),
		RateLimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coursegate_rate_limit_exceeded_total",
			Help: "Requests denied by the fixed-window limiter, by action",
		}, []string{"action"}),
		AuthorityDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coursegate_authority_request_duration_seconds",
			Help:    "Latency of remote authority calls by action",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 8},
		}, []string{"action"}),
		AuthorityErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coursegate_authority_errors_total",
			Help: "Failed remote authority calls by action",
		}, []string{"action"}),
	}
}

// ObserveAuthority records one authority round trip.
func (m *Metrics) ObserveAuthority(action string, d time.Duration, err error) {
	m.AuthorityDuration.WithLabelValues(action).Observe(d.Seconds())
	if err != nil {
		m.AuthorityErrors.WithLabelValues(action).Inc()
	}
}
