package stubapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the stub server's Prometheus collectors.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Conversions  *prometheus.CounterVec
	TokensIssued prometheus.Counter
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlshift_stub_requests_total",
			Help: "Requests handled, by route and status code.",
		}, []string{"route", "code"}),
		Conversions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sqlshift_stub_conversions_total",
			Help: "Conversion requests, by outcome.",
		}, []string{"outcome"}),
		TokensIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "sqlshift_stub_tokens_issued_total",
			Help: "Bearer tokens issued.",
		}),
	}
}
