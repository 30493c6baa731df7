package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
// Pass to services that need to record metrics; nil disables recording.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionWarnings   prometheus.Counter
	AccessDecisions   *prometheus.CounterVec
	SodRejections     *prometheus.CounterVec
	DecisionCacheHits prometheus.Counter
	DecisionCacheMiss prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rolegate",
				Name:      "active_sessions",
				Help:      "Number of live sessions",
			},
		),
		SessionWarnings: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rolegate",
				Name:      "session_warnings_total",
				Help:      "Roles skipped during lenient session construction",
			},
		),
		AccessDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rolegate",
				Name:      "access_decisions_total",
				Help:      "Total access-check decisions",
			},
			[]string{"result"}, // result=allow/deny
		),
		SodRejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rolegate",
				Name:      "sod_rejections_total",
				Help:      "Separation-of-duty conflicts detected",
			},
			[]string{"type"}, // type=static/dynamic
		),
		DecisionCacheHits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rolegate",
				Name:      "decision_cache_hits_total",
				Help:      "Access-decision cache hits",
			},
		),
		DecisionCacheMiss: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "rolegate",
				Name:      "decision_cache_misses_total",
				Help:      "Access-decision cache misses",
			},
		),
	}
}
