// Package metrics exposes Prometheus instrumentation for the scoring pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/allostat/internal/domain"
)

// Registry holds all allostat metrics on a private Prometheus registry
type Registry struct {
	registry *prometheus.Registry

	StageDuration *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	CacheHitRatio prometheus.Gauge

	ScoresTotal       prometheus.Counter
	LatestScore       *prometheus.GaugeVec
	InsufficientTotal prometheus.Counter
	ActiveConflicts   *prometheus.GaugeVec

	BreakerState *prometheus.GaugeVec
	HTTPRequests *prometheus.CounterVec
}

// NewRegistry creates and registers every metric
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allostat_stage_duration_seconds",
				Help:    "Duration of each pipeline stage in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"stage"},
		),

		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allostat_weight_cache_lookups_total",
				Help: "Weight cache lookups by result",
			},
			[]string{"result"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "allostat_weight_cache_hit_ratio",
				Help: "Weight cache hit ratio (0.0 to 1.0)",
			},
		),

		ScoresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "allostat_scores_total",
				Help: "Total number of sALI scores computed",
			},
		),

		LatestScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "allostat_latest_score",
				Help: "Most recently computed score by series (raw, ema_short, ema_long)",
			},
			[]string{"series"},
		),

		InsufficientTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "allostat_insufficient_data_total",
				Help: "Recompute requests skipped below the minimum-data gate",
			},
		),

		ActiveConflicts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "allostat_active_conflicts",
				Help: "Conflict patterns in the latest detection pass",
			},
			[]string{"type", "severity"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "allostat_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"breaker"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allostat_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	r.registry.MustRegister(
		r.StageDuration,
		r.CacheLookups,
		r.CacheHitRatio,
		r.ScoresTotal,
		r.LatestScore,
		r.InsufficientTotal,
		r.ActiveConflicts,
		r.BreakerState,
		r.HTTPRequests,
	)
	return r
}

// Gatherer exposes the private registry for tests and handlers
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveStage records how long a pipeline stage took
func (r *Registry) ObserveStage(stage string, elapsed time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// CacheLookup records a weight cache hit or miss
func (r *Registry) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.CacheLookups.WithLabelValues(result).Inc()
	r.updateCacheHitRatio()
}

// ScoreComputed records a new score
func (r *Registry) ScoreComputed(score *domain.ScoreEntry) {
	r.ScoresTotal.Inc()
	r.LatestScore.WithLabelValues("raw").Set(score.RawScore)
	r.LatestScore.WithLabelValues("ema_short").Set(score.EMAShort)
	r.LatestScore.WithLabelValues("ema_long").Set(score.EMALong)
}

// ConflictsDetected replaces the active conflict gauges
func (r *Registry) ConflictsDetected(patterns []domain.ConflictPattern) {
	r.ActiveConflicts.Reset()
	for _, p := range patterns {
		r.ActiveConflicts.WithLabelValues(string(p.Type), string(p.Severity)).Inc()
	}
}

// InsufficientData counts a skipped recompute
func (r *Registry) InsufficientData() {
	r.InsufficientTotal.Inc()
	log.Debug().Msg("Recompute skipped below minimum data")
}

// BreakerStateChanged records a circuit breaker transition
func (r *Registry) BreakerStateChanged(name string, state float64) {
	r.BreakerState.WithLabelValues(name).Set(state)
}

// HTTPRequest counts a served request
func (r *Registry) HTTPRequest(route string, code string) {
	r.HTTPRequests.WithLabelValues(route, code).Inc()
}

func (r *Registry) updateCacheHitRatio() {
	hits := counterValue(r.CacheLookups, "hit")
	misses := counterValue(r.CacheLookups, "miss")
	if total := hits + misses; total > 0 {
		r.CacheHitRatio.Set(hits / total)
	}
}

func counterValue(vec *prometheus.CounterVec, label string) float64 {
	c, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
