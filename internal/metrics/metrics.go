package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fortuna/diamond/internal/normalize"
)

// Recorder exports normalization counters on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	games      *prometheus.CounterVec
	rows       *prometheus.CounterVec
	bestEffort prometheus.Counter
	duration   prometheus.Histogram
}

// NewRecorder registers the normalization metrics on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diamond",
			Name:      "games_normalized_total",
			Help:      "Games that reached a terminal state, by status and failure reason.",
		}, []string{"status", "reason"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diamond",
			Name:      "rows_emitted_total",
			Help:      "Rows produced for ready games, by table.",
		}, []string{"table"}),
		bestEffort: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "diamond",
			Name:      "runner_rows_best_effort_total",
			Help:      "Runner rows recovered from inconsistent base state.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "diamond",
			Name:      "game_normalize_duration_seconds",
			Help:      "Time to normalize and store one game.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	r.registry.MustRegister(r.games, r.rows, r.bestEffort, r.duration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// OnGameOutcome records one game.
func (r *Recorder) OnGameOutcome(_ context.Context, o normalize.Outcome) {
	r.games.WithLabelValues(string(o.Status), o.Reason()).Inc()
	if o.Duration > 0 {
		r.duration.Observe(o.Duration.Seconds())
	}
	if o.Status != normalize.StateReady || o.Rows == nil {
		return
	}
	r.rows.WithLabelValues("game").Inc()
	r.rows.WithLabelValues("linescore").Add(float64(len(o.Rows.Linescores)))
	r.rows.WithLabelValues("runner_play").Add(float64(len(o.Rows.RunnerPlays)))
	r.bestEffort.Add(float64(o.Rows.BestEffortCount()))
}
