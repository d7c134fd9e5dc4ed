package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"StratEngine/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsTotal    *prometheus.CounterVec
	droppedTotal *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	plansTotal   *prometheus.CounterVec
	aligned      *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		barsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strat_bars_ingested_total",
				Help: "Bars applied to a ledger",
			},
			[]string{"symbol", "timeframe"},
		),
		droppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strat_bars_dropped_total",
				Help: "Bars dropped before or during ingestion",
			},
			[]string{"reason"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strat_pattern_transitions_total",
				Help: "Pattern lifecycle transitions",
			},
			[]string{"kind", "status"},
		),
		plansTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strat_plans_total",
				Help: "Trade plans emitted",
			},
			[]string{"accept", "reason"},
		),
		aligned: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strat_continuity_aligned",
				Help: "Timeframes agreeing with the dominant control, per symbol",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strat_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strat_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBar(symbol string, tf models.Timeframe) {
	r.barsTotal.WithLabelValues(symbol, string(tf)).Inc()
}

func (r *Recorder) RecordDropped(reason string) {
	r.droppedTotal.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordTransition(kind models.PatternKind, to models.PatternStatus) {
	r.transitions.WithLabelValues(string(kind), string(to)).Inc()
}

func (r *Recorder) RecordPlan(accepted bool, reason models.RejectionReason) {
	a := "false"
	if accepted {
		a = "true"
	}
	r.plansTotal.WithLabelValues(a, string(reason)).Inc()
}

func (r *Recorder) RecordAlignment(symbol string, aligned int) {
	r.aligned.WithLabelValues(symbol).Set(float64(aligned))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
