package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports scan and execution counters to Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	scanned      *prometheus.CounterVec
	scores       prometheus.Histogram
	qualified    prometheus.Gauge
	legs         *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	planStrategy *prometheus.CounterVec
}

// New creates a recorder registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		scanned: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocator_instruments_scanned_total",
				Help: "Instruments evaluated by the scanner, by outcome",
			},
			[]string{"outcome"},
		),
		scores: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "allocator_aggregate_score",
				Help:    "Aggregate pattern score of evaluated instruments",
				Buckets: []float64{0, 10, 20, 35, 50, 70, 90, 100},
			},
		),
		qualified: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "allocator_qualified_opportunities",
				Help: "Opportunities that passed the qualification filter in the last cycle",
			},
		),
		legs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocator_execution_legs_total",
				Help: "Execution legs by kind and result",
			},
			[]string{"kind", "result"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "allocator_last_price",
				Help: "Last price received for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "allocator_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		planStrategy: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "allocator_plans_total",
				Help: "Allocation plans produced, by strategy",
			},
			[]string{"strategy"},
		),
	}
}

// RecordScan records one instrument evaluation ("scored", "zero", "failed").
func (r *Recorder) RecordScan(outcome string) {
	if r == nil {
		return
	}
	r.scanned.WithLabelValues(outcome).Inc()
}

// RecordScore observes an aggregate score.
func (r *Recorder) RecordScore(score float64) {
	if r == nil {
		return
	}
	r.scores.Observe(score)
}

// RecordQualified sets the size of the last shortlist.
func (r *Recorder) RecordQualified(n int) {
	if r == nil {
		return
	}
	r.qualified.Set(float64(n))
}

// RecordLeg records an execution leg outcome.
func (r *Recorder) RecordLeg(kind string, executed bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !executed {
		result = "failed"
	}
	r.legs.WithLabelValues(kind, result).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	if r == nil {
		return
	}
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordPlan counts a produced plan.
func (r *Recorder) RecordPlan(strategy string) {
	if r == nil {
		return
	}
	r.planStrategy.WithLabelValues(strategy).Inc()
}
