// Package monitoring counts what a run did, exports the counts as a
// Prometheus textfile and raises webhook alerts when a run goes badly.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/model"
)

// Metric names.
const (
	MetricRowsNormalized = "candidate_rows_normalized_total"
	MetricRowFailures    = "candidate_row_failures_total"
	MetricRowsClassified = "candidate_rows_classified_total"
	MetricStageCalls     = "candidate_match_stage_calls_total"
	MetricBatches        = "candidate_batches_total"
	MetricFetchFailures  = "candidate_fetch_failures_total"
	MetricMergedRows     = "candidate_merged_rows_total"
)

// Batch outcomes.
const (
	OutcomeMerged  = "merged"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the counters of one process. Each Metrics owns its
// registry so tests can create as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	RowsNormalized prometheus.Counter
	RowFailures    prometheus.Counter
	RowsClassified *prometheus.CounterVec
	StageCalls     *prometheus.CounterVec
	Batches        *prometheus.CounterVec
	FetchFailures  prometheus.Counter
	MergedRows     *prometheus.CounterVec
}

// NewMetrics creates and registers the counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		RowsNormalized: f.NewCounter(prometheus.CounterOpts{
			Name: MetricRowsNormalized,
			Help: "Rows passed through the row normalizer",
		}),
		RowFailures: f.NewCounter(prometheus.CounterOpts{
			Name: MetricRowFailures,
			Help: "Rows whose normalization failed and were left empty",
		}),
		RowsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRowsClassified,
			Help: "Rows by status after classification",
		}, []string{"status"}),
		StageCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricStageCalls,
			Help: "Matcher stage invocations",
		}, []string{"category", "stage", "result"}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricBatches,
			Help: "Batches by outcome",
		}, []string{"outcome"}),
		FetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: MetricFetchFailures,
			Help: "Resume artifacts that could not be fetched",
		}),
		MergedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: MetricMergedRows,
			Help: "Rows merged from extraction results by status",
		}, []string{"status"}),
	}
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}

// Observe implements match.Observer.
func (m *Metrics) Observe(cat model.Category, stage match.Stage, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StageCalls.WithLabelValues(string(cat), string(stage), result).Inc()
}

// RecordTransform implements normalize.Recorder.
func (m *Metrics) RecordTransform(normalized, failed int, statuses map[model.Status]int) {
	m.RowsNormalized.Add(float64(normalized))
	m.RowFailures.Add(float64(failed))
	for st, n := range statuses {
		m.RowsClassified.WithLabelValues(st.String()).Add(float64(n))
	}
}

// BatchDone counts a batch outcome.
func (m *Metrics) BatchDone(outcome string) {
	m.Batches.WithLabelValues(outcome).Inc()
}

// FetchFailed counts one artifact that could not be fetched.
func (m *Metrics) FetchFailed() {
	m.FetchFailures.Inc()
}

// RowsMerged counts n rows merged with status st.
func (m *Metrics) RowsMerged(st model.Status, n int) {
	if n > 0 {
		m.MergedRows.WithLabelValues(st.String()).Add(float64(n))
	}
}

// WriteTextfile writes the current values in the node exporter textfile
// format. The write is atomic.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}
