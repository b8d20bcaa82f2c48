package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"
)

// Snapshot is a point-in-time summary of a run's counters.
type Snapshot struct {
	RowsNormalized int `json:"rows_normalized"`
	RowFailures    int `json:"row_failures"`

	BatchesMerged  int `json:"batches_merged"`
	BatchesFailed  int `json:"batches_failed"`
	BatchesSkipped int `json:"batches_skipped"`

	FetchFailures int `json:"fetch_failures"`
	RowsSucceeded int `json:"rows_succeeded"`
	RowsFailed    int `json:"rows_failed"`

	CollectedAt time.Time `json:"collected_at"`
}

// BatchFailureRate is failed / (merged + failed), or 0 with no finished
// batches.
func (s *Snapshot) BatchFailureRate() float64 {
	finished := s.BatchesMerged + s.BatchesFailed
	if finished == 0 {
		return 0
	}
	return float64(s.BatchesFailed) / float64(finished)
}

// Collect reads the counters out of g.
func Collect(g prometheus.Gatherer) (*Snapshot, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: gather")
	}

	snap := &Snapshot{CollectedAt: time.Now().UTC()}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := int(m.GetCounter().GetValue())
			switch mf.GetName() {
			case MetricRowsNormalized:
				snap.RowsNormalized += v
			case MetricRowFailures:
				snap.RowFailures += v
			case MetricFetchFailures:
				snap.FetchFailures += v
			case MetricBatches:
				switch label(m, "outcome") {
				case OutcomeMerged:
					snap.BatchesMerged += v
				case OutcomeFailed:
					snap.BatchesFailed += v
				case OutcomeSkipped:
					snap.BatchesSkipped += v
				}
			case MetricMergedRows:
				switch label(m, "status") {
				case "success":
					snap.RowsSucceeded += v
				case "failed":
					snap.RowsFailed += v
				}
			}
		}
	}
	return snap, nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
