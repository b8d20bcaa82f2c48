package normalize

import (
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/sanitize"
)

// Classify returns the status rec should have. A pending record becomes
// complete when it has a skill, a valid mobile, a valid email and a city;
// otherwise it stays pending. Records past pending keep their status.
func Classify(rec *model.Record) model.Status {
	if rec.Status != model.StatusPending {
		return rec.Status
	}
	if rec.Get(model.ColumnSkill) != "" &&
		sanitize.IsValidPhone(rec.Get(model.ColumnMobile)) &&
		sanitize.IsValidEmail(rec.Get(model.ColumnEmail)) &&
		rec.Get(model.ColumnCity) != "" {
		return model.StatusComplete
	}
	return model.StatusPending
}

// ClassifyTable applies Classify to every record and returns the number of
// records per resulting status.
func ClassifyTable(tbl *model.Table) map[model.Status]int {
	counts := make(map[model.Status]int)
	tbl.EnsureColumn(model.ColumnStatus)
	for _, rec := range tbl.Records {
		if err := rec.SetStatus(Classify(rec)); err != nil {
			zap.L().Warn("normalize: status unchanged", zap.Error(err))
		}
		counts[rec.Status]++
	}
	return counts
}
