package batch

import (
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/pkg/extract"
)

// MergeStats summarizes one Merge.
type MergeStats struct {
	Succeeded int
	Failed    int
	// Unknown counts results whose id matches no row.
	Unknown int
	// Ignored counts results for rows that were no longer pending.
	Ignored int
	// Rows holds the outcome of every merged row, for the journal.
	Rows []model.RowResult
}

// Merge writes extraction results into tbl by row id. A failed result marks
// its row failed. A successful one writes its fields into the columns tbl
// already has, ignoring the rest, and marks the row success. A field that
// cannot be rendered as text fails the row instead. Rows without a result
// stay pending.
func Merge(tbl *model.Table, batchID string, results []extract.Result) MergeStats {
	var stats MergeStats
	byID := tbl.ByID()

	for _, res := range results {
		rec, ok := byID[res.ID]
		if !ok {
			stats.Unknown++
			zap.L().Warn("batch: result for unknown row", zap.String("batch", batchID), zap.String("row", res.ID))
			continue
		}
		if rec.Status != model.StatusPending {
			stats.Ignored++
			continue
		}

		row := model.RowResult{Origin: tbl.Name, BatchID: batchID, RowID: res.ID}
		if res.Failed() {
			row.Status = model.StatusFailed
			row.Error = res.Error
			if row.Error == "" {
				row.Error = "extraction returned no fields"
			}
		} else if fields, err := coerceFields(tbl, res.Fields); err != nil {
			row.Status = model.StatusFailed
			row.Error = err.Error()
			zap.L().Warn("batch: merge failed", zap.String("batch", batchID), zap.String("row", res.ID), zap.Error(err))
		} else {
			row.Status = model.StatusSuccess
			row.Fields = fields
		}

		apply(rec, row)
		if row.Status == model.StatusSuccess {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		stats.Rows = append(stats.Rows, row)
	}
	return stats
}

// Replay applies journaled row results to the still-pending rows of tbl
// and returns how many were applied.
func Replay(tbl *model.Table, rows []model.RowResult) int {
	byID := tbl.ByID()
	n := 0
	for _, row := range rows {
		rec, ok := byID[row.RowID]
		if !ok || rec.Status != model.StatusPending {
			continue
		}
		fields := make(map[string]string, len(row.Fields))
		for k, v := range row.Fields {
			if writable(tbl, k) {
				fields[k] = v
			}
		}
		row.Fields = fields
		apply(rec, row)
		n++
	}
	return n
}

func apply(rec *model.Record, row model.RowResult) {
	for k, v := range row.Fields {
		rec.Set(k, v)
	}
	if err := rec.SetStatus(row.Status); err != nil {
		zap.L().Warn("batch: status unchanged", zap.Error(err))
	}
}

func writable(tbl *model.Table, column string) bool {
	return column != model.ColumnID && column != model.ColumnStatus && tbl.HasColumn(column)
}

// coerceFields renders the fields tbl has columns for as text. Either every
// field converts or none is returned.
func coerceFields(tbl *model.Table, in map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if !writable(tbl, k) {
			continue
		}
		s, err := coerce(v)
		if err != nil {
			return nil, eris.Wrapf(model.ErrMerge, "field %q: %v", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func coerce(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var s string
	if err := mapstructure.WeakDecode(v, &s); err != nil {
		return "", err
	}
	return s, nil
}
