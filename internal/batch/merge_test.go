package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/pkg/extract"
)

func TestMerge(t *testing.T) {
	tbl := candidateTable(t, 4)
	tbl.Records[3].Status = model.StatusSuccess

	stats := Merge(tbl, "batch-1", []extract.Result{
		{ID: "1", Status: extract.StatusSuccess, Fields: map[string]any{
			"first_name": "Asha",
			"education":  []any{map[string]any{"degree": "M.Sc"}},
			"id":         "999",
			"status":     2,
			"hobbies":    "chess",
		}},
		{ID: "2", Status: extract.StatusFailure, Error: "unreadable pdf"},
		{ID: "3", Status: extract.StatusSuccess},
		{ID: "4", Status: extract.StatusSuccess, Fields: map[string]any{"first_name": "late"}},
		{ID: "77", Status: extract.StatusSuccess, Fields: map[string]any{"first_name": "ghost"}},
	})

	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Unknown)
	assert.Equal(t, 1, stats.Ignored)
	require.Len(t, stats.Rows, 3)

	r1 := tbl.Records[0]
	assert.Equal(t, model.StatusSuccess, r1.Status)
	assert.Equal(t, "1", r1.ID())
	assert.Equal(t, "Asha", r1.Get("first_name"))
	assert.JSONEq(t, `[{"degree":"M.Sc"}]`, r1.Get("education"))
	assert.Empty(t, r1.Get("hobbies"))
	assert.False(t, tbl.HasColumn("hobbies"))

	assert.Equal(t, model.StatusFailed, tbl.Records[1].Status)
	assert.Equal(t, "unreadable pdf", stats.Rows[1].Error)
	assert.Equal(t, model.StatusFailed, tbl.Records[2].Status)
	assert.Equal(t, "extraction returned no fields", stats.Rows[2].Error)
	assert.Empty(t, tbl.Records[3].Get("first_name"))

	assert.Equal(t, model.RowResult{
		Origin:  "candidates.csv",
		BatchID: "batch-1",
		RowID:   "1",
		Status:  model.StatusSuccess,
		Fields:  map[string]string{"first_name": "Asha", "education": `[{"degree":"M.Sc"}]`},
	}, stats.Rows[0])
}

func TestMerge_MissingResultLeavesRowPending(t *testing.T) {
	tbl := candidateTable(t, 2)
	stats := Merge(tbl, "batch-1", []extract.Result{
		{ID: "1", Status: extract.StatusSuccess, Fields: map[string]any{"first_name": "A"}},
	})
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, model.StatusPending, tbl.Records[1].Status)
}

func TestMerge_UncoercibleFieldFailsRow(t *testing.T) {
	tbl := candidateTable(t, 1)
	stats := Merge(tbl, "batch-1", []extract.Result{
		{ID: "1", Status: extract.StatusSuccess, Fields: map[string]any{
			"first_name": "A",
			"education":  make(chan int),
		}},
	})
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, model.StatusFailed, tbl.Records[0].Status)
	assert.Empty(t, tbl.Records[0].Get("first_name"))
	assert.Contains(t, stats.Rows[0].Error, "education")
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{42, "42"},
		{float64(3), "3"},
		{2.5, "2.5"},
		{map[string]any{"a": 1}, `{"a":1}`},
		{[]string{"x", "y"}, `["x","y"]`},
	}
	for _, tt := range tests {
		got, err := coerce(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}

	_, err := coerce(make(chan int))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	tbl := candidateTable(t, 3)
	tbl.Records[2].Status = model.StatusFailed

	n := Replay(tbl, []model.RowResult{
		{RowID: "1", Status: model.StatusSuccess, Fields: map[string]string{"first_name": "A", "dropped": "x"}},
		{RowID: "3", Status: model.StatusSuccess, Fields: map[string]string{"first_name": "C"}},
		{RowID: "9", Status: model.StatusFailed},
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, "A", tbl.Records[0].Get("first_name"))
	assert.Equal(t, model.StatusSuccess, tbl.Records[0].Status)
	assert.Empty(t, tbl.Records[0].Get("dropped"))
	assert.Equal(t, model.StatusPending, tbl.Records[1].Status)
	assert.Equal(t, model.StatusFailed, tbl.Records[2].Status)
	assert.Empty(t, tbl.Records[2].Get("first_name"))
}
