package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-cli/internal/batch"
	"github.com/sells-group/candidate-cli/internal/config"
	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/registry"
)

func builtinRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Default(context.Background())
	require.NoError(t, err)
	return reg
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "batch-0b1c2d3e", truncateID("batch-0b1c2d3e-aaaa-bbbb-cccc-dddddddddddd"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestComputeBatchStats(t *testing.T) {
	s := computeBatchStats([]model.BatchEntry{
		{State: model.BatchMerged, Rows: 80},
		{State: model.BatchMerged, Rows: 80},
		{State: model.BatchFailed, Rows: 40},
		{State: model.BatchAbandoned, Rows: 10},
	})
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 210, s.Rows)
	assert.Equal(t, 2, s.ByState[model.BatchMerged])
	assert.Equal(t, 1, s.Open)
}

func TestFormatBatchList(t *testing.T) {
	var buf bytes.Buffer
	formatBatchList(&buf, []model.BatchEntry{{
		ID:        "batch-12345678-aaaa",
		Origin:    "teachers.csv",
		State:     model.BatchFailed,
		Rows:      80,
		Error:     "extract: unexpected status 500 from the service\nwith more",
		UpdatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "batch-12345678")
	assert.NotContains(t, out, "aaaa")
	assert.Contains(t, out, "teachers.csv")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "...")
}

func TestFormatBatchStats(t *testing.T) {
	var buf bytes.Buffer
	formatBatchStats(&buf, computeBatchStats([]model.BatchEntry{
		{State: model.BatchMerged, Rows: 5},
		{State: model.BatchSplit, Rows: 3},
	}))
	out := buf.String()
	assert.Contains(t, out, "Total batches:")
	assert.Contains(t, out, "merged:")
	assert.Contains(t, out, "split:")
	assert.NotContains(t, out, "abandoned:")
}

func TestFormatRunOutcome(t *testing.T) {
	var buf bytes.Buffer
	formatRunOutcome(&buf, &batch.RunOutcome{
		Files: []batch.FileOutcome{
			{
				Name: "a.csv",
				Batches: []batch.BatchOutcome{
					{ID: "batch-aaaaaaaa-1", State: model.BatchMerged, Rows: 80, Submitted: 79, Succeeded: 78, Failed: 1, Skipped: 1, Resumed: true},
				},
				Replayed:     40,
				Checkpointed: true,
			},
			{Name: "b.csv", Err: errors.New("no status column")},
			{Name: "c.csv", Batches: []batch.BatchOutcome{{ID: "batch-bbbbbbbb-2", State: model.BatchFailed}}},
		},
		Aborted: true,
	})

	out := buf.String()
	assert.Contains(t, out, "batch-aaaaaaaa*")
	assert.Contains(t, out, "a.csv: done (40 rows replayed from journal)")
	assert.Contains(t, out, "b.csv: skipped: no status column")
	assert.Contains(t, out, "c.csv: incomplete, re-run to resume")
	assert.Contains(t, out, "Run stopped by operator.")
}

func TestResolveAllAndFormat(t *testing.T) {
	m := match.New(builtinRegistry(t))
	lines := resolveAll(context.Background(), m, model.CategoryRole, match.StrategyProgressive, "", []string{"PGT Physics Teacher", "zzzz"})
	require.Len(t, lines, 2)
	assert.Equal(t, "Teacher", lines[0].Result.Canonical)
	assert.False(t, lines[1].Result.OK())

	levels := resolveAll(context.Background(), m, model.CategoryLevel, match.StrategyProgressive, "", []string{"PGT Physics Teacher"})
	assert.Equal(t, "PGT (Post Grad Teacher)", levels[0].Result.Canonical)

	var buf bytes.Buffer
	formatMatches(&buf, lines)
	out := buf.String()
	assert.Contains(t, out, "TEXT")
	assert.Contains(t, out, "Teacher")
	assert.Contains(t, out, "zzzz")
}

func TestMasterSheets(t *testing.T) {
	reg := builtinRegistry(t)
	sheets := masterSheets(reg)

	names := make([]string, 0, len(sheets))
	for _, s := range sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Roles", "Levels", "Skills", "Cities", "Mapping"}, names)
	assert.Len(t, sheets[0].Rows, len(reg.Terms(model.CategoryRole))+1)
	assert.Equal(t, reg.Terms(model.CategoryRole)[0], sheets[0].Rows[1][0])
	assert.Equal(t, []string{"category", "pattern", "canonical"}, sheets[4].Rows[0])

	path := filepath.Join(t.TempDir(), "taxonomy.xlsx")
	require.NoError(t, fetcher.WriteXLSX(path, sheets))
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Roles", rows[0][0])
}

func TestFormatTaxonomy(t *testing.T) {
	var buf bytes.Buffer
	formatTaxonomy(&buf, builtinRegistry(t))
	out := buf.String()
	assert.Contains(t, out, "Version:")
	for _, cat := range model.Categories {
		assert.Contains(t, out, string(cat))
	}
}

func TestBatchConfig_Overrides(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })
	cfg = &config.Config{
		Batch:     config.BatchConfig{Size: 80, InputDir: "in", OutputDir: "out", BatchDir: "batches"},
		Fetch:     config.FetchConfig{TimeoutSecs: 10, Concurrency: 8},
		Extractor: config.ExtractorConfig{MaxAttempts: 5, InitialBackoffMs: 200},
	}

	bc := batchConfig("", "", "", 0)
	assert.Equal(t, "in", bc.InputDir)
	assert.Equal(t, 80, bc.Size)
	assert.Equal(t, 8, bc.Fetch.Concurrency)
	assert.Equal(t, 10*time.Second, bc.Fetch.Timeout)
	assert.Equal(t, 5, bc.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, bc.Retry.InitialBackoff)

	bc = batchConfig("x", "y", "z", 10)
	assert.Equal(t, "x", bc.InputDir)
	assert.Equal(t, "y", bc.OutputDir)
	assert.Equal(t, "z", bc.BatchDir)
	assert.Equal(t, 10, bc.Size)
}
