// Package batch drives preprocessed candidate tables through the resume
// extraction service in fixed-size batches, checkpointing each finished
// file and journaling progress so an interrupted run resumes where it
// stopped.
package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/table"
)

// DefaultSize is the number of rows per batch.
const DefaultSize = 80

// Discover returns the names of regular files in inputDir that have no
// counterpart in outputDir, sorted. A missing input directory yields no
// names; a missing output directory is created.
func Discover(inputDir, outputDir string) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("batch: input directory missing", zap.String("dir", inputDir))
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read input dir %s", inputDir)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "batch: create output dir %s", outputDir)
	}
	done, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read output dir %s", outputDir)
	}
	processed := make(map[string]bool, len(done))
	for _, e := range done {
		if e.Type().IsRegular() {
			processed[e.Name()] = true
		}
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || processed[e.Name()] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	zap.L().Info("batch: discovered files",
		zap.Int("unprocessed", len(names)),
		zap.Int("processed", len(processed)),
	)
	return names, nil
}

// Split cuts the pending records of tbl into contiguous batches of size
// rows and persists each one to dir/<id>.csv before returning. Batch files
// are created exclusively and never rewritten.
func Split(tbl *model.Table, size int, dir string) ([]*model.Batch, error) {
	if !tbl.HasColumn(model.ColumnStatus) {
		return nil, eris.Wrapf(model.ErrValidation, "batch: %s has no %s column", tbl.Name, model.ColumnStatus)
	}
	return split(tbl, tbl.Pending(), size, dir)
}

// split batches the records of tbl in pending. Records with no id, or an id
// shared with another record of tbl, are left out and stay pending: a result
// for them could not be merged back unambiguously.
func split(tbl *model.Table, pending []*model.Record, size int, dir string) ([]*model.Batch, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "batch: create batch dir %s", dir)
	}

	pending = addressable(tbl, pending)
	var batches []*model.Batch
	for start := 0; start < len(pending); start += size {
		end := min(start+size, len(pending))
		id := "batch-" + uuid.NewString()
		b := &model.Batch{
			ID:      id,
			Origin:  tbl.Name,
			Path:    filepath.Join(dir, id+".csv"),
			Records: pending[start:end:end],
		}
		if err := persist(tbl.Columns, b); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}

	zap.L().Info("batch: split",
		zap.String("file", tbl.Name),
		zap.Int("pending", len(pending)),
		zap.Int("batches", len(batches)),
		zap.Int("size", size),
	)
	return batches, nil
}

func addressable(tbl *model.Table, records []*model.Record) []*model.Record {
	ambiguous := tbl.Ambiguous()
	out := make([]*model.Record, 0, len(records))
	for _, r := range records {
		switch id := r.ID(); {
		case id == "":
			zap.L().Warn("batch: row has no id, not split", zap.String("file", tbl.Name))
		case ambiguous[id]:
			zap.L().Warn("batch: duplicate row id, not split", zap.String("file", tbl.Name), zap.String("row", id))
		default:
			out = append(out, r)
		}
	}
	return out
}

func persist(columns []string, b *model.Batch) error {
	f, err := os.OpenFile(b.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return eris.Wrapf(err, "batch: create %s", b.Path)
	}
	view := &model.Table{Columns: columns}
	rows := make([][]string, 0, len(b.Records))
	for _, r := range b.Records {
		rows = append(rows, view.Row(r))
	}
	if err := fetcher.WriteCSV(f, columns, rows); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "batch: write %s", b.Path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "batch: close %s", b.Path)
	}
	return nil
}

// Load re-reads a persisted batch and binds its rows to the matching
// records of tbl, so work on the batch updates the table. Rows that are no
// longer in tbl are dropped.
func Load(ctx context.Context, entry model.BatchEntry, tbl *model.Table) (*model.Batch, error) {
	saved, err := table.Load(ctx, entry.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: load %s", entry.ID)
	}

	byID := tbl.ByID()
	b := &model.Batch{ID: entry.ID, Origin: entry.Origin, Path: entry.Path}
	for _, r := range saved.Records {
		rec, ok := byID[r.ID()]
		if !ok {
			zap.L().Warn("batch: persisted row not in table",
				zap.String("batch", entry.ID),
				zap.String("row", r.ID()),
			)
			continue
		}
		b.Records = append(b.Records, rec)
	}
	return b, nil
}
