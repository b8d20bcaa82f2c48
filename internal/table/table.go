// Package table loads, prepares and saves candidate tables in CSV or XLSX
// form.
package table

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/model"
)

// Supported reports whether path has a table extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Load reads a CSV or XLSX table. Every failure wraps model.ErrValidation.
func Load(ctx context.Context, path string) (*model.Table, error) {
	var (
		header []string
		rows   [][]string
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(model.ErrValidation, "table: open %s: %v", path, err)
		}
		defer f.Close() //nolint:errcheck
		header, rows, err = fetcher.ReadCSV(ctx, f)
		if err != nil {
			return nil, eris.Wrapf(model.ErrValidation, "table: read %s: %v", path, err)
		}
	case ".xlsx":
		all, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(model.ErrValidation, "table: read %s: %v", path, err)
		}
		if len(all) == 0 {
			return nil, eris.Wrapf(model.ErrValidation, "table: %s has no header row", path)
		}
		header, rows = all[0], all[1:]
	default:
		return nil, eris.Wrapf(model.ErrValidation, "table: unsupported file type %q", filepath.Ext(path))
	}

	tbl, err := model.FromRows(filepath.Base(path), header, rows)
	if err != nil {
		return nil, eris.Wrapf(model.ErrValidation, "table: %s: %v", path, err)
	}
	zap.L().Debug("table: loaded", zap.String("path", path), zap.Int("rows", tbl.Len()), zap.Int("columns", len(tbl.Columns)))
	return tbl, nil
}

// Save writes tbl to path by extension. The file is written to a temporary
// sibling first and renamed into place, so a reader never sees a partial
// table.
func Save(path string, tbl *model.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "table: create output dir")
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".xlsx" {
		return eris.Errorf("table: unsupported file type %q", filepath.Ext(path))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+ext)
	if err != nil {
		return eris.Wrap(err, "table: create temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck

	rows := make([][]string, 0, tbl.Len())
	for _, r := range tbl.Records {
		rows = append(rows, tbl.Row(r))
	}

	switch ext {
	case ".csv":
		if err := fetcher.WriteCSV(tmp, tbl.Columns, rows); err != nil {
			_ = tmp.Close()
			return eris.Wrap(err, "table: write csv")
		}
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return eris.Wrap(err, "table: sync")
		}
		if err := tmp.Close(); err != nil {
			return eris.Wrap(err, "table: close temp file")
		}
	case ".xlsx":
		_ = tmp.Close()
		sheet := fetcher.Sheet{Name: "Sheet1", Rows: append([][]string{tbl.Columns}, rows...)}
		if err := fetcher.WriteXLSX(tmpPath, []fetcher.Sheet{sheet}); err != nil {
			return eris.Wrap(err, "table: write xlsx")
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrap(err, "table: rename into place")
	}
	zap.L().Debug("table: saved", zap.String("path", path), zap.Int("rows", tbl.Len()))
	return nil
}

// Sample returns n records chosen at random with seed, in their original
// order. When n covers the table the whole table is returned.
func Sample(tbl *model.Table, n int, seed int64) *model.Table {
	if n <= 0 || n >= tbl.Len() {
		return tbl
	}
	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(tbl.Len())[:n]
	slices.Sort(picked)

	out := &model.Table{Name: tbl.Name, Columns: slices.Clone(tbl.Columns)}
	for _, i := range picked {
		out.Records = append(out.Records, tbl.Records[i])
	}
	zap.L().Info("table: sampled", zap.Int("sampled", n), zap.Int("total", tbl.Len()))
	return out
}
