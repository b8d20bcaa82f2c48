package normalize

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/candidate-cli/internal/match"
	"github.com/sells-group/candidate-cli/internal/model"
)

// DefaultWorkers is the pool size used when Options.Workers is unset.
const DefaultWorkers = 4

// Recorder receives the totals of a Transform run.
type Recorder interface {
	RecordTransform(normalized, failed int, statuses map[model.Status]int)
}

// Options control a Transform run.
type Options struct {
	Strategy match.Strategy
	Workers  int
	Recorder Recorder
}

// Transform normalizes every pending record of tbl with a bounded worker
// pool and returns a new table with the normalized columns and statuses
// set. Output order always equals input order. Records already past
// pending are copied through untouched. A row that fails gets empty
// normalized values and the run continues.
func Transform(ctx context.Context, tbl *model.Table, n *Normalizer, opts Options) (*model.Table, error) {
	if tbl == nil || tbl.Len() == 0 {
		return nil, eris.Wrap(model.ErrEmptyTable, "normalize: transform")
	}
	if opts.Strategy == "" {
		opts.Strategy = match.StrategyProgressive
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	start := time.Now()
	out := tbl.Clone()
	for _, c := range model.NormalizedColumns {
		out.EnsureColumn(c)
	}

	results := make([]Result, len(out.Records))
	todo := make([]bool, len(out.Records))
	var normalized, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rec := range out.Records {
		if rec.Status != model.StatusPending {
			continue
		}
		if gctx.Err() != nil {
			break
		}
		todo[i] = true
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := n.Normalize(gctx, rec, opts.Strategy)
			normalized.Add(1)
			if err != nil {
				failed.Add(1)
				zap.L().Error("normalize: row failed", zap.Int("row", rec.Index), zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "normalize: transform")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "normalize: transform")
	}

	for i, rec := range out.Records {
		if todo[i] {
			results[i].Apply(rec)
		}
	}
	counts := ClassifyTable(out)
	if opts.Recorder != nil {
		opts.Recorder.RecordTransform(int(normalized.Load()), int(failed.Load()), counts)
	}

	zap.L().Info("normalize: transform complete",
		zap.String("table", out.Name),
		zap.Int("rows", out.Len()),
		zap.Int64("failed", failed.Load()),
		zap.Int("complete", counts[model.StatusComplete]),
		zap.Int("pending", counts[model.StatusPending]),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
