package batch

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/model"
)

// MaterializeOptions bound artifact fetching for one batch.
type MaterializeOptions struct {
	Concurrency int
	Timeout     time.Duration
	// OnFetchFailure is called once per row whose artifact is omitted.
	OnFetchFailure func(rowID string, err error)
}

// Archive is the submission payload of one batch: a ZIP of resumes and the
// ids of the rows it contains, in entry order.
type Archive struct {
	IDs     []string
	Data    []byte
	Skipped []string
}

// Materialize fetches the resume of every pending row of b and packs them
// into one archive in row order. A row whose fetch fails is logged and left
// out; only cancellation of ctx fails the whole call.
func Materialize(ctx context.Context, b *model.Batch, f fetcher.Fetcher, opts MaterializeOptions) (*Archive, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	type item struct {
		id   string
		url  string
		data []byte
		err  error
	}
	var items []*item
	for _, r := range b.Records {
		if r.Status != model.StatusPending {
			continue
		}
		items = append(items, &item{id: r.ID(), url: strings.TrimSpace(r.Get(model.ColumnResume))})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, it := range items {
		if it.url == "" {
			it.err = eris.Wrap(model.ErrFetch, "no resume url")
			continue
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, opts.Timeout)
			defer cancel()
			it.data, it.err = f.Fetch(fctx, it.url)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "batch: materialize %s", b.ID)
	}

	aw := fetcher.NewArchiveWriter()
	arc := &Archive{}
	for _, it := range items {
		if it.err != nil {
			zap.L().Warn("batch: fetch failed, row omitted",
				zap.String("batch", b.ID),
				zap.String("row", it.id),
				zap.String("url", it.url),
				zap.Error(it.err),
			)
			arc.Skipped = append(arc.Skipped, it.id)
			if opts.OnFetchFailure != nil {
				opts.OnFetchFailure(it.id, it.err)
			}
			continue
		}
		if _, err := aw.Add(it.id, fetcher.EntryName(it.id, it.url), it.data); err != nil {
			return nil, eris.Wrapf(model.ErrBatch, "batch: archive %s: %v", b.ID, err)
		}
		arc.IDs = append(arc.IDs, it.id)
	}

	data, err := aw.Bytes()
	if err != nil {
		return nil, eris.Wrapf(model.ErrBatch, "batch: archive %s: %v", b.ID, err)
	}
	arc.Data = data

	zap.L().Info("batch: materialized",
		zap.String("batch", b.ID),
		zap.Int("entries", len(arc.IDs)),
		zap.Int("skipped", len(arc.Skipped)),
	)
	return arc, nil
}
