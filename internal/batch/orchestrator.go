package batch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/resilience"
	"github.com/sells-group/candidate-cli/internal/store"
	"github.com/sells-group/candidate-cli/internal/table"
	"github.com/sells-group/candidate-cli/pkg/extract"
)

// Batch outcomes reported to a Recorder.
const (
	OutcomeMerged  = "merged"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Recorder receives batch-level counts.
type Recorder interface {
	BatchDone(outcome string)
	FetchFailed()
	RowsMerged(status model.Status, n int)
}

type nopRecorder struct{}

func (nopRecorder) BatchDone(string)             {}
func (nopRecorder) FetchFailed()                 {}
func (nopRecorder) RowsMerged(model.Status, int) {}

// Config holds the orchestrator's directories and limits.
type Config struct {
	InputDir  string
	OutputDir string
	BatchDir  string
	Size      int
	Fetch     MaterializeOptions
	Retry     resilience.RetryConfig
}

// BatchOutcome is the result of one batch.
type BatchOutcome struct {
	ID        string           `json:"id"`
	State     model.BatchState `json:"state"`
	Rows      int              `json:"rows"`
	Submitted int              `json:"submitted"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Resumed   bool             `json:"resumed"`
	Err       error            `json:"-"`
}

// FileOutcome is the result of one input file.
type FileOutcome struct {
	Name         string         `json:"name"`
	Replayed     int            `json:"replayed"`
	Batches      []BatchOutcome `json:"batches"`
	Checkpointed bool           `json:"checkpointed"`
	Err          error          `json:"-"`
}

// RunOutcome is the result of Run.
type RunOutcome struct {
	Files   []FileOutcome `json:"files"`
	Aborted bool          `json:"aborted"`
}

// Orchestrator moves preprocessed files through extraction.
type Orchestrator struct {
	cfg      Config
	journal  store.Journal
	fetcher  fetcher.Fetcher
	client   extract.Client
	breaker  *resilience.Breaker
	gate     Gate
	recorder Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGate installs an operator gate consulted before every batch.
func WithGate(g Gate) Option {
	return func(o *Orchestrator) {
		o.gate = g
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithBreaker guards extraction calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(o *Orchestrator) {
		o.breaker = b
	}
}

// New creates an Orchestrator.
func New(cfg Config, j store.Journal, f fetcher.Fetcher, c extract.Client, opts ...Option) *Orchestrator {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	o := &Orchestrator{
		cfg:      cfg,
		journal:  j,
		fetcher:  f,
		client:   c,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerConfig("extractor")),
		gate:     AlwaysProceed{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg.Retry.OnRetry == nil {
		o.cfg.Retry.OnRetry = resilience.RetryLogger("extractor", "submit batch")
	}
	return o
}

// Run processes every unprocessed input file in name order. Problems with
// one file, batch or row are logged and isolated; Run only fails when ctx
// ends or the journal cannot be written. A declined gate stops the run
// before the next batch with Aborted set.
func (o *Orchestrator) Run(ctx context.Context) (*RunOutcome, error) {
	names, err := Discover(o.cfg.InputDir, o.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	out := &RunOutcome{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "batch: run")
		}
		fo, aborted, err := o.processFile(ctx, name)
		out.Files = append(out.Files, fo)
		if err != nil {
			return out, err
		}
		if aborted {
			out.Aborted = true
			zap.L().Warn("batch: run aborted by operator", zap.String("file", name))
			break
		}
	}
	return out, nil
}

func (o *Orchestrator) processFile(ctx context.Context, name string) (FileOutcome, bool, error) {
	fo := FileOutcome{Name: name}
	log := zap.L().With(zap.String("file", name))
	start := time.Now()

	tbl, err := table.Load(ctx, filepath.Join(o.cfg.InputDir, name))
	if err != nil {
		log.Error("batch: skipping file", zap.Error(err))
		fo.Err = err
		return fo, false, nil
	}
	if !tbl.HasColumn(model.ColumnStatus) {
		fo.Err = eris.Wrapf(model.ErrValidation, "batch: %s has no %s column", name, model.ColumnStatus)
		log.Error("batch: skipping file", zap.Error(fo.Err))
		return fo, false, nil
	}

	batches, resumed, replayed, err := o.prepare(ctx, tbl)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			fo.Err = err
			log.Error("batch: skipping file", zap.Error(err))
			return fo, false, nil
		}
		return fo, false, err
	}
	fo.Replayed = replayed

	failed := false
	for i, b := range batches {
		ok, err := o.gate.Proceed(ctx, BatchInfo{File: name, ID: b.ID, Index: i + 1, Total: len(batches), Rows: len(b.Records)})
		if err != nil {
			return fo, false, eris.Wrap(err, "batch: gate")
		}
		if !ok {
			return fo, true, nil
		}

		bo, err := o.processBatch(ctx, tbl, b)
		if err != nil {
			return fo, false, err
		}
		bo.Resumed = resumed[b.ID]
		fo.Batches = append(fo.Batches, bo)
		if bo.Err != nil {
			failed = true
		}
	}

	if failed {
		log.Warn("batch: file left for re-run", zap.Int("batches", len(batches)))
		return fo, false, nil
	}

	dest := filepath.Join(o.cfg.OutputDir, name)
	if err := table.Save(dest, tbl); err != nil {
		return fo, false, eris.Wrapf(err, "batch: checkpoint %s", name)
	}
	fo.Checkpointed = true
	log.Info("batch: file checkpointed",
		zap.String("output", dest),
		zap.Int("batches", len(batches)),
		zap.Int("replayed", replayed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fo, false, nil
}

// prepare replays journaled rows, reopens unfinished batches and splits the
// rows no batch covers. Reopened batches come first, keyed in the returned
// set.
func (o *Orchestrator) prepare(ctx context.Context, tbl *model.Table) ([]*model.Batch, map[string]bool, int, error) {
	rows, err := o.journal.RowResults(ctx, tbl.Name)
	if err != nil {
		return nil, nil, 0, eris.Wrap(err, "batch: read journaled rows")
	}
	replayed := Replay(tbl, rows)

	open, err := o.journal.OpenBatches(ctx, tbl.Name)
	if err != nil {
		return nil, nil, 0, eris.Wrap(err, "batch: read open batches")
	}

	var batches []*model.Batch
	resumed := make(map[string]bool)
	covered := make(map[*model.Record]bool)
	for _, entry := range open {
		if _, err := os.Stat(entry.Path); errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("batch: persisted batch missing, rows will be split again",
				zap.String("batch", entry.ID), zap.String("path", entry.Path))
			if err := o.journal.SetBatchState(ctx, entry.ID, model.BatchAbandoned, "batch file missing"); err != nil {
				return nil, nil, 0, err
			}
			continue
		}
		b, err := Load(ctx, entry, tbl)
		if err != nil {
			return nil, nil, 0, err
		}
		for _, r := range b.Records {
			covered[r] = true
		}
		batches = append(batches, b)
		resumed[b.ID] = true
	}

	var rest []*model.Record
	for _, r := range tbl.Pending() {
		if !covered[r] {
			rest = append(rest, r)
		}
	}
	fresh, err := split(tbl, rest, o.cfg.Size, o.cfg.BatchDir)
	if err != nil {
		return nil, nil, 0, err
	}
	for _, b := range fresh {
		entry := model.BatchEntry{ID: b.ID, Origin: b.Origin, Path: b.Path, State: model.BatchSplit, Rows: len(b.Records)}
		if err := o.journal.RecordBatch(ctx, entry); err != nil {
			return nil, nil, 0, eris.Wrap(err, "batch: journal split")
		}
	}

	if replayed > 0 || len(batches) > 0 {
		zap.L().Info("batch: resuming file",
			zap.String("file", tbl.Name),
			zap.Int("replayed_rows", replayed),
			zap.Int("reopened_batches", len(batches)),
			zap.Int("new_batches", len(fresh)),
		)
	}
	return append(batches, fresh...), resumed, replayed, nil
}

func (o *Orchestrator) processBatch(ctx context.Context, tbl *model.Table, b *model.Batch) (BatchOutcome, error) {
	bo := BatchOutcome{ID: b.ID, Rows: len(b.Records)}
	log := zap.L().With(zap.String("batch", b.ID), zap.String("file", b.Origin))
	start := time.Now()

	fetchOpts := o.cfg.Fetch
	userHook := fetchOpts.OnFetchFailure
	fetchOpts.OnFetchFailure = func(id string, err error) {
		o.recorder.FetchFailed()
		if userHook != nil {
			userHook(id, err)
		}
	}

	arc, err := Materialize(ctx, b, o.fetcher, fetchOpts)
	if err != nil {
		if ctx.Err() != nil {
			return bo, err
		}
		return o.fail(ctx, bo, err)
	}
	bo.Skipped = len(arc.Skipped)

	if len(arc.IDs) == 0 {
		log.Warn("batch: no resumes to submit, skipping")
		bo.State = model.BatchFailed
		if err := o.journal.SetBatchState(ctx, b.ID, model.BatchFailed, "no resumes to submit"); err != nil {
			return bo, eris.Wrap(err, "batch: journal state")
		}
		o.recorder.BatchDone(OutcomeSkipped)
		return bo, nil
	}

	if err := o.journal.SetBatchState(ctx, b.ID, model.BatchSubmitted, ""); err != nil {
		return bo, eris.Wrap(err, "batch: journal state")
	}
	bo.Submitted = len(arc.IDs)

	req := extract.Request{IDs: arc.IDs, Archive: arc.Data, Filename: b.ID + ".zip"}
	results, err := resilience.DoVal(ctx, o.cfg.Retry, func(ctx context.Context) ([]extract.Result, error) {
		return resilience.Guard(ctx, o.breaker, func(ctx context.Context) ([]extract.Result, error) {
			return o.client.Extract(ctx, req)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return bo, eris.Wrapf(ctx.Err(), "batch: submit %s", b.ID)
		}
		return o.fail(ctx, bo, err)
	}

	stats := Merge(tbl, b.ID, results)
	if err := o.journal.RecordRows(ctx, stats.Rows); err != nil {
		return bo, eris.Wrap(err, "batch: journal rows")
	}
	if err := o.journal.SetBatchState(ctx, b.ID, model.BatchMerged, ""); err != nil {
		return bo, eris.Wrap(err, "batch: journal state")
	}
	bo.State = model.BatchMerged
	bo.Succeeded, bo.Failed = stats.Succeeded, stats.Failed
	o.recorder.BatchDone(OutcomeMerged)
	o.recorder.RowsMerged(model.StatusSuccess, stats.Succeeded)
	o.recorder.RowsMerged(model.StatusFailed, stats.Failed)

	log.Info("batch: merged",
		zap.Int("submitted", bo.Submitted),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("failed", stats.Failed),
		zap.Int("unknown", stats.Unknown),
		zap.Int("skipped", bo.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	return bo, nil
}

func (o *Orchestrator) fail(ctx context.Context, bo BatchOutcome, cause error) (BatchOutcome, error) {
	bo.State = model.BatchFailed
	bo.Err = eris.Wrapf(model.ErrBatch, "batch %s: %v", bo.ID, cause)
	zap.L().Error("batch: failed, will retry on next run", zap.String("batch", bo.ID), zap.Error(cause))
	if err := o.journal.SetBatchState(ctx, bo.ID, model.BatchFailed, cause.Error()); err != nil {
		return bo, eris.Wrap(err, "batch: journal state")
	}
	o.recorder.BatchDone(OutcomeFailed)
	return bo, nil
}
