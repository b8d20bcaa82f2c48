package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-cli/internal/fetcher"
	"github.com/sells-group/candidate-cli/internal/model"
	"github.com/sells-group/candidate-cli/internal/resilience"
	"github.com/sells-group/candidate-cli/internal/store"
	"github.com/sells-group/candidate-cli/pkg/extract"
)

var inputHeader = []string{"id", "old_skills", "resume", "first_name", "education", "status"}

func resumeURL(id string) string {
	return "https://cdn.example.com/resumes/" + id + ".pdf"
}

func inputRows(n int) [][]string {
	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		id := strconv.Itoa(i)
		rows = append(rows, []string{id, "PGT Physics", resumeURL(id), "", "", "0"})
	}
	return rows
}

func writeInput(t *testing.T, dir, name string, header []string, rows [][]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	f, err := os.Create(filepath.Join(dir, name))
	require.NoError(t, err)
	require.NoError(t, fetcher.WriteCSV(f, header, rows))
	require.NoError(t, f.Close())
}

func readArchive(t *testing.T, data []byte) ([]string, map[string][]byte) {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	out := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		names = append(names, f.Name)
		out[f.Name] = b
	}
	return names, out
}

func candidateTable(t *testing.T, n int) *model.Table {
	t.Helper()
	tbl, err := model.FromRows("candidates.csv", inputHeader, inputRows(n))
	require.NoError(t, err)
	return tbl
}

type fakeFetcher struct {
	mu      sync.Mutex
	missing map[string]bool
	calls   int
	delay   func(url string) time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	missing := f.missing[url]
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(url)):
		case <-ctx.Done():
			return nil, eris.Wrap(model.ErrFetch, ctx.Err().Error())
		}
	}
	if missing {
		return nil, eris.Wrapf(model.ErrFetch, "%s: 404", url)
	}
	return []byte("%PDF " + url), nil
}

type fakeClient struct {
	mu       sync.Mutex
	requests []extract.Request
	fn       func(call int, req extract.Request) ([]extract.Result, error)
}

func (c *fakeClient) Extract(_ context.Context, req extract.Request) ([]extract.Result, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	call := len(c.requests)
	c.mu.Unlock()

	if c.fn != nil {
		return c.fn(call, req)
	}
	return succeedAll(req), nil
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func succeedAll(req extract.Request) []extract.Result {
	out := make([]extract.Result, 0, len(req.IDs))
	for _, id := range req.IDs {
		out = append(out, extract.Result{
			ID:     id,
			Status: extract.StatusSuccess,
			Fields: map[string]any{
				"first_name": "Name " + id,
				"education":  []any{map[string]any{"degree": "B.Ed"}},
				"unknown":    "ignored",
			},
		})
	}
	return out
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
	fetches  int
	merged   map[model.Status]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: map[string]int{}, merged: map[model.Status]int{}}
}

func (r *countingRecorder) BatchDone(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *countingRecorder) FetchFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
}

func (r *countingRecorder) RowsMerged(st model.Status, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged[st] += n
}

type env struct {
	cfg     Config
	journal *store.SQLiteJournal
	fetcher *fakeFetcher
	client  *fakeClient
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	j, err := store.NewSQLite(filepath.Join(root, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() }) //nolint:errcheck
	require.NoError(t, j.Migrate(context.Background()))

	return &env{
		cfg: Config{
			InputDir:  filepath.Join(root, "preprocessed"),
			OutputDir: filepath.Join(root, "processed"),
			BatchDir:  filepath.Join(root, "batches"),
			Size:      DefaultSize,
			Retry:     resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		},
		journal: j,
		fetcher: &fakeFetcher{missing: map[string]bool{}},
		client:  &fakeClient{},
	}
}

func (e *env) orchestrator(opts ...Option) *Orchestrator {
	return New(e.cfg, e.journal, e.fetcher, e.client, opts...)
}
