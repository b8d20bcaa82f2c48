package batch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// BatchInfo describes the batch a Gate is asked about.
type BatchInfo struct {
	File  string
	ID    string
	Index int
	Total int
	Rows  int
}

// Gate decides whether the next batch may start. Returning false ends the
// run cleanly.
type Gate interface {
	Proceed(ctx context.Context, info BatchInfo) (bool, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, info BatchInfo) (bool, error)

// Proceed calls f.
func (f GateFunc) Proceed(ctx context.Context, info BatchInfo) (bool, error) {
	return f(ctx, info)
}

// AlwaysProceed never stops a run.
type AlwaysProceed struct{}

// Proceed returns true.
func (AlwaysProceed) Proceed(context.Context, BatchInfo) (bool, error) {
	return true, nil
}

// PromptGate asks an operator before every batch. An empty line continues;
// "q" quits.
type PromptGate struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPromptGate reads answers from in and writes prompts to out.
func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{in: bufio.NewReader(in), out: out}
}

// Proceed prompts and waits for a line. End of input counts as quit.
func (g *PromptGate) Proceed(ctx context.Context, info BatchInfo) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	fmt.Fprintf(g.out, "Start batch %d/%d of %s (%s, %d rows)? [Enter to continue, q to quit] ", //nolint:errcheck
		info.Index, info.Total, info.File, info.ID, info.Rows)
	return g.answer()
}

// Confirm asks a free-form yes/no question with the same convention.
func (g *PromptGate) Confirm(question string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fmt.Fprintf(g.out, "%s [Enter to continue, q to quit] ", question) //nolint:errcheck
	return g.answer()
}

func (g *PromptGate) answer() (bool, error) {
	line, err := g.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, eris.Wrap(err, "batch: read answer")
	}
	if err == io.EOF && line == "" {
		return false, nil
	}
	return !strings.EqualFold(strings.TrimSpace(line), "q"), nil
}
