// Package store persists the batch journal and reads taxonomy data from
// relational sources.
package store

import (
	"context"

	"github.com/sells-group/candidate-cli/internal/model"
)

// BatchFilter specifies criteria for listing journaled batches.
type BatchFilter struct {
	Origin string           `json:"origin,omitempty"`
	State  model.BatchState `json:"state,omitempty"`
	Limit  int              `json:"limit,omitempty"`
}

// Journal records every batch and every merged row so an interrupted run
// can resume without redoing finished work.
type Journal interface {
	// Batches
	RecordBatch(ctx context.Context, entry model.BatchEntry) error
	SetBatchState(ctx context.Context, id string, state model.BatchState, errMsg string) error
	GetBatch(ctx context.Context, id string) (*model.BatchEntry, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]model.BatchEntry, error)
	OpenBatches(ctx context.Context, origin string) ([]model.BatchEntry, error)

	// Row results
	RecordRows(ctx context.Context, rows []model.RowResult) error
	RowResults(ctx context.Context, origin string) ([]model.RowResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
