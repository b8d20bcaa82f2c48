package model

import "github.com/rotisserie/eris"

// Error classes. Callers wrap these with eris and test with errors.Is.
var (
	// ErrValidation means an input table is unreadable or lacks a required
	// column. It is fatal for that file only.
	ErrValidation = eris.New("validation error")
	// ErrNoMatch means no stage resolved a category.
	ErrNoMatch = eris.New("no match")
	// ErrFetch means a single artifact could not be retrieved.
	ErrFetch = eris.New("fetch failure")
	// ErrBatch means a whole batch could not be archived or submitted.
	ErrBatch = eris.New("batch failure")
	// ErrMerge means one extraction result could not be written into its row.
	ErrMerge = eris.New("merge failure")
	// ErrEmptyTable is returned when there are no rows to transform.
	ErrEmptyTable = eris.New("empty table")
)
