package model

import "time"

// BatchState is the journal state of a batch.
type BatchState string

// Batch states in lifecycle order.
const (
	BatchSplit     BatchState = "split"
	BatchSubmitted BatchState = "submitted"
	BatchMerged    BatchState = "merged"
	BatchFailed    BatchState = "failed"
	// BatchAbandoned marks a batch whose persisted file is gone. Its rows
	// are split again.
	BatchAbandoned BatchState = "abandoned"
)

// Open reports whether a batch in this state still needs work.
func (s BatchState) Open() bool {
	return s == BatchSplit || s == BatchSubmitted || s == BatchFailed
}

// Batch is a contiguous chunk of pending records from one input file.
// It is persisted once and never rewritten.
type Batch struct {
	ID      string    `json:"id"`
	Origin  string    `json:"origin"`
	Path    string    `json:"path"`
	Records []*Record `json:"-"`
}

// IDs returns the record identifiers of the batch in order.
func (b *Batch) IDs() []string {
	ids := make([]string, 0, len(b.Records))
	for _, r := range b.Records {
		ids = append(ids, r.ID())
	}
	return ids
}

// BatchEntry is a journal row describing one batch.
type BatchEntry struct {
	ID        string     `json:"id"`
	Origin    string     `json:"origin"`
	Path      string     `json:"path"`
	State     BatchState `json:"state"`
	Rows      int        `json:"rows"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RowResult is a journaled per-row merge outcome.
type RowResult struct {
	Origin  string            `json:"origin"`
	BatchID string            `json:"batch_id"`
	RowID   string            `json:"row_id"`
	Status  Status            `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
	Error   string            `json:"error,omitempty"`
}
