// Package model defines the records, tables and vocabulary types shared across packages.
package model

import (
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
)

// Status is the per-record lifecycle marker.
type Status int

// Record statuses. Only pending records may change status.
const (
	StatusPending  Status = 0
	StatusSuccess  Status = 1
	StatusFailed   Status = 2
	StatusComplete Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusComplete
}

// CanTransition reports whether a record may move from s to next.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() {
		return false
	}
	return s == next || s == StatusPending
}

// ParseStatus parses the numeric status stored in tables.
func ParseStatus(v string) (Status, error) {
	if v == "" {
		return StatusPending, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "model: parse status %q", v)
	}
	s := Status(int(f))
	if float64(s) != f || !s.Valid() {
		return 0, eris.Errorf("model: invalid status %q", v)
	}
	return s, nil
}

// Column names written by the normalizer.
const (
	ColumnID       = "id"
	ColumnSkill    = "skill"
	ColumnRole     = "role"
	ColumnLevel    = "level"
	ColumnCity     = "city"
	ColumnMobile   = "mobile"
	ColumnWhatsApp = "whatsapp"
	ColumnEmail    = "email"
	ColumnStatus   = "status"
	ColumnResume   = "resume"
)

// Raw input columns read by the normalizer, after the legacy rename.
const (
	ColumnOldSkills   = "old_skills"
	ColumnOldCity     = "old_city"
	ColumnState       = "state"
	ColumnOldMobile   = "old_mobile"
	ColumnOldWhatsApp = "old_whatsapp"
	ColumnOldEmail    = "old_email"
)

// NormalizedColumns are appended to every output table, in order.
var NormalizedColumns = []string{
	ColumnSkill, ColumnRole, ColumnLevel, ColumnCity,
	ColumnMobile, ColumnWhatsApp, ColumnEmail, ColumnStatus,
}

// Record is one row of a candidate table. Empty values are null.
type Record struct {
	Index  int               `json:"index"`
	Values map[string]string `json:"values"`
	Status Status            `json:"status"`
}

// NewRecord creates an empty pending record at index i.
func NewRecord(i int) *Record {
	return &Record{Index: i, Values: make(map[string]string)}
}

// Get returns the value of column, or "" when absent.
func (r *Record) Get(column string) string {
	return r.Values[column]
}

// Set writes a column value.
func (r *Record) Set(column, value string) {
	if r.Values == nil {
		r.Values = make(map[string]string)
	}
	r.Values[column] = value
}

// ID returns the record identifier column.
func (r *Record) ID() string {
	return r.Values[ColumnID]
}

// SetStatus moves the record to next, refusing backward transitions.
func (r *Record) SetStatus(next Status) error {
	if !r.Status.CanTransition(next) {
		return eris.Errorf("model: record %d cannot move from %s to %s", r.Index, r.Status, next)
	}
	r.Status = next
	return nil
}

// Table is an ordered set of records with an ordered column list.
type Table struct {
	Name    string    `json:"name"`
	Columns []string  `json:"columns"`
	Records []*Record `json:"records"`
}

// HasColumn reports whether the table declares column.
func (t *Table) HasColumn(column string) bool {
	return slices.Contains(t.Columns, column)
}

// EnsureColumn appends column when it is not already declared.
func (t *Table) EnsureColumn(column string) {
	if !t.HasColumn(column) {
		t.Columns = append(t.Columns, column)
	}
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Pending returns the pending records in table order.
func (t *Table) Pending() []*Record {
	var out []*Record
	for _, r := range t.Records {
		if r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out
}

// ByID indexes records by identifier. Records without an id are skipped.
func (t *Table) ByID() map[string]*Record {
	m := make(map[string]*Record, len(t.Records))
	for _, r := range t.Records {
		if id := r.ID(); id != "" {
			m[id] = r
		}
	}
	return m
}

// Ambiguous returns the ids carried by more than one record.
func (t *Table) Ambiguous() map[string]bool {
	seen := make(map[string]int, len(t.Records))
	for _, r := range t.Records {
		if id := r.ID(); id != "" {
			seen[id]++
		}
	}
	out := make(map[string]bool)
	for id, n := range seen {
		if n > 1 {
			out[id] = true
		}
	}
	return out
}

// Row renders a record as cells in column order. The status column is
// rendered from the record status.
func (t *Table) Row(r *Record) []string {
	row := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if c == ColumnStatus {
			row[i] = strconv.Itoa(int(r.Status))
			continue
		}
		row[i] = r.Values[c]
	}
	return row
}

// FromRows builds a table from a header row and data rows. When a status
// column is present it is parsed into each record's status.
func FromRows(name string, header []string, rows [][]string) (*Table, error) {
	t := &Table{Name: name, Columns: slices.Clone(header)}
	for i, row := range rows {
		r := NewRecord(i)
		for j, c := range header {
			if j < len(row) {
				r.Values[c] = row[j]
			} else {
				r.Values[c] = ""
			}
		}
		if raw, ok := r.Values[ColumnStatus]; ok {
			s, err := ParseStatus(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "model: row %d", i)
			}
			r.Status = s
			delete(r.Values, ColumnStatus)
		}
		t.Records = append(t.Records, r)
	}
	return t, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: slices.Clone(t.Columns)}
	for _, r := range t.Records {
		c := &Record{Index: r.Index, Status: r.Status, Values: make(map[string]string, len(r.Values))}
		for k, v := range r.Values {
			c.Values[k] = v
		}
		out.Records = append(out.Records, c)
	}
	return out
}
