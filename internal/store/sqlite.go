package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/candidate-cli/internal/model"
)

// SQLiteJournal implements Journal using modernc.org/sqlite.
type SQLiteJournal struct {
	db *sql.DB
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer process, one connection: pragmas below are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteJournal{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	origin     TEXT NOT NULL,
	path       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT 'split',
	rows       INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS row_results (
	origin     TEXT NOT NULL,
	row_id     TEXT NOT NULL,
	batch_id   TEXT NOT NULL REFERENCES batches(id),
	status     INTEGER NOT NULL,
	fields     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (origin, row_id)
);

CREATE INDEX IF NOT EXISTS idx_batches_origin_state ON batches(origin, state);
CREATE INDEX IF NOT EXISTS idx_row_results_batch_id ON row_results(batch_id);
`

// Migrate creates the journal tables.
func (s *SQLiteJournal) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// RecordBatch inserts a newly split batch.
func (s *SQLiteJournal) RecordBatch(ctx context.Context, e model.BatchEntry) error {
	now := time.Now().UTC()
	if e.State == "" {
		e.State = model.BatchSplit
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, origin, path, state, rows, error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Origin, e.Path, string(e.State), e.Rows, e.Error, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert batch %s", e.ID)
	}
	return nil
}

// SetBatchState moves a batch to state, recording errMsg.
func (s *SQLiteJournal) SetBatchState(ctx context.Context, id string, state model.BatchState, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(state), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch state %s", id)
	}
	return checkRowsAffected(res, "batch", id)
}

const batchColumns = `id, origin, path, state, rows, error, created_at, updated_at`

// GetBatch returns one batch entry.
func (s *SQLiteJournal) GetBatch(ctx context.Context, id string) (*model.BatchEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	e, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("batch not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan batch")
	}
	return e, nil
}

// ListBatches returns batches matching filter, oldest first.
func (s *SQLiteJournal) ListBatches(ctx context.Context, filter BatchFilter) ([]model.BatchEntry, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE 1=1`
	var args []any

	if filter.Origin != "" {
		query += ` AND origin = ?`
		args = append(args, filter.Origin)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY created_at, rowid`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return s.queryBatches(ctx, query, args...)
}

// OpenBatches returns the batches of origin that still need work, in the
// order they were split.
func (s *SQLiteJournal) OpenBatches(ctx context.Context, origin string) ([]model.BatchEntry, error) {
	return s.queryBatches(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE origin = ? AND state IN (?, ?, ?) ORDER BY created_at, rowid`,
		origin, string(model.BatchSplit), string(model.BatchSubmitted), string(model.BatchFailed),
	)
}

func (s *SQLiteJournal) queryBatches(ctx context.Context, query string, args ...any) ([]model.BatchEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.BatchEntry
	for rows.Next() {
		e, err := scanBatch(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch")
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches iterate")
	}
	return out, nil
}

// RecordRows upserts merged row results in one transaction.
func (s *SQLiteJournal) RecordRows(ctx context.Context, results []model.RowResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO row_results (origin, row_id, batch_id, status, fields, error, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (origin, row_id) DO UPDATE SET
	batch_id = excluded.batch_id, status = excluded.status, fields = excluded.fields,
	error = excluded.error, updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare row upsert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, r := range results {
		var fields sql.NullString
		if len(r.Fields) > 0 {
			b, err := json.Marshal(r.Fields)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal fields")
			}
			fields = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.Origin, r.RowID, r.BatchID, int(r.Status), fields, r.Error, now); err != nil {
			return eris.Wrapf(err, "sqlite: upsert row %s", r.RowID)
		}
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit rows")
	}
	return nil
}

// RowResults returns every journaled row of origin.
func (s *SQLiteJournal) RowResults(ctx context.Context, origin string) ([]model.RowResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT origin, row_id, batch_id, status, fields, error FROM row_results WHERE origin = ? ORDER BY rowid`,
		origin,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list row results")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RowResult
	for rows.Next() {
		var (
			r      model.RowResult
			status int
			fields sql.NullString
		)
		if err := rows.Scan(&r.Origin, &r.RowID, &r.BatchID, &status, &fields, &r.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row result")
		}
		r.Status = model.Status(status)
		if fields.Valid {
			if err := json.Unmarshal([]byte(fields.String), &r.Fields); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal fields")
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list row results iterate")
	}
	return out, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*model.BatchEntry, error) {
	var e model.BatchEntry
	var state string
	if err := row.Scan(&e.ID, &e.Origin, &e.Path, &state, &e.Rows, &e.Error, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.State = model.BatchState(state)
	return &e, nil
}
