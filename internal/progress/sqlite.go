package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	started_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at);
`

// SQLiteStore keeps one row per run. The connection pool is limited to a
// single connection, so every read-modify-write transaction is serialized.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	o := buildOptions(opts)
	return &SQLiteStore{db: db, now: o.now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// timeKey is fixed-width so lexical order matches time order.
func timeKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func scanRecord(row interface{ Scan(...any) error }, runID string) (*Record, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	var r Record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", runID, err)
	}
	return &r, nil
}

func (s *SQLiteStore) Initialize(ctx context.Context, in Init) (*Record, error) {
	if err := validRunID(in.RunID); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE run_id = ?", in.RunID).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, in.RunID)
	}

	r := newRecord(in, s.now())
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (run_id, record, started_at, updated_at) VALUES (?, ?, ?, ?)",
		r.WorkflowID, string(data), timeKey(r.StartTime), timeKey(r.LastUpdate)); err != nil {
		return nil, fmt.Errorf("inserting run %s: %w", in.RunID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) mutate(ctx context.Context, runID string, fn func(*Record, time.Time)) error {
	if err := validRunID(runID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r, err := scanRecord(tx.QueryRowContext(ctx, "SELECT record FROM runs WHERE run_id = ?", runID), runID)
	if err != nil {
		return err
	}
	fn(r, s.now())
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE runs SET record = ?, updated_at = ? WHERE run_id = ?",
		string(data), timeKey(r.LastUpdate), runID); err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Update(ctx context.Context, runID string, u Update) error {
	return s.mutate(ctx, runID, func(r *Record, now time.Time) { applyUpdate(r, u, now) })
}

func (s *SQLiteStore) Complete(ctx context.Context, runID string) error {
	return s.mutate(ctx, runID, applyComplete)
}

func (s *SQLiteStore) Fail(ctx context.Context, runID, reason, message string) error {
	return s.mutate(ctx, runID, func(r *Record, now time.Time) { applyFail(r, reason, message, now) })
}

func (s *SQLiteStore) Get(ctx context.Context, runID string) (*Snapshot, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	r, err := scanRecord(s.db.QueryRowContext(ctx, "SELECT record FROM runs WHERE run_id = ?", runID), runID)
	if err != nil {
		return nil, err
	}
	return derive(r, s.now()), nil
}

// List returns every record, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT run_id, record FROM runs ORDER BY started_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", id, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
