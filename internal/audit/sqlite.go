package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    run_id TEXT,
    dataset TEXT NOT NULL,
    stage TEXT,
    url TEXT,
    parameters TEXT NOT NULL DEFAULT '{}',
    outcome TEXT NOT NULL,
    reason TEXT,
    records INTEGER NOT NULL DEFAULT 0,
    pages INTEGER NOT NULL DEFAULT 0,
    object_key TEXT,
    error_message TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_dataset ON audit_log(dataset, timestamp DESC);
`

// SQLiteSink stores entries in an audit_log table
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the audit database at path.
// ":memory:" gives a throwaway database.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// One connection keeps ":memory:" a single database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Record(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	params := "{}"
	if len(e.Params) > 0 {
		if b, err := json.Marshal(e.Params); err == nil {
			params = string(b)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (entry_id, timestamp, run_id, dataset, stage, url, parameters,
			outcome, reason, records, pages, object_key, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), e.Time.Unix(), e.RunID, e.Dataset, e.Stage, e.URL, params,
		string(e.Outcome), e.Reason, e.Records, e.Pages, e.Key, e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// Recent returns the latest entries, newest first
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, run_id, dataset, stage, url, parameters, outcome, reason,
			records, pages, object_key, error_message
		FROM audit_log ORDER BY timestamp DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			ts      int64
			params  string
			outcome string
		)
		var runID, stage, url, reason, key, errMsg sql.NullString

		if err := rows.Scan(&ts, &runID, &e.Dataset, &stage, &url, &params, &outcome, &reason,
			&e.Records, &e.Pages, &key, &errMsg); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		e.Time = time.Unix(ts, 0)
		e.Outcome = Outcome(outcome)
		e.RunID = runID.String
		e.Stage = stage.String
		e.URL = url.String
		e.Reason = reason.String
		e.Key = key.String
		e.Error = errMsg.String
		if params != "{}" {
			_ = json.Unmarshal([]byte(params), &e.Params)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
