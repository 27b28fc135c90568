// Package history records finished playback runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"macroreplay/internal/playback"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
  run_id TEXT PRIMARY KEY,
  macro TEXT NOT NULL,
  loop INTEGER NOT NULL DEFAULT 0,
  iterations INTEGER NOT NULL,
  fired INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  outcome TEXT NOT NULL,             -- completed, stopped, failed
  error TEXT,
  started_at INTEGER NOT NULL,       -- unix ms
  ended_at INTEGER NOT NULL          -- unix ms
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_macro ON runs(macro);
`

// Entry is one recorded run.
type Entry struct {
	RunID      uuid.UUID `json:"run_id"`
	Macro      string    `json:"macro"`
	Loop       bool      `json:"loop"`
	Iterations int       `json:"iterations"`
	Fired      int       `json:"fired"`
	Skipped    int       `json:"skipped"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended"`
}

// Duration is the wall-clock length of the run, pauses included.
func (e Entry) Duration() time.Duration {
	return e.Ended.Sub(e.Started)
}

// FromSummary converts a playback summary.
func FromSummary(s playback.RunSummary) Entry {
	e := Entry{
		RunID:      s.RunID,
		Macro:      s.Macro,
		Loop:       s.Loop,
		Iterations: s.Iterations,
		Fired:      s.Fired,
		Skipped:    s.Skipped,
		Outcome:    s.Outcome(),
		Started:    s.Started,
		Ended:      s.Ended,
	}
	if s.Err != nil {
		e.Error = s.Err.Error()
	}
	return e
}

// Log is the run history database.
type Log struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure history: %w", err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Record stores a finished run. Recording the same run twice replaces the
// earlier row.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.RunID == uuid.Nil {
		return errors.New("history: entry without run id")
	}
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, macro, loop, iterations, fired, skipped, outcome, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.RunID.String(), e.Macro, e.Loop, e.Iterations, e.Fired, e.Skipped, e.Outcome, errText,
		e.Started.UnixMilli(), e.Ended.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", e.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. A non-positive limit
// returns every run. An empty macro matches all macros.
func (l *Log) Recent(ctx context.Context, macroName string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, macro, loop, iterations, fired, skipped, outcome, error, started_at, ended_at
		FROM runs
		WHERE (? = '' OR macro = ?)
		ORDER BY started_at DESC, run_id
		LIMIT ?
	`, macroName, macroName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			id                string
			errText           sql.NullString
			started, finished int64
		)
		if err := rows.Scan(&id, &e.Macro, &e.Loop, &e.Iterations, &e.Fired, &e.Skipped,
			&e.Outcome, &errText, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if e.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt run id %q: %w", id, err)
		}
		e.Error = errText.String
		e.Started = time.UnixMilli(started)
		e.Ended = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
