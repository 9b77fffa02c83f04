// Package history keeps a local record of remote builds in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/compulim/remotebuild/internal/foundation/errors"
)

// Run is one invocation of the build workflow.
type Run struct {
	ID             string
	Handle         string
	Host           string
	Configuration  string
	CordovaVersion string
	ArchiveFiles   int64
	ArchiveBytes   int64
	ArchiveDigest  string
	Outcome        string // empty while running
	Error          string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Elapsed returns how long a finished run took, or zero while it is running.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StatusEvent is one status message observed while polling.
type StatusEvent struct {
	ID        int64
	RunID     string
	Status    string
	Message   string
	Timestamp time.Time
}

// Store persists runs and their status events.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the database at path. Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.HistoryError("failed to create history directory").WithCause(err).WithContext("path", path).Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.HistoryError("failed to open history database").WithCause(err).WithContext("path", path).Build()
	}
	// An in-memory database lives only as long as its single connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.HistoryError("failed to initialize history schema").WithCause(err).WithContext("path", path).Build()
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		handle TEXT NOT NULL DEFAULT '',
		host TEXT NOT NULL,
		configuration TEXT NOT NULL,
		cordova_version TEXT NOT NULL DEFAULT '',
		archive_files INTEGER NOT NULL DEFAULT 0,
		archive_bytes INTEGER NOT NULL DEFAULT 0,
		archive_digest TEXT NOT NULL DEFAULT '',
		outcome TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE TABLE IF NOT EXISTS status_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_status_events_run_id ON status_events(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, host, configuration, cordova_version, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Host, run.Configuration, run.CordovaVersion, run.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetHandle records the handle assigned by the remote service.
func (s *Store) SetHandle(ctx context.Context, runID, handle string) error {
	return s.update(ctx, `UPDATE runs SET handle = ? WHERE id = ?`, handle, runID)
}

// SetArchive records what was sent.
func (s *Store) SetArchive(ctx context.Context, runID string, files, size int64, digest, cordovaVersion string) error {
	return s.update(ctx,
		`UPDATE runs SET archive_files = ?, archive_bytes = ?, archive_digest = ?, cordova_version = COALESCE(NULLIF(?, ''), cordova_version) WHERE id = ?`,
		files, size, digest, cordovaVersion, runID)
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID, outcome, errMsg string, at time.Time) error {
	return s.update(ctx, `UPDATE runs SET outcome = ?, error = ?, finished_at = ? WHERE id = ?`,
		outcome, errMsg, at.UnixMilli(), runID)
}

func (s *Store) update(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run: no run with id %v", args[len(args)-1])
	}
	return nil
}

// AppendStatus stores one observed status message.
func (s *Store) AppendStatus(ctx context.Context, runID, status, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_events (run_id, status, message, timestamp) VALUES (?, ?, ?, ?)`,
		runID, status, message, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert status event: %w", err)
	}
	return nil
}

// Get returns one run.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	runs, err := s.query(ctx, `WHERE id = ?`, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NewError(errors.CategoryNotFound, "run not found").WithContext("run_id", runID).Build()
	}
	return &runs[0], nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, `ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
}

func (s *Store) query(ctx context.Context, clause string, args ...any) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, handle, host, configuration, cordova_version, archive_files, archive_bytes, archive_digest, outcome, error, started_at, finished_at FROM runs `+clause,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Handle, &r.Host, &r.Configuration, &r.CordovaVersion,
			&r.ArchiveFiles, &r.ArchiveBytes, &r.ArchiveDigest, &r.Outcome, &r.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished > 0 {
			r.FinishedAt = time.UnixMilli(finished)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Events returns the status events of a run in observation order.
func (s *Store) Events(ctx context.Context, runID string) ([]StatusEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, status, message, timestamp FROM status_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query status events: %w", err)
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		var e StatusEvent
		var ts int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Status, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan status event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}
