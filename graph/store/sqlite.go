package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It keeps session history in a single-file database and needs no server,
// which makes it the default for local playback that should survive a
// restart. WAL mode is enabled so readers do not block the writer.
//
// Schema:
//   - session_bars: one row per compiled bar
//   - session_checkpoints: named snapshots
//
// Type parameter S must be JSON-serializable.
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens or creates the database at path. ":memory:" gives an
// in-memory database that disappears on Close.
//
// Example:
//
//	st, err := store.NewSQLiteStore[graph.State]("./mind.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	barsTable := `
		CREATE TABLE IF NOT EXISTS session_bars (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			bar_index INTEGER NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id, step)
		)
	`
	if _, err := s.db.ExecContext(ctx, barsTable); err != nil {
		return fmt.Errorf("failed to create session_bars table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_bars_session_step ON session_bars(session_id, step)"); err != nil {
		return fmt.Errorf("failed to create idx_bars_session_step: %w", err)
	}

	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			checkpoint_id TEXT NOT NULL UNIQUE,
			state TEXT NOT NULL,
			step INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("failed to create session_checkpoints table: %w", err)
	}
	return nil
}

func (s *SQLiteStore[S]) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// SaveBar inserts or replaces the record for (sessionID, step).
func (s *SQLiteStore[S]) SaveBar(ctx context.Context, sessionID string, step int, barIndex int, state S) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO session_bars (session_id, step, bar_index, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, step) DO UPDATE SET
			bar_index = excluded.bar_index,
			state = excluded.state
	`
	if _, err := s.db.ExecContext(ctx, query, sessionID, step, barIndex, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save bar: %w", err)
	}
	return nil
}

// LoadLatest returns the highest step saved for sessionID.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, sessionID string) (state S, step int, err error) {
	if err := s.checkOpen(); err != nil {
		return state, 0, err
	}

	query := `
		SELECT step, state
		FROM session_bars
		WHERE session_id = ?
		ORDER BY step DESC
		LIMIT 1
	`

	var stateJSON string
	err = s.db.QueryRowContext(ctx, query, sessionID).Scan(&step, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		var zero S
		return zero, 0, ErrNotFound
	}
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to load latest bar: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// SaveCheckpoint inserts or replaces a named checkpoint.
func (s *SQLiteStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO session_checkpoints (checkpoint_id, state, step)
		VALUES (?, ?, ?)
		ON CONFLICT(checkpoint_id) DO UPDATE SET
			state = excluded.state,
			step = excluded.step,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, cpID, string(stateJSON), step); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns a named checkpoint.
func (s *SQLiteStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	if err := s.checkOpen(); err != nil {
		return state, 0, err
	}

	query := `
		SELECT state, step
		FROM session_checkpoints
		WHERE checkpoint_id = ?
	`

	var stateJSON string
	err = s.db.QueryRowContext(ctx, query, cpID).Scan(&stateJSON, &step)
	if errors.Is(err, sql.ErrNoRows) {
		var zero S
		return zero, 0, ErrNotFound
	}
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// DeleteSession removes every bar row of sessionID.
func (s *SQLiteStore[S]) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session_bars WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Path returns the database location passed to NewSQLiteStore.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}

// Close closes the database. Calling Close twice is safe.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
