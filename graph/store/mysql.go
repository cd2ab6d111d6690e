package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S].
//
// It lets several playback processes share session history. The schema
// mirrors SQLiteStore with native JSON columns.
//
// Type parameter S must be JSON-serializable.
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore connects to dsn and creates the tables if needed.
//
// DSN format:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
//
// Never hardcode credentials; read the DSN from the environment:
//
//	st, err := store.NewMySQLStore[graph.State](os.Getenv("MYSQL_DSN"))
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m := &MySQLStore[S]{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	barsTable := `
		CREATE TABLE IF NOT EXISTS session_bars (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			session_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			bar_index INT NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_session_id (session_id),
			UNIQUE KEY unique_session_step (session_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, barsTable); err != nil {
		return fmt.Errorf("failed to create session_bars table: %w", err)
	}

	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS session_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			checkpoint_id VARCHAR(255) NOT NULL UNIQUE,
			state JSON NOT NULL,
			step INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("failed to create session_checkpoints table: %w", err)
	}
	return nil
}

func (m *MySQLStore[S]) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// SaveBar inserts or replaces the record for (sessionID, step).
func (m *MySQLStore[S]) SaveBar(ctx context.Context, sessionID string, step int, barIndex int, state S) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO session_bars (session_id, step, bar_index, state)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			bar_index = VALUES(bar_index),
			state = VALUES(state)
	`
	if _, err := m.db.ExecContext(ctx, query, sessionID, step, barIndex, stateJSON); err != nil {
		return fmt.Errorf("failed to save bar: %w", err)
	}
	return nil
}

// LoadLatest returns the highest step saved for sessionID.
func (m *MySQLStore[S]) LoadLatest(ctx context.Context, sessionID string) (state S, step int, err error) {
	if err := m.checkOpen(); err != nil {
		return state, 0, err
	}

	query := `
		SELECT step, state
		FROM session_bars
		WHERE session_id = ?
		ORDER BY step DESC
		LIMIT 1
	`

	var stateJSON []byte
	err = m.db.QueryRowContext(ctx, query, sessionID).Scan(&step, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		var zero S
		return zero, 0, ErrNotFound
	}
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to load latest bar: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// SaveCheckpoint inserts or replaces a named checkpoint.
func (m *MySQLStore[S]) SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO session_checkpoints (checkpoint_id, state, step)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			state = VALUES(state),
			step = VALUES(step)
	`
	if _, err := m.db.ExecContext(ctx, query, cpID, stateJSON, step); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns a named checkpoint.
func (m *MySQLStore[S]) LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error) {
	if err := m.checkOpen(); err != nil {
		return state, 0, err
	}

	query := `
		SELECT state, step
		FROM session_checkpoints
		WHERE checkpoint_id = ?
	`

	var stateJSON []byte
	err = m.db.QueryRowContext(ctx, query, cpID).Scan(&stateJSON, &step)
	if errors.Is(err, sql.ErrNoRows) {
		var zero S
		return zero, 0, ErrNotFound
	}
	if err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// DeleteSession removes every bar row of sessionID.
func (m *MySQLStore[S]) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, "DELETE FROM session_bars WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

// Close closes the connection pool. Calling Close twice is safe.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
