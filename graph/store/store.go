// Package store persists per-session scheduling state between bars.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested session or checkpoint does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by database-backed stores after Close.
var ErrClosed = errors.New("store is closed")

// Store persists the scheduling state of playback sessions.
//
// A session is a sequence of compiled bars. Each saved record is keyed by
// session ID and step, where step counts the bars compiled so far (the first
// compiled bar saves step 1). barIndex is the loop position that produced
// the state and is kept for inspection.
//
// Checkpoints are named snapshots independent of the step history.
//
// Type parameter S is the state type to persist. Database-backed stores
// require it to be JSON-serializable.
type Store[S any] interface {
	// SaveBar persists the state after one compiled bar. Saving an existing
	// (sessionID, step) pair replaces it.
	SaveBar(ctx context.Context, sessionID string, step int, barIndex int, state S) error

	// LoadLatest returns the state with the highest step of a session.
	// Returns ErrNotFound if the session has no saved bars.
	LoadLatest(ctx context.Context, sessionID string) (state S, step int, err error)

	// SaveCheckpoint creates or replaces a named snapshot.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint returns a named snapshot.
	// Returns ErrNotFound if cpID doesn't exist.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)

	// DeleteSession removes every saved bar of a session. Checkpoints are
	// left in place. Deleting an unknown session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error
}

// BarRecord is one saved bar of a session.
type BarRecord[S any] struct {
	Step     int `json:"step"`
	BarIndex int `json:"barIndex"`
	State    S   `json:"state"`
}

// Checkpoint is a named snapshot of session state.
type Checkpoint[S any] struct {
	ID    string `json:"id"`
	State S      `json:"state"`
	Step  int    `json:"step"`
}
