package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// States are copied through JSON on save and load, so callers may keep
// mutating the values they pass in or get back. MemStore is safe for
// concurrent use. Data is lost when the process exits.
type MemStore[S any] struct {
	mu          sync.RWMutex
	bars        map[string][]BarRecord[json.RawMessage] // sessionID -> bars
	checkpoints map[string]Checkpoint[json.RawMessage]  // cpID -> checkpoint
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemStore[graph.State]()
//	session, _ := graph.NewSession(engine, g, st, graph.SessionConfig{Seed: 7})
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		bars:        make(map[string][]BarRecord[json.RawMessage]),
		checkpoints: make(map[string]Checkpoint[json.RawMessage]),
	}
}

// SaveBar records a bar, replacing any record with the same step.
func (m *MemStore[S]) SaveBar(_ context.Context, sessionID string, step int, barIndex int, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record := BarRecord[json.RawMessage]{Step: step, BarIndex: barIndex, State: data}
	records := m.bars[sessionID]
	for i := range records {
		if records[i].Step == step {
			records[i] = record
			return nil
		}
	}
	m.bars[sessionID] = append(records, record)
	return nil
}

// LoadLatest returns the record with the highest step, regardless of the
// order in which records were saved.
func (m *MemStore[S]) LoadLatest(_ context.Context, sessionID string) (state S, step int, err error) {
	m.mu.RLock()
	records := m.bars[sessionID]
	if len(records) == 0 {
		m.mu.RUnlock()
		return state, 0, ErrNotFound
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Step > latest.Step {
			latest = r
		}
	}
	m.mu.RUnlock()

	if err := json.Unmarshal(latest.State, &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, latest.Step, nil
}

// History returns every saved bar of a session ordered by step.
func (m *MemStore[S]) History(_ context.Context, sessionID string) ([]BarRecord[S], error) {
	m.mu.RLock()
	records := append([]BarRecord[json.RawMessage](nil), m.bars[sessionID]...)
	m.mu.RUnlock()

	out := make([]BarRecord[S], 0, len(records))
	for _, r := range records {
		var s S
		if err := json.Unmarshal(r.State, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		out = append(out, BarRecord[S]{Step: r.Step, BarIndex: r.BarIndex, State: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// SaveCheckpoint creates or replaces a named checkpoint.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cpID] = Checkpoint[json.RawMessage]{ID: cpID, State: data, Step: step}
	return nil
}

// LoadCheckpoint returns a named checkpoint.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	cp, ok := m.checkpoints[cpID]
	m.mu.RUnlock()
	if !ok {
		return state, 0, ErrNotFound
	}
	if err := json.Unmarshal(cp.State, &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, cp.Step, nil
}

// DeleteSession drops the bar history of a session.
func (m *MemStore[S]) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bars, sessionID)
	return nil
}
