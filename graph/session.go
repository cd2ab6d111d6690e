package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hambonesoftware/MIND/graph/emit"
	"github.com/hambonesoftware/MIND/graph/store"
)

// SessionConfig holds the fixed inputs of a playback session.
type SessionConfig struct {
	// ID names the session in the store and in events. Empty generates a
	// random UUID.
	ID string

	Seed     int64
	BPM      float64
	EntryIDs []string
}

// Session plays a graph bar after bar, persisting the scheduling state
// after every bar so playback can resume in another process.
//
// The loop position is derived from the number of bars the store holds:
// the n-th compiled bar (counting from zero) has bar index n modulo the
// engine's loop length. Calls on one Session are serialized.
type Session struct {
	mu     sync.Mutex
	id     string
	cfg    SessionConfig
	engine *Engine
	graph  *Graph
	store  store.Store[State]
}

// NewSession creates a session over g, which must pass Validate. Sessions
// sharing an ID and a store share their history.
func NewSession(engine *Engine, g *Graph, st store.Store[State], cfg SessionConfig) (*Session, error) {
	if engine == nil {
		return nil, &EngineError{Message: "engine is required", Code: "MISSING_ENGINE"}
	}
	if g == nil {
		return nil, &EngineError{Message: "graph is required", Code: "MISSING_GRAPH", Cause: ErrNoGraph}
	}
	if st == nil {
		return nil, &EngineError{Message: "store is required", Code: "MISSING_STORE"}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	cfg.ID = id
	return &Session{id: id, cfg: cfg, engine: engine, graph: g, store: st}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SetGraph validates g and swaps it in for subsequent bars. An invalid graph
// leaves the current one in place. Running chains keep their state; tokens
// pointing at removed nodes are dropped with a warning on the next bar.
func (s *Session) SetGraph(g *Graph) error {
	if g == nil {
		return &EngineError{Message: "graph is required", Code: "MISSING_GRAPH", Cause: ErrNoGraph}
	}
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	return nil
}

// Advance compiles the next bar and saves the resulting state.
//
// A Go error is returned only when the store fails; scheduling problems are
// reported in the Response diagnostics.
func (s *Session) Advance(ctx context.Context) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, step, err := s.latest(ctx)
	if err != nil {
		return Response{}, err
	}

	bar := step % s.engine.LoopBars()
	resp := s.engine.CompileBar(ctx, Request{
		Graph:     s.graph,
		BarIndex:  bar,
		Seed:      s.cfg.Seed,
		BPM:       s.cfg.BPM,
		EntryIDs:  s.cfg.EntryIDs,
		State:     prev,
		SessionID: s.id,
	})
	if resp.State == nil {
		return resp, nil
	}

	saved, err := resp.State.Clone()
	if err != nil {
		return resp, &EngineError{Message: "failed to copy state", Code: "STATE_COPY", Cause: err}
	}
	if err := s.store.SaveBar(ctx, s.id, step+1, bar, *saved); err != nil {
		return resp, &EngineError{Message: fmt.Sprintf("failed to save bar %d", bar), Code: "STORE_ERROR", Cause: err}
	}
	return resp, nil
}

// Play advances n bars, stopping at the first store error or when ctx is
// done.
func (s *Session) Play(ctx context.Context, n int) ([]Response, error) {
	out := make([]Response, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		resp, err := s.Advance(ctx)
		out = append(out, resp)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// State returns the current scheduling state and the number of bars played.
// A session with no history returns a fresh state and 0.
func (s *Session) State(ctx context.Context) (*State, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, step, err := s.latest(ctx)
	if err != nil {
		return nil, 0, err
	}
	if st == nil {
		st = NewState()
	}
	return st, step, nil
}

// Reset discards the session history. The next Advance starts a fresh run
// at bar 0.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteSession(ctx, s.id); err != nil {
		return &EngineError{Message: "failed to reset session", Code: "STORE_ERROR", Cause: err}
	}
	s.engine.emitter.Emit(emit.Event{SessionID: s.id, Msg: "session_reset"})
	return nil
}

// Checkpoint saves the current state under label.
func (s *Session) Checkpoint(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, step, err := s.latest(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		st = NewState()
	}
	if err := s.store.SaveCheckpoint(ctx, s.checkpointID(label), *st, step); err != nil {
		return &EngineError{Message: fmt.Sprintf("failed to save checkpoint %q", label), Code: "STORE_ERROR", Cause: err}
	}
	s.engine.emitter.Emit(emit.Event{SessionID: s.id, Bar: st.BarIndex, Msg: "checkpoint_saved", Meta: map[string]interface{}{
		"label": label,
		"step":  step,
	}})
	return nil
}

// Restore rewinds the session to a checkpoint saved by Checkpoint. History
// recorded after the checkpoint is discarded.
func (s *Session) Restore(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, step, err := s.store.LoadCheckpoint(ctx, s.checkpointID(label))
	if errors.Is(err, store.ErrNotFound) {
		return &EngineError{Message: fmt.Sprintf("checkpoint %q not found", label), Code: "CHECKPOINT_NOT_FOUND", Cause: err}
	}
	if err != nil {
		return &EngineError{Message: fmt.Sprintf("failed to load checkpoint %q", label), Code: "STORE_ERROR", Cause: err}
	}

	if err := s.store.DeleteSession(ctx, s.id); err != nil {
		return &EngineError{Message: "failed to discard history", Code: "STORE_ERROR", Cause: err}
	}
	if step > 0 {
		bar := (step - 1) % s.engine.LoopBars()
		if err := s.store.SaveBar(ctx, s.id, step, bar, st); err != nil {
			return &EngineError{Message: "failed to restore checkpoint", Code: "STORE_ERROR", Cause: err}
		}
	}
	s.engine.emitter.Emit(emit.Event{SessionID: s.id, Bar: st.BarIndex, Msg: "checkpoint_restored", Meta: map[string]interface{}{
		"label": label,
		"step":  step,
	}})
	return nil
}

// latest loads the newest state. A session without history yields nil, 0.
func (s *Session) latest(ctx context.Context) (*State, int, error) {
	st, step, err := s.store.LoadLatest(ctx, s.id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, &EngineError{Message: "failed to load session state", Code: "STORE_ERROR", Cause: err}
	}
	st.ensure()
	return &st, step, nil
}

func (s *Session) checkpointID(label string) string {
	return s.id + ":" + label
}

// PlayLoop compiles bars consecutive bars starting at req.BarIndex without a
// store, threading the state from each Response into the next Request. The
// bar index wraps at the engine's loop length.
func PlayLoop(ctx context.Context, engine *Engine, req Request, bars int) []Response {
	out := make([]Response, 0, bars)
	loop := engine.LoopBars()
	for i := 0; i < bars; i++ {
		r := req
		r.BarIndex = (req.BarIndex + i) % loop
		resp := engine.CompileBar(ctx, r)
		out = append(out, resp)
		req.State = resp.State
	}
	return out
}
