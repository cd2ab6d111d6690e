package graph

import (
	"context"
	"errors"
	"fmt"
)

// Replay checks that a graph still compiles to the same bars.
//
// Bar compilation is a pure function of the graph, the request fields and
// the incoming state: no wall clock, no global random source, and map keys
// are sorted whenever iteration order could leak into output. A Recording
// captures the digests of a run; Replay compiles the same bars again and
// reports the first divergence. This is how tests and tooling catch an
// accidental source of non-determinism, such as a compiler that reads
// time.Now.

// ErrReplayMismatch indicates that a replayed bar differs from its recording.
var ErrReplayMismatch = errors.New("replay mismatch")

// BarDigest identifies the outcome of one compiled bar.
type BarDigest struct {
	BarIndex     int    `json:"barIndex"`
	StateDigest  string `json:"stateDigest"`
	EventsDigest string `json:"eventsDigest"`
	Events       int    `json:"events"`
}

// DigestBar computes the BarDigest of resp.
func DigestBar(resp Response) (BarDigest, error) {
	sd, err := StateDigest(resp.State)
	if err != nil {
		return BarDigest{}, err
	}
	ed, err := EventsDigest(resp.Events)
	if err != nil {
		return BarDigest{}, err
	}
	return BarDigest{BarIndex: resp.BarIndex, StateDigest: sd, EventsDigest: ed, Events: len(resp.Events)}, nil
}

// Recording is the digest history of consecutive bars compiled from Start.
type Recording struct {
	Start Request     `json:"-"`
	Bars  []BarDigest `json:"bars"`
}

// Record compiles bars consecutive bars like PlayLoop and keeps their digests.
func Record(ctx context.Context, engine *Engine, req Request, bars int) (Recording, []Response, error) {
	responses := PlayLoop(ctx, engine, req, bars)
	rec := Recording{Start: req, Bars: make([]BarDigest, 0, len(responses))}
	for _, resp := range responses {
		d, err := DigestBar(resp)
		if err != nil {
			return Recording{}, responses, err
		}
		rec.Bars = append(rec.Bars, d)
	}
	return rec, responses, nil
}

// ReplayMismatchError reports the first bar whose replay diverged.
type ReplayMismatchError struct {
	Step  int
	Field string
	Want  string
	Got   string
}

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("replay mismatch at step %d: %s: want %s, got %s", e.Step, e.Field, e.Want, e.Got)
}

// Unwrap lets errors.Is(err, ErrReplayMismatch) match.
func (e *ReplayMismatchError) Unwrap() error {
	return ErrReplayMismatch
}

// Replay recompiles rec against g and returns a *ReplayMismatchError for the
// first differing bar. A nil g replays the recorded graph.
func Replay(ctx context.Context, engine *Engine, g *Graph, rec Recording) error {
	req := rec.Start
	if g != nil {
		req.Graph = g
	}
	responses := PlayLoop(ctx, engine, req, len(rec.Bars))
	for i, resp := range responses {
		got, err := DigestBar(resp)
		if err != nil {
			return err
		}
		want := rec.Bars[i]
		switch {
		case got.BarIndex != want.BarIndex:
			return &ReplayMismatchError{Step: i, Field: "barIndex", Want: fmt.Sprint(want.BarIndex), Got: fmt.Sprint(got.BarIndex)}
		case got.EventsDigest != want.EventsDigest:
			return &ReplayMismatchError{Step: i, Field: "events", Want: want.EventsDigest, Got: got.EventsDigest}
		case got.StateDigest != want.StateDigest:
			return &ReplayMismatchError{Step: i, Field: "state", Want: want.StateDigest, Got: got.StateDigest}
		}
	}
	return nil
}
