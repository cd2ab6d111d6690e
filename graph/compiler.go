package graph

import (
	"context"
	"encoding/json"
)

// Event is one musical event scheduled within a bar.
type Event struct {
	// Beat is the offset within the bar, in beats from 0 to 4.
	Beat float64 `json:"tBeat"`

	// Lane is the voice the event plays on, such as "note" or "kick".
	Lane string `json:"lane"`

	// Pitches are MIDI note numbers. A chord has more than one.
	Pitches []int `json:"pitches"`

	// Velocity is within 1..127.
	Velocity int `json:"velocity"`

	DurationBeats float64 `json:"durationBeats"`

	// Preset is the instrument preset of the generating node, if any.
	Preset string `json:"preset,omitempty"`

	// NodeID is the generator that produced the event.
	NodeID string `json:"nodeId,omitempty"`
}

// MarshalJSON adds the legacy "note" field holding the first pitch.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	out := struct {
		plain
		Note *int `json:"note,omitempty"`
	}{plain: plain(e)}
	if len(e.Pitches) > 0 {
		first := e.Pitches[0]
		out.Note = &first
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the legacy "note" field when pitches are absent.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var in struct {
		plain
		Note *int `json:"note,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Event(in.plain)
	if len(e.Pitches) == 0 && in.Note != nil {
		e.Pitches = []int{*in.Note}
	}
	return nil
}

// Level is the severity of a Diagnostic.
type Level string

// Diagnostic levels. Only LevelError makes a Response not OK.
const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Diagnostic is a message about a bar call. Diagnostics accumulate; the
// engine never aborts a bar because of one.
type Diagnostic struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	NodeID  string `json:"nodeId,omitempty"`
}

// BarCompiler produces the events of one bar of a generator node.
//
// CompileBar must be deterministic for a fixed node, barOffset and seed: the
// engine's replay guarantees depend on it. barOffset counts bars since the
// generator fired, starting at 0.
type BarCompiler interface {
	CompileBar(ctx context.Context, node Node, barOffset int, bpm float64, seed int64) ([]Event, []Diagnostic)
}

// BarCompilerFunc adapts a function to the BarCompiler interface.
type BarCompilerFunc func(ctx context.Context, node Node, barOffset int, bpm float64, seed int64) ([]Event, []Diagnostic)

// CompileBar implements BarCompiler.
func (f BarCompilerFunc) CompileBar(ctx context.Context, node Node, barOffset int, bpm float64, seed int64) ([]Event, []Diagnostic) {
	return f(ctx, node, barOffset, bpm, seed)
}
