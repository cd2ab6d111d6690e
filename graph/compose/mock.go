package compose

import (
	"context"
	"sync"

	"github.com/hambonesoftware/MIND/graph"
)

// Mock is a test implementation of graph.BarCompiler.
//
// It records every call and returns one note event per call, pitched at
// 60 plus the bar offset, so tests can see which generator bar produced
// which event without depending on Compiler's music rules.
//
// Example usage:
//
//	mock := &compose.Mock{}
//	engine, _ := graph.New(mock, nil)
//	engine.CompileBar(ctx, req)
//	// mock.Calls holds one entry per generator bar compiled
type Mock struct {
	// Events, when set, is returned by every call instead of the default
	// single event.
	Events []graph.Event

	// Diagnostics is returned by every call.
	Diagnostics []graph.Diagnostic

	// Calls tracks the history of all CompileBar invocations.
	Calls []MockCall

	mu sync.Mutex
}

// MockCall records a single invocation of CompileBar.
type MockCall struct {
	NodeID    string
	BarOffset int
	BPM       float64
	Seed      int64
}

// CompileBar implements graph.BarCompiler.
func (m *Mock) CompileBar(_ context.Context, node graph.Node, barOffset int, bpm float64, seed int64) ([]graph.Event, []graph.Diagnostic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{NodeID: node.ID, BarOffset: barOffset, BPM: bpm, Seed: seed})

	diags := append([]graph.Diagnostic(nil), m.Diagnostics...)
	if m.Events != nil {
		return append([]graph.Event(nil), m.Events...), diags
	}
	return []graph.Event{{
		Beat:          0,
		Lane:          "note",
		Pitches:       []int{60 + barOffset},
		Velocity:      100,
		DurationBeats: 1,
	}}, diags
}

// CallsFor returns the recorded calls of one node, in order.
func (m *Mock) CallsFor(nodeID string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MockCall
	for _, c := range m.Calls {
		if c.NodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the call history.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}
