package graph

import (
	"context"
	"sync"
	"testing"
)

// recordingCompiler returns one event per call, pitched 60+barOffset, and
// remembers which node and offset every call was for.
type recordingCompiler struct {
	mu    sync.Mutex
	calls []compileCall
}

type compileCall struct {
	NodeID    string
	BarOffset int
}

func (c *recordingCompiler) CompileBar(_ context.Context, node Node, barOffset int, _ float64, _ int64) ([]Event, []Diagnostic) {
	c.mu.Lock()
	c.calls = append(c.calls, compileCall{NodeID: node.ID, BarOffset: barOffset})
	c.mu.Unlock()
	return []Event{{Beat: 0, Lane: "note", Pitches: []int{60 + barOffset}, Velocity: 100, DurationBeats: 1}}, nil
}

func (c *recordingCompiler) callsFor(nodeID string) []compileCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []compileCall
	for _, call := range c.calls {
		if call.NodeID == nodeID {
			out = append(out, call)
		}
	}
	return out
}

func entryNode(id string) Node {
	return Node{ID: id, Type: NodeEntry, Params: &EntryParams{}}
}

func generatorNode(id string, bars int) Node {
	return Node{ID: id, Type: NodeGenerator, Params: &GeneratorParams{DurationBars: bars}}
}

func counterNode(id string, params CounterParams) Node {
	return Node{ID: id, Type: NodeCounter, Params: &params}
}

func switchNode(id string, params SwitchParams) Node {
	return Node{ID: id, Type: NodeSwitch, Params: &params}
}

func joinNode(id string, inputs ...string) Node {
	n := Node{ID: id, Type: NodeJoin, Params: &JoinParams{}}
	for _, in := range inputs {
		n.Ports.Inputs = append(n.Ports.Inputs, Port{ID: in, Type: "flow"})
	}
	return n
}

// link builds an edge; ports are optional and given as "node:port".
func link(id, from, to string) Edge {
	return Edge{ID: id, From: endpoint(from), To: endpoint(to)}
}

func endpoint(s string) Endpoint {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return Endpoint{NodeID: s[:i], PortID: s[i+1:]}
		}
	}
	return Endpoint{NodeID: s}
}

func always(id string) Branch {
	return Branch{ID: id, Condition: Condition{Type: ConditionAlways}}
}

func newTestEngine(t testing.TB, compiler BarCompiler, opts ...Option) *Engine {
	t.Helper()
	engine, err := New(compiler, nil, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return engine
}

func pitchesOf(events []Event) [][]int {
	out := make([][]int, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Pitches)
	}
	return out
}

func nodeIDsOf(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.NodeID)
	}
	return out
}

func hasDiagnostic(diags []Diagnostic, level Level, message string) bool {
	for _, d := range diags {
		if d.Level == level && d.Message == message {
			return true
		}
	}
	return false
}
