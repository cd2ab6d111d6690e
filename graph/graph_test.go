package graph

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const branchingDoc = `{
  "graphVersion": "1",
  "nodes": [
    {"id": "start", "type": "start"},
    {"id": "count", "type": "counter", "params": {"start": 0, "step": 1, "resetOnPlay": false}},
    {"id": "sw", "type": "switch", "params": {
      "mode": "first",
      "branches": [
        {"id": "high", "condition": {"type": "counter", "counterId": "count", "op": ">=", "value": 3}},
        {"id": "coin", "condition": {"type": "random", "threshold": 0.25}},
        {"id": "late", "condition": {"type": "barIndex", "op": ">", "value": "8"}},
        {"id": "pick", "condition": {"type": "manual", "value": 2}},
        {"id": "low"}
      ]
    }},
    {"id": "lead", "type": "thought", "label": "Lead", "params": {"durationBars": 2, "rhythmGrid": "1/16", "chordRoot": "A", "chordQuality": "minor"}},
    {"id": "j", "type": "join", "ports": {"inputs": [{"id": "a", "type": "flow"}, {"id": "b", "type": "flow"}]}}
  ],
  "edges": [
    {"id": "e1", "from": {"nodeId": "start"}, "to": {"nodeId": "count"}},
    {"id": "e2", "from": {"nodeId": "count"}, "to": {"nodeId": "sw"}},
    {"id": "e3", "from": {"nodeId": "sw", "portId": "high"}, "to": {"nodeId": "lead"}},
    {"id": "e4", "from": {"nodeId": "sw", "portId": "low"}, "to": {"nodeId": "j", "portId": "a"}}
  ]
}`

func TestDecodeGraph(t *testing.T) {
	g, err := DecodeGraph([]byte(branchingDoc))
	if err != nil {
		t.Fatalf("DecodeGraph failed: %v", err)
	}

	if g.Version != "1" {
		t.Errorf("expected version 1, got %q", g.Version)
	}
	if len(g.Nodes) != 5 || len(g.Edges) != 4 {
		t.Fatalf("expected 5 nodes and 4 edges, got %d and %d", len(g.Nodes), len(g.Edges))
	}

	t.Run("aliases", func(t *testing.T) {
		start, _ := g.Node("start")
		lead, _ := g.Node("lead")
		if start.Type != NodeEntry {
			t.Errorf("expected start to be an entry, got %q", start.Type)
		}
		if lead.Type != NodeGenerator {
			t.Errorf("expected lead to be a generator, got %q", lead.Type)
		}
	})

	t.Run("generator defaults", func(t *testing.T) {
		lead, _ := g.Node("lead")
		p, ok := lead.Generator()
		if !ok {
			t.Fatal("expected generator params")
		}
		want := GeneratorParams{
			DurationBars: 2,
			RhythmGrid:   "1/16",
			PatternType:  "arp-3-up",
			ChordRoot:    "A",
			ChordQuality: "minor",
			RegisterMin:  48,
			RegisterMax:  84,
			Syncopation:  "none",
			TimingWarp:   "none",
			Lane:         "note",
		}
		if diff := cmp.Diff(want, p); diff != "" {
			t.Errorf("generator params mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("counter params", func(t *testing.T) {
		count, _ := g.Node("count")
		p, _ := count.Counter()
		if p.ResetsOnPlay() {
			t.Error("expected resetOnPlay false")
		}
		if p.StepValue() != 1 {
			t.Errorf("expected step 1, got %d", p.StepValue())
		}
	})

	t.Run("conditions", func(t *testing.T) {
		sw, _ := g.Node("sw")
		p, _ := sw.Switch()
		want := []Branch{
			{ID: "high", Condition: Condition{Type: ConditionCounter, CounterID: "count", Op: ">=", Operand: 3}},
			{ID: "coin", Condition: Condition{Type: ConditionRandom, Op: ">=", Threshold: 0.25}},
			{ID: "late", Condition: Condition{Type: ConditionBarIndex, Op: ">", Operand: 8}},
			{ID: "pick", Condition: Condition{Type: ConditionManual, Op: ">=", Selection: "2"}},
			{ID: "low", Condition: Condition{Type: ConditionAlways, Op: ">="}},
		}
		if diff := cmp.Diff(want, p.Branches); diff != "" {
			t.Errorf("branches mismatch (-want +got):\n%s", diff)
		}
		if p.DefaultBranch != "default" {
			t.Errorf("expected default branch \"default\", got %q", p.DefaultBranch)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(g)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		again, err := DecodeGraph(data)
		if err != nil {
			t.Fatalf("DecodeGraph of encoded graph failed: %v", err)
		}
		if diff := cmp.Diff(g, again); diff != "" {
			t.Errorf("graph changed across a round trip (-want +got):\n%s", diff)
		}
	})
}

func TestDecodeGraph_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name:    "empty document",
			doc:     "  ",
			wantMsg: "graph document is empty",
		},
		{
			name:    "unknown top-level field",
			doc:     `{"nodes": [], "edges": [], "extra": 1}`,
			wantMsg: `unknown field "extra"`,
		},
		{
			name:    "unknown node type",
			doc:     `{"nodes": [{"id": "x", "type": "oscillator"}], "edges": []}`,
			wantMsg: `unknown node type "oscillator"`,
		},
		{
			name:    "missing node id",
			doc:     `{"nodes": [{"type": "start"}], "edges": []}`,
			wantMsg: "node id is required",
		},
		{
			name:    "unknown param field",
			doc:     `{"nodes": [{"id": "g", "type": "thought", "params": {"tempo": 120}}], "edges": []}`,
			wantMsg: `unknown field "tempo"`,
		},
		{
			name:    "unsupported grid",
			doc:     `{"nodes": [{"id": "g", "type": "thought", "params": {"rhythmGrid": "1/5"}}], "edges": []}`,
			wantMsg: `unsupported grid "1/5"`,
		},
		{
			name:    "register inverted",
			doc:     `{"nodes": [{"id": "g", "type": "thought", "params": {"registerMin": 90, "registerMax": 60}}], "edges": []}`,
			wantMsg: "90 is above registerMax 60",
		},
		{
			name:    "timing intensity out of range",
			doc:     `{"nodes": [{"id": "g", "type": "thought", "params": {"timingIntensity": 1.5}}], "edges": []}`,
			wantMsg: "must be within [0, 1]",
		},
		{
			name:    "unknown condition type",
			doc:     `{"nodes": [{"id": "s", "type": "switch", "params": {"branches": [{"id": "a", "condition": {"type": "weather"}}]}}], "edges": []}`,
			wantMsg: `unknown condition type "weather"`,
		},
		{
			name:    "counter condition without counter",
			doc:     `{"nodes": [{"id": "s", "type": "switch", "params": {"branches": [{"id": "a", "condition": {"type": "counter", "value": 1}}]}}], "edges": []}`,
			wantMsg: "counter condition requires counterId",
		},
		{
			name:    "duplicate branch",
			doc:     `{"nodes": [{"id": "s", "type": "switch", "params": {"branches": [{"id": "a"}, {"id": "a"}]}}], "edges": []}`,
			wantMsg: `duplicate branch id "a"`,
		},
		{
			name:    "bad switch mode",
			doc:     `{"nodes": [{"id": "s", "type": "switch", "params": {"mode": "some"}}], "edges": []}`,
			wantMsg: `unsupported mode "some"`,
		},
		{
			name:    "duplicate node",
			doc:     `{"nodes": [{"id": "a", "type": "start"}, {"id": "a", "type": "start"}], "edges": []}`,
			wantMsg: "duplicate node id",
		},
		{
			name:    "dangling edge",
			doc:     `{"nodes": [{"id": "a", "type": "start"}], "edges": [{"id": "e1", "from": {"nodeId": "a"}, "to": {"nodeId": "b"}}]}`,
			wantMsg: `destination node "b" does not exist`,
		},
		{
			name:    "undeclared input port",
			doc:     `{"nodes": [{"id": "a", "type": "start"}, {"id": "j", "type": "join", "ports": {"inputs": [{"id": "x"}]}}], "edges": [{"id": "e1", "from": {"nodeId": "a"}, "to": {"nodeId": "j", "portId": "y"}}]}`,
			wantMsg: `node j declares no input port "y"`,
		},
		{
			name:    "duplicate edge",
			doc:     `{"nodes": [{"id": "a", "type": "start"}, {"id": "b", "type": "join"}], "edges": [{"id": "e1", "from": {"nodeId": "a"}, "to": {"nodeId": "b"}}, {"id": "e1", "from": {"nodeId": "a"}, "to": {"nodeId": "b"}}]}`,
			wantMsg: "duplicate edge id",
		},
		{
			name:    "trailing data",
			doc:     `{"nodes": [], "edges": []} {}`,
			wantMsg: "unexpected data after JSON value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeGraph([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, ErrInvalidGraph) {
				t.Errorf("expected ErrInvalidGraph, got %v", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestGraph_Validate(t *testing.T) {
	t.Run("params of the wrong kind", func(t *testing.T) {
		g := &Graph{Nodes: []Node{{ID: "a", Type: NodeEntry, Params: &CounterParams{}}}}
		err := g.Validate()
		if err == nil || !strings.Contains(err.Error(), "counter parameters on a entry node") {
			t.Errorf("expected kind mismatch error, got %v", err)
		}
	})

	t.Run("node id attached to param errors", func(t *testing.T) {
		g := &Graph{Nodes: []Node{{ID: "g", Type: NodeGenerator, Params: &GeneratorParams{PatternType: "spiral"}}}}
		err := g.Validate()
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if ve.NodeID != "g" || ve.Field != "patternType" {
			t.Errorf("expected node g field patternType, got node %q field %q", ve.NodeID, ve.Field)
		}
	})

	t.Run("nil params are valid", func(t *testing.T) {
		g := &Graph{
			Nodes: []Node{{ID: "s", Type: NodeEntry}, {ID: "g", Type: NodeGenerator}},
			Edges: []Edge{link("e1", "s", "g")},
		}
		if err := g.Validate(); err != nil {
			t.Errorf("expected valid graph, got %v", err)
		}
	})

	t.Run("undeclared output port", func(t *testing.T) {
		sw := switchNode("sw", SwitchParams{})
		sw.Ports.Outputs = []Port{{ID: "a"}}
		g := &Graph{
			Nodes: []Node{sw, generatorNode("g", 1)},
			Edges: []Edge{link("e1", "sw:b", "g")},
		}
		err := g.Validate()
		if err == nil || !strings.Contains(err.Error(), `node sw declares no output port "b"`) {
			t.Errorf("expected output port error, got %v", err)
		}
	})
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		err  ValidationError
		want string
	}{
		{ValidationError{NodeID: "n", Field: "f", Message: "m"}, "invalid graph: node n: f: m"},
		{ValidationError{NodeID: "n", Message: "m"}, "invalid graph: node n: m"},
		{ValidationError{EdgeID: "e", Message: "m"}, "invalid graph: edge e: m"},
		{ValidationError{Field: "f", Message: "m"}, "invalid graph: f: m"},
		{ValidationError{Message: "m"}, "invalid graph: m"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestEngineError(t *testing.T) {
	cause := errors.New("disk full")
	err := &EngineError{Message: "failed to save", Code: "STORE_ERROR", Cause: cause}
	if err.Error() != "STORE_ERROR: failed to save: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestEvent_JSON(t *testing.T) {
	ev := Event{Beat: 1.5, Lane: "note", Pitches: []int{57, 60, 64}, Velocity: 90, DurationBeats: 0.5, NodeID: "lead"}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"note":57`) {
		t.Errorf("expected legacy note field, got %s", data)
	}

	var legacy Event
	if err := json.Unmarshal([]byte(`{"tBeat": 2, "lane": "kick", "note": 36, "velocity": 100, "durationBeats": 0.1}`), &legacy); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff([]int{36}, legacy.Pitches); diff != "" {
		t.Errorf("pitches mismatch (-want +got):\n%s", diff)
	}
}

func TestCondition_Always(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		disabled bool
	}{
		{"no value", `{"type": "always"}`, false},
		{"true", `{"type": "always", "value": true}`, false},
		{"false", `{"type": "always", "value": false}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Condition
			if err := json.Unmarshal([]byte(tt.doc), &c); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if c.Disabled != tt.disabled {
				t.Errorf("expected disabled %v, got %v", tt.disabled, c.Disabled)
			}
			if got := c.matches("sw", "a", "", switchEnv{}); got == tt.disabled {
				t.Errorf("expected match %v, got %v", !tt.disabled, got)
			}
		})
	}

	t.Run("zero value survives a round trip", func(t *testing.T) {
		data, err := json.Marshal(Condition{Type: ConditionAlways})
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var back Condition
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if back.Disabled {
			t.Errorf("expected an enabled condition, got %s", data)
		}
	})
}
