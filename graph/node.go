package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// NodeType tags a node with the executor that handles it.
type NodeType string

const (
	// NodeEntry dispatches its outgoing edges one chain at a time.
	NodeEntry NodeType = "entry"

	// NodeGenerator compiles musical bars through the BarCompiler.
	NodeGenerator NodeType = "generator"

	// NodeCounter increments a persistent integer each time it fires.
	NodeCounter NodeType = "counter"

	// NodeSwitch routes a token along the edges of the branch it selects.
	NodeSwitch NodeType = "switch"

	// NodeJoin waits until every required input port has received a token.
	NodeJoin NodeType = "join"
)

// nodeTypeAliases maps the names used by older graph documents.
var nodeTypeAliases = map[string]NodeType{
	"entry":     NodeEntry,
	"start":     NodeEntry,
	"generator": NodeGenerator,
	"thought":   NodeGenerator,
	"counter":   NodeCounter,
	"switch":    NodeSwitch,
	"join":      NodeJoin,
}

// ParseNodeType resolves a type name, accepting the "start" and "thought"
// aliases. The second return value reports whether the name is known.
func ParseNodeType(name string) (NodeType, bool) {
	t, ok := nodeTypeAliases[name]
	return t, ok
}

// Port is a named connection point on a node. All ports carry control flow,
// so Type is "flow" when present.
type Port struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// Ports lists the ports a node declares. Declaring ports is optional.
type Ports struct {
	Inputs  []Port `json:"inputs,omitempty"`
	Outputs []Port `json:"outputs,omitempty"`
}

func (p Ports) inputIDs() []string {
	ids := make([]string, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		ids = append(ids, in.ID)
	}
	return ids
}

func hasPort(ports []Port, id string) bool {
	for _, p := range ports {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Node is an immutable vertex of a flow graph.
//
// Params holds the typed parameters for Type: *EntryParams, *GeneratorParams,
// *CounterParams, *SwitchParams or *JoinParams. A nil Params is treated as
// the zero value of the matching variant with defaults applied.
//
// Nodes decoded from JSON or YAML are validated while decoding: unknown types,
// unknown parameter fields and out-of-range values are reported as
// *ValidationError. Nodes built in code are not validated until Graph.Validate.
type Node struct {
	ID     string
	Type   NodeType
	Label  string
	Params Params
	Ports  Ports
}

// Generator returns the generator parameters with defaults applied.
// It returns false when the node is not a generator.
func (n Node) Generator() (GeneratorParams, bool) {
	if n.Type != NodeGenerator {
		return GeneratorParams{}, false
	}
	if p, ok := n.Params.(*GeneratorParams); ok && p != nil {
		return p.Normalized(), true
	}
	return GeneratorParams{}.Normalized(), true
}

// Counter returns the counter parameters. It returns false when the node is
// not a counter.
func (n Node) Counter() (CounterParams, bool) {
	if n.Type != NodeCounter {
		return CounterParams{}, false
	}
	if p, ok := n.Params.(*CounterParams); ok && p != nil {
		return *p, true
	}
	return CounterParams{}, true
}

// Switch returns the switch parameters with defaults applied. It returns false
// when the node is not a switch.
func (n Node) Switch() (SwitchParams, bool) {
	if n.Type != NodeSwitch {
		return SwitchParams{}, false
	}
	if p, ok := n.Params.(*SwitchParams); ok && p != nil {
		return p.Normalized(), true
	}
	return SwitchParams{}.Normalized(), true
}

type nodeJSON struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Label  string          `json:"label,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Ports  *Ports          `json:"ports,omitempty"`
}

// UnmarshalJSON decodes a node strictly: unknown fields, unknown node types
// and invalid parameters are errors.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := strictUnmarshal(data, &raw); err != nil {
		return &ValidationError{NodeID: raw.ID, Message: err.Error()}
	}
	if raw.ID == "" {
		return &ValidationError{Field: "id", Message: "node id is required"}
	}
	t, ok := ParseNodeType(raw.Type)
	if !ok {
		return &ValidationError{NodeID: raw.ID, Field: "type", Message: fmt.Sprintf("unknown node type %q", raw.Type)}
	}
	params, err := decodeParams(t, raw.Params)
	if err != nil {
		return attachNode(err, raw.ID)
	}
	if err := params.Validate(); err != nil {
		return attachNode(err, raw.ID)
	}

	*n = Node{ID: raw.ID, Type: t, Label: raw.Label, Params: params}
	if raw.Ports != nil {
		n.Ports = *raw.Ports
	}
	return nil
}

// MarshalJSON encodes the node in the same shape UnmarshalJSON accepts.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{ID: n.ID, Type: string(n.Type), Label: n.Label}
	if n.Params != nil {
		b, err := json.Marshal(n.Params)
		if err != nil {
			return nil, err
		}
		if string(b) != "{}" && string(b) != "null" {
			out.Params = b
		}
	}
	if len(n.Ports.Inputs) > 0 || len(n.Ports.Outputs) > 0 {
		ports := n.Ports
		out.Ports = &ports
	}
	return json.Marshal(out)
}

// strictUnmarshal decodes data into v, rejecting unknown fields and trailing data.
func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// attachNode fills in the node id on validation errors raised below the node.
func attachNode(err error, nodeID string) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		if ve.NodeID == "" {
			copied := *ve
			copied.NodeID = nodeID
			return &copied
		}
		return err
	}
	return &ValidationError{NodeID: nodeID, Field: "params", Message: err.Error()}
}
