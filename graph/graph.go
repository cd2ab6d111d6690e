package graph

import (
	"bytes"
	"errors"
	"fmt"
)

// Graph is a flow graph document: typed nodes connected by edges.
type Graph struct {
	Version string `json:"graphVersion,omitempty"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// DecodeGraph strictly decodes a JSON graph document and validates it.
// Every failure is a *ValidationError wrapping ErrInvalidGraph.
func DecodeGraph(data []byte) (*Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ValidationError{Message: "graph document is empty"}
	}
	var g Graph
	if err := strictUnmarshal(data, &g); err != nil {
		if ve, ok := asValidationError(err); ok {
			return nil, ve
		}
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func asValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks the structural integrity of the graph: unique non-empty
// ids, edges that reference existing nodes and declared ports, and valid
// parameters for every node.
func (g *Graph) Validate() error {
	nodes := make(map[string]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("nodes[%d].id", i), Message: "node id is required"}
		}
		if _, dup := nodes[n.ID]; dup {
			return &ValidationError{NodeID: n.ID, Message: "duplicate node id"}
		}
		if t, ok := ParseNodeType(string(n.Type)); !ok || t != n.Type {
			return &ValidationError{NodeID: n.ID, Field: "type", Message: fmt.Sprintf("unknown node type %q", n.Type)}
		}
		if n.Params != nil {
			if n.Params.Kind() != n.Type {
				return &ValidationError{NodeID: n.ID, Field: "params", Message: fmt.Sprintf("%s parameters on a %s node", n.Params.Kind(), n.Type)}
			}
			if err := n.Params.Validate(); err != nil {
				return attachNode(err, n.ID)
			}
		}
		nodes[n.ID] = n
	}

	edges := make(map[string]bool, len(g.Edges))
	for i, e := range g.Edges {
		if e.ID == "" {
			return &ValidationError{Field: fmt.Sprintf("edges[%d].id", i), Message: "edge id is required"}
		}
		if edges[e.ID] {
			return &ValidationError{EdgeID: e.ID, Message: "duplicate edge id"}
		}
		edges[e.ID] = true

		from, ok := nodes[e.From.NodeID]
		if !ok {
			return &ValidationError{EdgeID: e.ID, Message: fmt.Sprintf("source node %q does not exist", e.From.NodeID)}
		}
		to, ok := nodes[e.To.NodeID]
		if !ok {
			return &ValidationError{EdgeID: e.ID, Message: fmt.Sprintf("destination node %q does not exist", e.To.NodeID)}
		}
		if e.From.PortID != "" && len(from.Ports.Outputs) > 0 && !hasPort(from.Ports.Outputs, e.From.PortID) {
			return &ValidationError{EdgeID: e.ID, Message: fmt.Sprintf("node %s declares no output port %q", from.ID, e.From.PortID)}
		}
		if e.To.PortID != "" && len(to.Ports.Inputs) > 0 && !hasPort(to.Ports.Inputs, e.To.PortID) {
			return &ValidationError{EdgeID: e.ID, Message: fmt.Sprintf("node %s declares no input port %q", to.ID, e.To.PortID)}
		}
	}
	return nil
}
