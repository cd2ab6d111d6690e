package graph

// Endpoint is one end of an edge: a node and an optional port on it.
type Endpoint struct {
	NodeID string `json:"nodeId"`
	PortID string `json:"portId,omitempty"`
}

// Edge connects an output port of one node to an input port of another.
//
// Edges are the only routing mechanism. A node's outgoing edges are derived
// from the graph's edge list in document order; that order decides the order
// in which an entry node dispatches its chains and the order of fan-out tokens.
type Edge struct {
	ID   string   `json:"id"`
	From Endpoint `json:"from"`
	To   Endpoint `json:"to"`
}
