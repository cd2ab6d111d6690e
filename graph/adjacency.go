package graph

// Adjacency indexes a graph's edges by source node, destination node and id.
// It is rebuilt for every compile call and never cached.
type Adjacency struct {
	nodes    map[string]Node
	outgoing map[string][]Edge
	incoming map[string][]Edge
	edges    map[string]Edge
}

// BuildAdjacency indexes g. Edge lists keep document order.
func BuildAdjacency(g *Graph) Adjacency {
	adj := Adjacency{
		nodes:    make(map[string]Node, len(g.Nodes)),
		outgoing: make(map[string][]Edge),
		incoming: make(map[string][]Edge),
		edges:    make(map[string]Edge, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		adj.nodes[n.ID] = n
	}
	for _, e := range g.Edges {
		adj.outgoing[e.From.NodeID] = append(adj.outgoing[e.From.NodeID], e)
		adj.incoming[e.To.NodeID] = append(adj.incoming[e.To.NodeID], e)
		adj.edges[e.ID] = e
	}
	return adj
}

// Node looks up a node by id.
func (a Adjacency) Node(id string) (Node, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

// Outgoing returns the edges leaving nodeID.
func (a Adjacency) Outgoing(nodeID string) []Edge {
	return a.outgoing[nodeID]
}

// Incoming returns the edges arriving at nodeID.
func (a Adjacency) Incoming(nodeID string) []Edge {
	return a.incoming[nodeID]
}

// Edge looks up an edge by id.
func (a Adjacency) Edge(id string) (Edge, bool) {
	e, ok := a.edges[id]
	return e, ok
}
