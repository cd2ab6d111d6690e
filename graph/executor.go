package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hambonesoftware/MIND/graph/emit"
)

// Each executor consumes exactly one token and gives back its chain
// reference before returning.

// fireEntry dispatches the next queued edge of an entry node. An exhausted
// queue is not an error; the entry stays idle until a chain completes.
func (r *barRun) fireEntry(tok Token, node Node) {
	if edgeID, ok := r.state.popEntryEdge(node.ID); ok {
		if edge, ok := r.adj.Edge(edgeID); ok {
			r.enqueue([]Edge{edge}, node.ID, true)
			r.tracef("Start %s: emitted token along %s.", node.ID, edge.ID)
		} else {
			r.warn(node.ID, fmt.Sprintf("entry %q queued missing edge %q", node.ID, edgeID))
		}
	} else {
		r.tracef("Start %s: queue empty.", node.ID)
	}
	r.release(tok.Owner)
}

// fireGenerator compiles bar 0 of a generator, at most once per bar.
func (r *barRun) fireGenerator(tok Token, node Node) {
	if r.fired[node.ID] {
		r.tracef("Thought %s: already active, ignoring extra token.", node.ID)
		r.release(tok.Owner)
		return
	}
	params, _ := node.Generator()
	r.compile(node, 0)
	r.fired[node.ID] = true

	if params.DurationBars <= 1 {
		out := r.adj.Outgoing(node.ID)
		r.enqueue(out, tok.Owner, false)
		r.tracef("Thought %s: single-bar, emitted %d tokens.", node.ID, len(out))
	} else {
		r.state.keepGenerator(ActiveGenerator{
			NodeID:        node.ID,
			RemainingBars: params.DurationBars - 1,
			BarOffset:     1,
			ViaEdgeID:     tok.ViaEdgeID,
			Owner:         tok.Owner,
		})
		r.acquire(tok.Owner)
		r.tracef("Thought %s: started (%d bars).", node.ID, params.DurationBars)
	}
	r.release(tok.Owner)
}

// continueGenerators emits the next bar of every multi-bar generator still
// running, in the order they started.
func (r *barRun) continueGenerators() {
	for _, g := range r.state.takeGenerators() {
		node, ok := r.adj.Node(g.NodeID)
		if !ok || node.Type != NodeGenerator {
			r.warn(g.NodeID, fmt.Sprintf("active generator %q is no longer a generator node; dropped", g.NodeID))
			r.release(g.Owner)
			continue
		}
		r.compile(node, g.BarOffset)
		r.fired[node.ID] = true
		r.engine.emitter.Emit(emit.Event{SessionID: r.req.SessionID, Bar: r.req.BarIndex, NodeID: node.ID, Msg: "generator_continued", Meta: map[string]interface{}{
			"bar_offset":     g.BarOffset,
			"remaining_bars": g.RemainingBars - 1,
		}})

		g.RemainingBars--
		if g.RemainingBars <= 0 {
			out := r.adj.Outgoing(node.ID)
			r.enqueue(out, g.Owner, false)
			r.tracef("Thought %s: completed, emitted %d tokens.", node.ID, len(out))
			r.release(g.Owner)
			continue
		}
		g.BarOffset++
		r.state.keepGenerator(g)
		r.tracef("Thought %s: continuing (%d bars remaining).", node.ID, g.RemainingBars)
	}
}

// fireCounter increments a counter and passes the token on.
func (r *barRun) fireCounter(tok Token, node Node) {
	params, _ := node.Counter()
	current, ok := r.state.counter(node.ID)
	if !ok {
		current = params.Start
	}
	current += params.StepValue()
	r.state.setCounter(node.ID, current)

	out := r.adj.Outgoing(node.ID)
	r.enqueue(out, tok.Owner, true)
	r.tracef("Counter %s: value %d, emitted %d tokens.", node.ID, current, len(out))
	r.release(tok.Owner)
}

// fireSwitch routes the token along the edges of the selected branch.
func (r *barRun) fireSwitch(tok Token, node Node) {
	d := evaluateSwitch(node, r.adj.Outgoing(node.ID), switchEnv{
		counters: r.state.Counters,
		barIndex: r.req.BarIndex,
		seed:     r.req.Seed,
	})
	if d.unmatched {
		r.warn(node.ID, fmt.Sprintf("switch %q has no matching branch and no default edge", node.ID))
	}
	r.enqueue(d.edges, tok.Owner, true)
	if len(d.labels) > 0 {
		r.state.recordRoute(node.ID, d.labels[len(d.labels)-1])
	}
	r.tracef("Switch %s: branch %s, emitted %d tokens.", node.ID, strings.Join(d.labels, ", "), len(d.edges))
	r.release(tok.Owner)
}

// fireJoin records an arrival and releases once every required input is in.
// A join with no required inputs never releases.
func (r *barRun) fireJoin(tok Token, node Node) {
	required := joinRequirements(node, r.adj.Incoming(node.ID))
	arrived := r.state.arriveAtJoin(node.ID, tok.ViaPortID)

	if len(required) > 0 && coversAll(arrived, required) {
		r.state.clearJoin(node.ID)
		out := r.adj.Outgoing(node.ID)
		r.enqueue(out, tok.Owner, true)
		r.tracef("Join %s: released, emitted %d tokens.", node.ID, len(out))
	} else {
		sorted := append([]string(nil), arrived...)
		sort.Strings(sorted)
		r.tracef("Join %s: waiting (%d/%d) [%s].", node.ID, len(arrived), len(required), strings.Join(sorted, ", "))
	}
	r.release(tok.Owner)
}

// joinRequirements returns the declared input port ids of a join, or the
// distinct destination ports of its incoming edges when none are declared.
func joinRequirements(node Node, incoming []Edge) []string {
	var ids []string
	if declared := node.Ports.inputIDs(); len(declared) > 0 {
		for _, id := range declared {
			if id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}
	for _, e := range incoming {
		if e.To.PortID != "" && !containsString(ids, e.To.PortID) {
			ids = append(ids, e.To.PortID)
		}
	}
	return ids
}

func coversAll(have, want []string) bool {
	for _, w := range want {
		if !containsString(have, w) {
			return false
		}
	}
	return true
}
