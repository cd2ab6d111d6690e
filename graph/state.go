package graph

import (
	"encoding/json"
	"fmt"
)

// Token is a unit of control flow in flight toward one node.
//
// Owner is the entry node whose chain the token belongs to. The seed token a
// fresh run sends to an entry node has no owner.
type Token struct {
	NodeID    string `json:"nodeId"`
	ViaEdgeID string `json:"viaEdgeId,omitempty"`
	ViaPortID string `json:"viaPortId,omitempty"`
	Owner     string `json:"owner,omitempty"`
}

// tokenAlong builds the token that travels edge e on behalf of owner.
func tokenAlong(e Edge, owner string) Token {
	return Token{NodeID: e.To.NodeID, ViaEdgeID: e.ID, ViaPortID: e.To.PortID, Owner: owner}
}

// ActiveGenerator is a multi-bar generator firing that still has bars to emit.
type ActiveGenerator struct {
	NodeID        string `json:"nodeId"`
	RemainingBars int    `json:"remainingBars"`
	BarOffset     int    `json:"barOffset"`
	ViaEdgeID     string `json:"viaEdgeId,omitempty"`
	Owner         string `json:"owner,omitempty"`
}

// State is the scheduling state carried from one bar call to the next.
//
// Callers treat it as opaque: pass the State returned by one CompileBar call
// into the next one. It marshals to stable JSON (map keys are sorted), which
// is what stores persist and what StateDigest hashes.
type State struct {
	// ActiveTokens are processed at the start of the next bar.
	ActiveTokens []Token `json:"activeTokens"`

	// ActiveGenerators are continued, in order, before tokens are drained.
	ActiveGenerators []ActiveGenerator `json:"activeGenerators"`

	// EntryQueues holds the edge ids each entry node has yet to dispatch.
	EntryQueues map[string][]string `json:"entryQueues"`

	// EntryPositions is each entry node's cursor into its outgoing edges.
	EntryPositions map[string]int `json:"entryPositions"`

	// EntryActiveChains counts the unresolved tokens and continuations
	// descended from each entry node's current edge.
	EntryActiveChains map[string]int `json:"entryActiveChains"`

	Counters         map[string]int      `json:"counters"`
	Joins            map[string][]string `json:"joins"`
	LastSwitchRoutes map[string]string   `json:"lastSwitchRoutes"`

	// BarIndex is the bar of the call that produced this state.
	BarIndex int `json:"barIndex"`

	// Started is false until a fresh run has seeded its entry nodes.
	Started bool `json:"started"`
}

// NewState returns an empty, not yet started state.
func NewState() *State {
	s := &State{}
	s.ensure()
	return s
}

// ensure allocates any nil collection so decoded or zero states are usable.
func (s *State) ensure() {
	if s.ActiveTokens == nil {
		s.ActiveTokens = []Token{}
	}
	if s.ActiveGenerators == nil {
		s.ActiveGenerators = []ActiveGenerator{}
	}
	if s.EntryQueues == nil {
		s.EntryQueues = make(map[string][]string)
	}
	if s.EntryPositions == nil {
		s.EntryPositions = make(map[string]int)
	}
	if s.EntryActiveChains == nil {
		s.EntryActiveChains = make(map[string]int)
	}
	if s.Counters == nil {
		s.Counters = make(map[string]int)
	}
	if s.Joins == nil {
		s.Joins = make(map[string][]string)
	}
	if s.LastSwitchRoutes == nil {
		s.LastSwitchRoutes = make(map[string]string)
	}
}

// Clone returns an independent copy of the state.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return NewState(), nil
	}
	copied, err := deepCopy(*s)
	if err != nil {
		return nil, err
	}
	copied.ensure()
	return &copied, nil
}

// reset clears everything a fresh run starts without, keeping only the
// counters in keep.
func (s *State) reset(keep map[string]int) {
	*s = State{}
	s.ensure()
	for id, v := range keep {
		s.Counters[id] = v
	}
}

// seedEntry queues the first outgoing edge of an entry node, if any.
func (s *State) seedEntry(entryID string, outgoing []Edge) {
	if len(outgoing) > 0 {
		s.EntryQueues[entryID] = []string{outgoing[0].ID}
		s.EntryPositions[entryID] = 1
	} else {
		s.EntryQueues[entryID] = []string{}
		s.EntryPositions[entryID] = 0
	}
	s.EntryActiveChains[entryID] = 0
}

// popEntryEdge removes and returns the next queued edge id of an entry node.
func (s *State) popEntryEdge(entryID string) (string, bool) {
	q := s.EntryQueues[entryID]
	if len(q) == 0 {
		return "", false
	}
	s.EntryQueues[entryID] = q[1:]
	return q[0], true
}

// advanceEntryCursor returns the next not yet dispatched outgoing edge of an
// entry node and moves its cursor past it.
func (s *State) advanceEntryCursor(entryID string, outgoing []Edge) (Edge, bool) {
	pos := s.EntryPositions[entryID]
	if pos < 0 || pos >= len(outgoing) {
		return Edge{}, false
	}
	s.EntryPositions[entryID] = pos + 1
	return outgoing[pos], true
}

// adjustChain adds delta to an entry node's chain count, clamping at zero,
// and returns the new count.
func (s *State) adjustChain(entryID string, delta int) int {
	v := s.EntryActiveChains[entryID] + delta
	if v < 0 {
		v = 0
	}
	s.EntryActiveChains[entryID] = v
	return v
}

// counter returns the stored value of a counter node.
func (s *State) counter(id string) (int, bool) {
	v, ok := s.Counters[id]
	return v, ok
}

func (s *State) setCounter(id string, v int) {
	s.Counters[id] = v
}

// arriveAtJoin records a token reaching portID of a join and returns the
// arrival set, in arrival order without duplicates.
func (s *State) arriveAtJoin(joinID, portID string) []string {
	arrived := s.Joins[joinID]
	if portID != "" && !containsString(arrived, portID) {
		arrived = append(append([]string(nil), arrived...), portID)
	}
	if arrived == nil {
		arrived = []string{}
	}
	s.Joins[joinID] = arrived
	return arrived
}

func (s *State) clearJoin(joinID string) {
	s.Joins[joinID] = []string{}
}

// touchJoin makes sure a join has an arrival entry.
func (s *State) touchJoin(joinID string) {
	if _, ok := s.Joins[joinID]; !ok {
		s.Joins[joinID] = []string{}
	}
}

func (s *State) recordRoute(switchID, label string) {
	s.LastSwitchRoutes[switchID] = label
}

// takeGenerators removes and returns the active generators in stored order.
func (s *State) takeGenerators() []ActiveGenerator {
	g := s.ActiveGenerators
	s.ActiveGenerators = []ActiveGenerator{}
	return g
}

func (s *State) keepGenerator(g ActiveGenerator) {
	s.ActiveGenerators = append(s.ActiveGenerators, g)
}

// takeTokens removes and returns the tokens deferred by the previous bar.
func (s *State) takeTokens() []Token {
	t := s.ActiveTokens
	s.ActiveTokens = []Token{}
	return t
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// deepCopy creates a deep copy of v using JSON round-trip serialization.
//
// Unexported fields are not copied; State has none.
func deepCopy[S any](v S) (S, error) {
	var zero S

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}
