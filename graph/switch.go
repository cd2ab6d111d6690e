package graph

// comparators are the operators accepted by counter and bar-index conditions.
var comparators = map[string]func(a, b int) bool{
	"==": func(a, b int) bool { return a == b },
	"!=": func(a, b int) bool { return a != b },
	">":  func(a, b int) bool { return a > b },
	">=": func(a, b int) bool { return a >= b },
	"<":  func(a, b int) bool { return a < b },
	"<=": func(a, b int) bool { return a <= b },
}

func compare(op string, a, b int) bool {
	if op == "" {
		op = ">="
	}
	cmp, ok := comparators[op]
	if !ok {
		return false
	}
	return cmp(a, b)
}

// switchEnv is what branch conditions may read.
type switchEnv struct {
	counters map[string]int
	barIndex int
	seed     int64
}

// routeDecision is the outcome of evaluating a switch.
type routeDecision struct {
	edges  []Edge
	labels []string

	// unmatched is set when no branch matched and no default edge exists.
	unmatched bool
}

// matches evaluates one branch condition.
func (c Condition) matches(nodeID, branchID string, manual string, env switchEnv) bool {
	switch c.Type {
	case ConditionAlways, "":
		return !c.Disabled
	case ConditionManual:
		return manual != "" && manual == c.Selection
	case ConditionCounter:
		return compare(c.Op, env.counters[c.CounterID], c.Operand)
	case ConditionBarIndex:
		return compare(c.Op, env.barIndex, c.Operand)
	case ConditionRandom:
		return SeededRandom(env.seed, BranchSalt(nodeID, branchID, env.barIndex)) < c.Threshold
	}
	return false
}

// evaluateSwitch selects the outgoing edges a switch fires.
//
// In first mode the first matching branch wins; in all mode every matching
// branch contributes its edges. With no match the default branch's edges
// fire, then the first outgoing edge, then nothing.
func evaluateSwitch(node Node, outgoing []Edge, env switchEnv) routeDecision {
	params, _ := node.Switch()

	var d routeDecision
	for _, b := range params.Branches {
		if !b.Condition.matches(node.ID, b.ID, params.ManualSelection, env) {
			continue
		}
		d.edges = append(d.edges, edgesFromPort(outgoing, b.ID)...)
		d.labels = append(d.labels, b.ID)
		if params.Mode != SwitchAll {
			return d
		}
	}
	if len(d.labels) > 0 {
		return d
	}

	if def := edgesFromPort(outgoing, params.DefaultBranch); len(def) > 0 {
		d.edges = def
		d.labels = []string{params.DefaultBranch}
		return d
	}

	d.unmatched = true
	if len(outgoing) > 0 {
		label := outgoing[0].From.PortID
		if label == "" {
			label = params.DefaultBranch
		}
		d.edges = []Edge{outgoing[0]}
		d.labels = []string{label}
		return d
	}
	d.labels = []string{params.DefaultBranch}
	return d
}

func edgesFromPort(edges []Edge, portID string) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.From.PortID == portID {
			out = append(out, e)
		}
	}
	return out
}
