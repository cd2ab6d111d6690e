package graph

import "fmt"

// Default per-bar ceilings enforced by the Governor.
const (
	DefaultMaxNodeFirings = 256
	DefaultMaxTokens      = 512
)

// Limits bounds the work a single bar may perform.
//
// A zero field selects the default ceiling. Tune these when a graph fans out
// legitimately beyond the defaults; they exist to stop cycles and runaway
// fan-out, not to shape musical output.
type Limits struct {
	// MaxNodeFirings caps the number of tokens delivered to existing nodes.
	MaxNodeFirings int

	// MaxTokens caps the number of tokens created, immediate or deferred.
	MaxTokens int
}

func (l Limits) withDefaults() Limits {
	if l.MaxNodeFirings <= 0 {
		l.MaxNodeFirings = DefaultMaxNodeFirings
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = DefaultMaxTokens
	}
	return l
}

// Governor counts node firings and token creation for one bar. It is not safe
// for concurrent use; each bar gets its own Governor.
type Governor struct {
	limits Limits
	fired  int
	tokens int
}

// NewGovernor returns a governor enforcing l.
func NewGovernor(l Limits) *Governor {
	return &Governor{limits: l.withDefaults()}
}

// NodeFired records one token delivered to a node.
func (g *Governor) NodeFired() { g.fired++ }

// TokensCreated records n new tokens.
func (g *Governor) TokensCreated(n int) { g.tokens += n }

// Fired returns the number of node firings so far.
func (g *Governor) Fired() int { return g.fired }

// Tokens returns the number of tokens created so far.
func (g *Governor) Tokens() int { return g.tokens }

// Check reports whether another token may be processed. Once a ceiling is
// reached it returns an error wrapping ErrSafetyCap.
func (g *Governor) Check() error {
	if g.fired >= g.limits.MaxNodeFirings {
		return &SafetyHaltError{Reason: HaltNodeFirings, Count: g.fired, Limit: g.limits.MaxNodeFirings}
	}
	if g.tokens >= g.limits.MaxTokens {
		return &SafetyHaltError{Reason: HaltTokens, Count: g.tokens, Limit: g.limits.MaxTokens}
	}
	return nil
}

// Reasons a bar stops early.
const (
	HaltNodeFirings = "node_firings"
	HaltTokens      = "tokens"
	HaltCancelled   = "cancelled"
)

// SafetyHaltError describes which ceiling stopped a bar.
type SafetyHaltError struct {
	Reason string
	Count  int
	Limit  int
}

func (e *SafetyHaltError) Error() string {
	return fmt.Sprintf("safety cap reached: %d %s (limit %d)", e.Count, e.Reason, e.Limit)
}

// Unwrap lets errors.Is(err, ErrSafetyCap) match.
func (e *SafetyHaltError) Unwrap() error {
	return ErrSafetyCap
}
