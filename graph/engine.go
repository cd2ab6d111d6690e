package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hambonesoftware/MIND/graph/emit"
)

// Request is the input of one bar call.
type Request struct {
	// Graph is the flow graph to run. A nil Graph is a fatal error.
	Graph *Graph

	// BarIndex is the bar within the loop. The engine only reads it for
	// bar-index and random switch conditions; callers wrap it themselves.
	BarIndex int

	// Seed drives the compiler and random switch conditions.
	Seed int64

	// BPM is passed through to the compiler.
	BPM float64

	// EntryIDs restricts which entry nodes a fresh run seeds. Empty seeds all.
	EntryIDs []string

	// State is the State returned by the previous call. Nil starts a fresh run.
	// CompileBar never modifies it.
	State *State

	// SessionID labels emitted observability events.
	SessionID string
}

// Response is the result of one bar call.
type Response struct {
	// OK is false when any diagnostic has LevelError.
	OK          bool         `json:"ok"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	BarIndex    int          `json:"barIndex"`
	LoopBars    int          `json:"loopBars"`

	// Events are in generation order.
	Events []Event `json:"events"`

	// Trace is a human-readable log of node firings.
	Trace []string `json:"debugTrace"`

	// State is passed into the next call.
	State *State `json:"runtimeState"`

	Stats BarStats `json:"stats"`
}

// BarStats summarizes the work done for one bar.
type BarStats struct {
	NodesFired    int              `json:"nodesFired"`
	TokensCreated int              `json:"tokensCreated"`
	FiredByType   map[NodeType]int `json:"firedByType,omitempty"`

	// ChainAcquired and ChainReleased count, per entry node, the chain
	// references taken and given back during the bar.
	ChainAcquired map[string]int `json:"chainAcquired,omitempty"`
	ChainReleased map[string]int `json:"chainReleased,omitempty"`

	Halted     bool   `json:"halted"`
	HaltReason string `json:"haltReason,omitempty"`

	// TokensDropped counts the unprocessed tokens discarded by a governor halt.
	TokensDropped int `json:"tokensDropped,omitempty"`
}

// Engine compiles flow graphs one bar at a time.
//
// The Engine holds no per-session state: everything a bar needs arrives in
// the Request and everything the next bar needs leaves in the Response. One
// Engine may therefore serve many sessions concurrently, as long as each
// session's calls are sequential (see Session).
//
// Example:
//
//	engine, err := graph.New(compose.NewCompiler(), emit.NewNullEmitter())
//	if err != nil {
//	    return err
//	}
//	var state *graph.State
//	for bar := 0; bar < graph.DefaultLoopBars; bar++ {
//	    resp := engine.CompileBar(ctx, graph.Request{Graph: g, BarIndex: bar, Seed: 7, BPM: 120, State: state})
//	    play(resp.Events)
//	    state = resp.State
//	}
type Engine struct {
	compiler BarCompiler
	emitter  emit.Emitter
	opts     Options
}

// New creates an Engine.
//
// compiler produces generator events; nil disables event generation while
// keeping scheduling intact. emitter receives observability events; nil
// discards them.
func New(compiler BarCompiler, emitter emit.Emitter, options ...Option) (*Engine, error) {
	cfg := engineConfig{}
	for _, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.opts.Emitter != nil {
		emitter = cfg.opts.Emitter
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	if cfg.opts.LoopBars == 0 {
		cfg.opts.LoopBars = DefaultLoopBars
	}
	cfg.opts.Limits = cfg.opts.Limits.withDefaults()
	return &Engine{compiler: compiler, emitter: emitter, opts: cfg.opts}, nil
}

// LoopBars returns the configured loop length.
func (e *Engine) LoopBars() int {
	return e.opts.LoopBars
}

// CompileBar runs one bar of req.Graph.
//
// It always returns a Response: problems are reported as diagnostics, never
// as a Go error. A nil graph yields OK=false, no events, and req.State echoed
// back. Cancelling ctx stops the bar like the safety governor does.
func (e *Engine) CompileBar(ctx context.Context, req Request) Response {
	started := time.Now()

	resp := Response{BarIndex: req.BarIndex, LoopBars: e.opts.LoopBars, Events: []Event{}, Trace: []string{}, Diagnostics: []Diagnostic{}}
	if req.Graph == nil {
		resp.Diagnostics = append(resp.Diagnostics, Diagnostic{Level: LevelError, Message: ErrNoGraph.Error()})
		resp.State = req.State
		e.finish(req, &resp, started)
		return resp
	}

	state, err := req.State.Clone()
	if err != nil {
		resp.Diagnostics = append(resp.Diagnostics, Diagnostic{Level: LevelError, Message: fmt.Sprintf("runtime state: %v", err)})
		resp.State = req.State
		e.finish(req, &resp, started)
		return resp
	}

	e.emitter.Emit(emit.Event{SessionID: req.SessionID, Bar: req.BarIndex, Msg: "bar_start", Meta: map[string]interface{}{
		"fresh": !state.Started,
	}})

	run := newBarRun(ctx, e, req, state)
	run.execute()

	resp.Events = run.events
	resp.Diagnostics = run.diags
	resp.Trace = run.trace
	resp.State = state
	resp.Stats = run.stats
	e.finish(req, &resp, started)
	return resp
}

// finish computes OK, records metrics and emits bar_complete.
func (e *Engine) finish(req Request, resp *Response, started time.Time) {
	resp.OK = true
	for _, d := range resp.Diagnostics {
		if d.Level == LevelError {
			resp.OK = false
			break
		}
	}
	latency := time.Since(started)
	if e.opts.Metrics != nil {
		e.opts.Metrics.observe(*resp, latency)
	}

	meta := map[string]interface{}{
		"ok":          resp.OK,
		"events":      len(resp.Events),
		"firings":     resp.Stats.NodesFired,
		"tokens":      resp.Stats.TokensCreated,
		"diagnostics": len(resp.Diagnostics),
		"duration_ms": latency.Milliseconds(),
	}
	if resp.State != nil {
		if digest, err := StateDigest(resp.State); err == nil {
			meta["digest"] = digest
		}
	}
	if !resp.OK && len(resp.Diagnostics) > 0 {
		meta["error"] = resp.Diagnostics[0].Message
	}
	e.emitter.Emit(emit.Event{SessionID: req.SessionID, Bar: req.BarIndex, Msg: "bar_complete", Meta: meta})
}

// runPhase tells the chain bookkeeping whether the bar is still continuing
// generators or already draining tokens.
type runPhase int

const (
	phaseContinue runPhase = iota
	phaseDrain
	phaseHalted
)

// barRun holds everything that lives for exactly one bar.
type barRun struct {
	ctx    context.Context
	engine *Engine
	req    Request
	adj    Adjacency
	state  *State
	gov    *Governor

	phase    runPhase
	queue    *worklist
	deferred []Token
	carried  []Token
	fired    map[string]bool

	events []Event
	diags  []Diagnostic
	trace  []string
	stats  BarStats
}

func newBarRun(ctx context.Context, e *Engine, req Request, state *State) *barRun {
	return &barRun{
		ctx:    ctx,
		engine: e,
		req:    req,
		adj:    BuildAdjacency(req.Graph),
		state:  state,
		gov:    NewGovernor(e.opts.Limits),
		fired:  make(map[string]bool),
		events: []Event{},
		diags:  []Diagnostic{},
		trace:  []string{},
		stats: BarStats{
			FiredByType:   make(map[NodeType]int),
			ChainAcquired: make(map[string]int),
			ChainReleased: make(map[string]int),
		},
	}
}

// execute runs the bar: seed or restore, continue generators, drain tokens,
// then hand deferred tokens to the next bar.
func (r *barRun) execute() {
	var seeds []Token
	if !r.state.Started {
		seeds = r.initialize()
	} else {
		seeds = r.state.takeTokens()
	}
	r.queue = newWorklist(seeds)

	r.phase = phaseContinue
	r.continueGenerators()

	r.phase = phaseDrain
	r.drain()

	r.state.ActiveTokens = append(append([]Token{}, r.carried...), r.deferred...)
	for _, n := range r.req.Graph.Nodes {
		if n.Type == NodeJoin {
			r.state.touchJoin(n.ID)
		}
	}
	r.state.BarIndex = r.req.BarIndex
	r.stats.NodesFired = r.gov.Fired()
	r.stats.TokensCreated = r.gov.Tokens()
}

// initialize resets the state for a fresh run and returns the seed tokens.
func (r *barRun) initialize() []Token {
	keep := make(map[string]int)
	for _, n := range r.req.Graph.Nodes {
		params, ok := n.Counter()
		if !ok || params.ResetsOnPlay() {
			continue
		}
		if v, ok := r.state.counter(n.ID); ok {
			keep[n.ID] = v
		}
	}
	r.state.reset(keep)

	var allowed map[string]bool
	if len(r.req.EntryIDs) > 0 {
		allowed = make(map[string]bool, len(r.req.EntryIDs))
		for _, id := range r.req.EntryIDs {
			allowed[id] = true
		}
	}

	var seeds []Token
	for _, n := range r.req.Graph.Nodes {
		if n.Type != NodeEntry || (allowed != nil && !allowed[n.ID]) {
			continue
		}
		r.state.seedEntry(n.ID, r.adj.Outgoing(n.ID))
		seeds = append(seeds, Token{NodeID: n.ID})
	}
	r.state.Started = true
	r.tracef("Start: emitted initial tokens.")
	return seeds
}

// drain processes the worklist until it is empty, the governor halts the
// bar, or the context is cancelled.
func (r *barRun) drain() {
	for r.queue.Len() > 0 {
		if err := r.ctx.Err(); err != nil {
			r.halt(HaltCancelled, fmt.Sprintf("bar cancelled: %v", err), true)
			return
		}
		if err := r.gov.Check(); err != nil {
			reason := HaltTokens
			var se *SafetyHaltError
			if errors.As(err, &se) {
				reason = se.Reason
			}
			r.halt(reason, "safety cap reached; runtime halted for this bar", false)
			return
		}
		tok, _ := r.queue.pop()
		r.process(tok)
	}
}

// halt stops the bar. A cancelled bar keeps its unprocessed tokens for the
// front of the next bar. A governor halt drops them and releases their
// chains, so a runaway graph cannot grow its state from bar to bar; an entry
// whose chain completes this way dispatches its next edge next bar.
func (r *barRun) halt(reason, message string, carry bool) {
	tail := r.queue.drain()
	dropped := 0
	if carry {
		r.carried = tail
	} else {
		r.phase = phaseHalted
		for _, tok := range tail {
			r.release(tok.Owner)
		}
		dropped = len(tail)
	}
	r.stats.Halted = true
	r.stats.HaltReason = reason
	r.stats.TokensDropped = dropped
	r.warn("", message)
	r.engine.emitter.Emit(emit.Event{SessionID: r.req.SessionID, Bar: r.req.BarIndex, Msg: "safety_halt", Meta: map[string]interface{}{
		"reason":  reason,
		"carried": len(r.carried),
		"dropped": dropped,
		"firings": r.gov.Fired(),
		"tokens":  r.gov.Tokens(),
	}})
}

// process delivers one token to its node.
func (r *barRun) process(tok Token) {
	node, ok := r.adj.Node(tok.NodeID)
	if !ok {
		r.warn(tok.NodeID, fmt.Sprintf("token references missing node %q", tok.NodeID))
		r.release(tok.Owner)
		return
	}
	r.gov.NodeFired()
	r.stats.FiredByType[node.Type]++
	r.engine.emitter.Emit(emit.Event{SessionID: r.req.SessionID, Bar: r.req.BarIndex, NodeID: node.ID, Msg: "node_fired", Meta: map[string]interface{}{
		"node_type":   string(node.Type),
		"via_edge_id": tok.ViaEdgeID,
		"owner":       tok.Owner,
	}})

	switch node.Type {
	case NodeEntry:
		r.fireEntry(tok, node)
	case NodeGenerator:
		r.fireGenerator(tok, node)
	case NodeCounter:
		r.fireCounter(tok, node)
	case NodeSwitch:
		r.fireSwitch(tok, node)
	case NodeJoin:
		r.fireJoin(tok, node)
	default:
		r.tracef("Node %s: unsupported type '%s'.", node.ID, node.Type)
		r.release(tok.Owner)
	}
}

// enqueue creates one token per edge on behalf of owner, processed this bar
// when immediate and next bar otherwise.
func (r *barRun) enqueue(edges []Edge, owner string, immediate bool) {
	for _, e := range edges {
		tok := tokenAlong(e, owner)
		r.acquire(owner)
		if immediate {
			r.queue.push(tok)
		} else {
			r.deferred = append(r.deferred, tok)
		}
	}
	r.gov.TokensCreated(len(edges))
}

func (r *barRun) acquire(owner string) {
	if owner == "" {
		return
	}
	r.state.adjustChain(owner, 1)
	r.stats.ChainAcquired[owner]++
}

// release gives back one chain reference. When the chain of an entry node
// returns to zero, its next outgoing edge is dispatched: immediately while
// draining, or next bar when the release came from a generator continuation.
func (r *barRun) release(owner string) {
	if owner == "" {
		return
	}
	before := r.state.EntryActiveChains[owner]
	after := r.state.adjustChain(owner, -1)
	r.stats.ChainReleased[owner]++
	if before > 0 && after == 0 {
		r.advanceEntry(owner)
	}
}

func (r *barRun) advanceEntry(entryID string) {
	edge, ok := r.state.advanceEntryCursor(entryID, r.adj.Outgoing(entryID))
	if !ok {
		return
	}
	r.enqueue([]Edge{edge}, entryID, r.phase == phaseDrain)
	r.tracef("Start %s: queued next edge %s after completion.", entryID, edge.ID)
	r.engine.emitter.Emit(emit.Event{SessionID: r.req.SessionID, Bar: r.req.BarIndex, NodeID: entryID, Msg: "entry_advanced", Meta: map[string]interface{}{
		"edge_id":   edge.ID,
		"immediate": r.phase == phaseDrain,
	}})
}

// compile asks the compiler for one bar of a generator and collects the result.
func (r *barRun) compile(node Node, barOffset int) {
	if r.engine.compiler == nil {
		return
	}
	events, diags := r.engine.compiler.CompileBar(r.ctx, node, barOffset, r.req.BPM, r.req.Seed)
	for _, ev := range events {
		if ev.NodeID == "" {
			ev.NodeID = node.ID
		}
		r.events = append(r.events, ev)
	}
	for _, d := range diags {
		if d.NodeID == "" {
			d.NodeID = node.ID
		}
		r.diags = append(r.diags, d)
	}
}

func (r *barRun) warn(nodeID, message string) {
	r.diags = append(r.diags, Diagnostic{Level: LevelWarn, Message: message, NodeID: nodeID})
}

func (r *barRun) tracef(format string, args ...interface{}) {
	r.trace = append(r.trace, fmt.Sprintf(format, args...))
}
