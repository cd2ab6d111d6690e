package emit

// Event represents an observability event emitted while a bar is compiled.
//
// The engine emits a small fixed vocabulary:
//   - "bar_start", "bar_complete": one pair per CompileBar call
//   - "node_fired": a token was delivered to a node
//   - "generator_continued": a multi-bar generator emitted its next bar
//   - "entry_advanced": an entry chain finished and the next edge was queued
//   - "safety_halt": the governor or cancellation stopped the bar early
//
// Sessions add "session_reset", "checkpoint_saved" and "checkpoint_restored".
type Event struct {
	// SessionID identifies the playback session. Empty for one-off
	// CompileBar calls.
	SessionID string

	// Bar is the bar index within the loop.
	Bar int

	// NodeID identifies the node the event is about.
	// Empty for bar-level events.
	NodeID string

	// Msg names the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": compile time of the bar
	//   - "error": first error diagnostic
	//   - "digest": state digest after the bar
	//   - "node_type": type of the fired node
	Meta map[string]interface{}
}
