package emit

// Emitter receives observability events from bar compilation.
//
// Implementations should be non-blocking and safe for concurrent use. Emit
// is called from inside the scheduling loop, so a slow backend slows
// playback.
type Emitter interface {
	// Emit sends an event to the configured backend.
	//
	// Emit should not panic. Errors should be handled internally.
	Emit(event Event)
}
