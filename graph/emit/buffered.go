package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory, grouped
// by session.
//
// It backs the test suites and the playback examples, where the event
// history of a session is inspected after the bars have run.
//
// Warning: every event is retained until Clear is called.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	engine, _ := graph.New(compiler, emitter)
//
//	halts := emitter.GetHistoryWithFilter("s1", emit.HistoryFilter{Msg: "safety_halt"})
//	emitter.Clear("s1")
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // sessionID -> events
}

// HistoryFilter specifies criteria for filtering session history.
//
// All fields are optional and combined with AND logic.
type HistoryFilter struct {
	NodeID string // Filter by node ID (empty = no filter)
	Msg    string // Filter by message (empty = no filter)
	MinBar *int   // Minimum bar index (nil = no filter)
	MaxBar *int   // Maximum bar index (nil = no filter)
}

func (f HistoryFilter) empty() bool {
	return f.NodeID == "" && f.Msg == "" && f.MinBar == nil && f.MaxBar == nil
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinBar != nil && event.Bar < *f.MinBar {
		return false
	}
	if f.MaxBar != nil && event.Bar > *f.MaxBar {
		return false
	}
	return true
}

// NewBufferedEmitter creates a new BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.SessionID] = append(b.events[event.SessionID], event)
}

// GetHistory returns a copy of every event recorded for sessionID, in
// emission order. It never returns nil.
func (b *BufferedEmitter) GetHistory(sessionID string) []Event {
	return b.GetHistoryWithFilter(sessionID, HistoryFilter{})
}

// GetHistoryWithFilter returns the events of sessionID matching filter.
func (b *BufferedEmitter) GetHistoryWithFilter(sessionID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[sessionID]
	if filter.empty() {
		result := make([]Event, len(events))
		copy(result, events)
		return result
	}

	result := []Event{}
	for _, event := range events {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Clear removes the events of sessionID, or of every session when
// sessionID is empty.
func (b *BufferedEmitter) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sessionID == "" {
		b.events = make(map[string][]Event)
	} else {
		delete(b.events, sessionID)
	}
}
