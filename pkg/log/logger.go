package log

import "sync"

// Logger is the interface event sinks implement.
// Pass NoopLogger to disable event logging.
type Logger interface {
	// Log records an event. Implementations must be thread-safe and
	// should not block; blocking delays status handling.
	Log(event Event)
}

// NoopLogger discards all events. Safe for concurrent use and usable as
// a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// MemoryLogger keeps events in memory. Intended for tests and for the
// castctl live view.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLogger creates an empty in-memory event log.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends the event.
func (l *MemoryLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events.
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Reset discards all recorded events.
func (l *MemoryLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// MultiLogger fans each event out to several sinks, typically a
// FileLogger for the durable record plus a MemoryLogger for a live
// view.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger creates a logger fanning out to all given sinks.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	return &MultiLogger{sinks: sinks}
}

// Log forwards the event to every sink.
func (l *MultiLogger) Log(event Event) {
	for _, sink := range l.sinks {
		sink.Log(event)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = (*MemoryLogger)(nil)
	_ Logger = (*MultiLogger)(nil)
)
