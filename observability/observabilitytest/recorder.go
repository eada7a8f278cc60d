// Package observabilitytest provides an Observer that keeps events for
// assertions in tests.
package observabilitytest

import (
	"context"
	"sync"

	"github.com/tailored-agentic-units/supervisor/observability"
)

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []observability.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnEvent(_ context.Context, event observability.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []observability.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]observability.Event(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType observability.EventType) []observability.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []observability.Event
	for _, e := range r.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// ForUnit returns the recorded events about unit id.
func (r *Recorder) ForUnit(id string) []observability.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []observability.Event
	for _, e := range r.events {
		if got, ok := e.UnitID(); ok && got == id {
			matched = append(matched, e)
		}
	}
	return matched
}
