// Package eventtest provides an event.Emitter that records what it
// receives, for tests of components that report progress.
package eventtest

import (
	"sync"

	"github.com/nao1215/sitemirror/internal/event"
)

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

var _ event.Emitter = (*Recorder)(nil)

// Emit appends ev.
func (r *Recorder) Emit(ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Channels returns the recorded channel names in order.
func (r *Recorder) Channels() []event.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Channel, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Channel
	}
	return out
}

// Count returns how many events were recorded on ch.
func (r *Recorder) Count(ch event.Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Channel == ch {
			n++
		}
	}
	return n
}
