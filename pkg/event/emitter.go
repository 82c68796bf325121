package event

import (
	"sync"
)

// DefaultSubscriberBuffer is the channel buffer used by Subscribe.
const DefaultSubscriberBuffer = 100

// Emitter fans events out to subscriber channels. Emission is fire-and-
// forget: a full or abandoned subscriber channel drops events rather than
// blocking the emitting operation.
type Emitter struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe returns a channel for receiving events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (e *Emitter) Subscribe() <-chan Event {
	ch := make(chan Event, DefaultSubscriberBuffer)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Subscribe.
// The channel is not closed; callers must stop reading before calling
// Unsubscribe. After Unsubscribe returns, no further events are sent.
func (e *Emitter) Unsubscribe(ch <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.subs {
		if sub == ch {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to all subscribers.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	// Copy the slice to avoid racing Subscribe while iterating.
	subs := make([]chan Event, len(e.subs))
	copy(subs, e.subs)
	e.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			// Drop if full - slow consumers must not affect job execution
		}
	}
}
