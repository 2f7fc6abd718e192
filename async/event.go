package async

import (
	"context"
	"sync"
)

// Event is a level-triggered, one-shot signal with a waiter set: Wait
// blocks until Notify has been called at least once since the last Reset.
// Reset starts a fresh generation - it never affects goroutines already
// unblocked by a prior Notify, only goroutines that call Wait afterward.
type Event struct {
	mu        sync.Mutex
	ch        chan struct{}
	triggered bool
}

// NewEvent constructs an untriggered Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{})}
}

// Notify triggers the event, waking every current and future Wait caller
// until the next Reset. Safe to call more than once; only the first call
// in a generation has effect.
func (e *Event) Notify() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.triggered {
		return
	}
	e.triggered = true
	close(e.ch)
}

// Reset begins a new generation: subsequent Wait calls block again until
// the next Notify. Goroutines already unblocked by the prior Notify are
// unaffected.
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.triggered {
		return
	}
	e.triggered = false
	e.ch = make(chan struct{})
}

// Wait blocks until the event's current generation is triggered, or ctx is
// done.
func (e *Event) Wait(ctx context.Context) error {
	e.mu.Lock()
	ch := e.ch
	e.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
