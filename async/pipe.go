package async

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/iris/internal/ringqueue"
)

// pipeWaiter is a parked Receive call. claimed guards against the race
// where Send and a cancelling Receive both try to settle the same waiter:
// whichever side wins the CAS owns it, so a value is never written to a
// channel nobody will read.
type pipeWaiter[T any] struct {
	ch      chan T
	claimed atomic.Bool
}

// Pipe is a multi-producer, multi-consumer FIFO: Send either hands a value
// directly to an already-waiting Receive, or queues it; Receive
// symmetrically checks the queue before registering as a waiter. Every
// sent value is received by exactly one Receive call, in send order with
// respect to a single producer.
type Pipe[T any] struct {
	mu      sync.Mutex
	queue   *ringqueue.Queue[T]
	waiters []*pipeWaiter[T]
}

// NewPipe constructs an empty Pipe.
func NewPipe[T any]() *Pipe[T] {
	return &Pipe[T]{queue: ringqueue.New[T]()}
}

// Send delivers v to the pipe: directly to a waiting Receive if one is
// parked, otherwise onto the queue for a future Receive to pick up. If the
// waiter it picks has already abandoned ship (its Receive call's context
// was cancelled concurrently), v is queued instead of being lost down a
// dead channel.
func (p *Pipe[T]) Send(v T) {
	for {
		p.mu.Lock()
		if len(p.waiters) == 0 {
			p.queue.Push(v)
			p.mu.Unlock()
			return
		}
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()

		if w.claimed.CompareAndSwap(false, true) {
			w.ch <- v
			return
		}
	}
}

// Receive returns the next queued value, or blocks until one is sent, or
// ctx is done. If ctx is done at the same moment a Send has already
// committed a value to this call, Receive still returns that value rather
// than losing it.
func (p *Pipe[T]) Receive(ctx context.Context) (T, error) {
	p.mu.Lock()
	if v, ok := p.queue.Pop(); ok {
		p.mu.Unlock()
		return v, nil
	}
	w := &pipeWaiter[T]{ch: make(chan T, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case v := <-w.ch:
		return v, nil
	case <-ctx.Done():
		if w.claimed.CompareAndSwap(false, true) {
			var zero T
			return zero, ctx.Err()
		}
		return <-w.ch, nil
	}
}

// Len returns the number of values currently queued (not counting parked
// waiters).
func (p *Pipe[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}
