package async

import (
	"context"
	"sync"

	"github.com/joeycumines/iris/warp"
)

// Task is a lazily-started async operation: fn does not run until Start,
// the first Await, or the first OnComplete is called. Once started, fn runs on its own goroutine; a
// completion handler registered with OnComplete (or a blocked Await caller)
// observes the result exactly once. A Task is itself awaitable, and may be
// awaited from more than one goroutine.
type Task[T any] struct {
	w  *warp.Warp
	fn func() (T, error)

	mu      sync.Mutex
	started bool
	done    bool
	result  T
	err     error
	waiters []chan struct{}
}

// NewTask constructs a Task wrapping fn. If w is non-nil, fn runs with w's
// exclusivity (posted through w, rather than on a bare goroutine); pass nil
// to run fn on a plain goroutine with no associated Warp.
func NewTask[T any](w *warp.Warp, fn func() (T, error)) *Task[T] {
	return &Task[T]{w: w, fn: fn}
}

// Start begins running fn if it has not already started. Safe to call more
// than once; only the first call has effect.
func (t *Task[T]) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	run := func() {
		result, err := t.fn()
		t.mu.Lock()
		t.result, t.err, t.done = result, err, true
		waiters := t.waiters
		t.waiters = nil
		t.mu.Unlock()
		for _, ch := range waiters {
			close(ch)
		}
	}
	if t.w != nil {
		_ = t.w.Post(run)
	} else {
		go run()
	}
}

// Await starts the task if necessary, then blocks until it completes or ctx
// is done, returning the task's result.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	t.Start()

	t.mu.Lock()
	if t.done {
		result, err := t.result, t.err
		t.mu.Unlock()
		return result, err
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	select {
	case <-ch:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Done reports whether the task has completed.
func (t *Task[T]) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// OnComplete starts the task if necessary, then registers fn to run (on its
// own goroutine) once the task completes, passing its result. If the task has already completed, fn
// runs (still on its own goroutine) immediately.
func (t *Task[T]) OnComplete(fn func(T, error)) {
	t.Start()

	t.mu.Lock()
	if t.done {
		result, err := t.result, t.err
		t.mu.Unlock()
		go fn(result, err)
		return
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	go func() {
		<-ch
		t.mu.Lock()
		result, err := t.result, t.err
		t.mu.Unlock()
		fn(result, err)
	}()
}
