// Package fiber re-architects the C++20-coroutine await_suspend/
// await_resume split as a goroutine paired with a two-channel rendezvous.
// A Fiber's body runs on its own goroutine, but never runs concurrently
// with its driver: the driver calls Resume and blocks until the fiber
// either calls Suspend (yielding control back, carrying a value describing
// what it is waiting on) or returns (finishing). This lets awaitables in
// package async implement "dispatch the resume through the target warp,
// never call resume directly" by having the warp's drain task be the thing
// that calls Resume - exactly mirroring the discipline the scheduler this
// is based on requires of every awaitable's wake path.
package fiber

// Fiber is a suspendable goroutine body. A zero Fiber is not usable;
// construct one with New.
type Fiber struct {
	resume  chan any
	yielded chan any
	done    bool
}

// New starts body on a new goroutine, which blocks immediately until the
// first call to Resume - mirroring a lazily-started coroutine that does
// not begin running until explicitly resumed.
func New(body func(f *Fiber, arg any)) *Fiber {
	f := &Fiber{
		resume:  make(chan any),
		yielded: make(chan any),
	}
	go func() {
		arg := <-f.resume
		body(f, arg)
		f.yielded <- doneSignal{}
	}()
	return f
}

type doneSignal struct{}

// Suspend yields out to the driver and blocks until the next Resume call,
// returning whatever value that call supplied. Must only be called from
// the Fiber's own goroutine (i.e. from within, or below, its body).
func (f *Fiber) Suspend(out any) any {
	f.yielded <- out
	return <-f.resume
}

// Resume sends in into the fiber (delivered as Suspend's return value, or
// as body's arg on the very first call) and blocks until the fiber next
// suspends or returns. done reports whether the fiber's body has returned;
// once true, further Resume calls are invalid.
func (f *Fiber) Resume(in any) (out any, done bool) {
	f.resume <- in
	v := <-f.yielded
	if _, ok := v.(doneSignal); ok {
		f.done = true
		return nil, true
	}
	return v, false
}

// Done reports whether the fiber's body has returned.
func (f *Fiber) Done() bool {
	return f.done
}
