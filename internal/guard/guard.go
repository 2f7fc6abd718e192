// Package guard is a direct port of the original source's atomic_guard_t:
// a scope guard that compensates an atomic counter on abnormal exit (panic)
// unless the caller explicitly disarms it by calling Disarm once the
// protected region completes normally.
//
// The canonical call shape:
//
//	g := guard.New(guard.Add, &routine.lockCount)
//	defer g.Release()
//	... protected region, may panic ...
//	g.Disarm()
//
// If the protected region panics before Disarm runs, Release (deferred)
// performs the compensating operation before the panic continues unwinding.
// If the region completes normally, Disarm makes Release a no-op.
package guard

import "sync/atomic"

// Op selects the compensating action a Guard performs on Release.
type Op int

const (
	// Add increments the guarded counter by one.
	Add Op = iota
	// Sub decrements the guarded counter by one.
	Sub
	// Invalidate stores -1 into the guarded counter, the Go equivalent of
	// the source's all-bits-set sentinel.
	Invalidate
)

// Guard holds a pending compensating operation against an *atomic.Int64.
type Guard struct {
	op      Op
	counter *atomic.Int64
	armed   bool
}

// New returns an armed Guard that will apply op to counter on Release,
// unless Disarm is called first.
func New(op Op, counter *atomic.Int64) *Guard {
	return &Guard{op: op, counter: counter, armed: true}
}

// Disarm cancels the pending compensation; subsequent Release calls no-op.
func (g *Guard) Disarm() {
	g.armed = false
}

// Release applies the compensating operation if the guard is still armed.
// Safe to call multiple times; only the first call (while armed) has effect.
func (g *Guard) Release() {
	if !g.armed || g.counter == nil {
		return
	}
	g.armed = false
	switch g.op {
	case Add:
		g.counter.Add(1)
	case Sub:
		g.counter.Add(-1)
	case Invalidate:
		g.counter.Store(-1)
	}
}
