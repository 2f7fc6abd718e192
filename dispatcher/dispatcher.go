package dispatcher

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/iris/internal/guard"
	"github.com/joeycumines/iris/internal/slab"
	"github.com/joeycumines/iris/internal/xerrors"
	"github.com/joeycumines/iris/internal/xlog"
	"github.com/joeycumines/iris/pool"
	"github.com/joeycumines/iris/warp"
)

const defaultShardCount = 4

// Routine is an opaque handle to a node in a Dispatcher's DAG, returned by
// Allocate. Its zero value is not meaningful outside the package.
type Routine struct {
	callable   func()
	warp       *warp.Warp
	priority   int
	children   [4]*Routine
	childCount int
	overflow   *Routine
	lockCount  atomic.Int64
	isJunction bool
}

type resurrectEntry struct {
	routine *Routine
	reason  any
}

// Dispatcher schedules a DAG of Routines, handing each ready Routine to its
// target Warp (if any) or directly to the pool (by priority) otherwise. A
// zero Dispatcher is not usable; construct one with NewDispatcher.
type Dispatcher struct {
	pool       *pool.Pool
	shardCount int
	alloc      *slab.Pool[Routine]
	allocSeq   atomic.Uint64

	pendingCount atomic.Int64
	onComplete   func(d *Dispatcher, success bool)

	mu        sync.Mutex
	resurrect []resurrectEntry
}

// NewDispatcher constructs an empty Dispatcher whose routines are scheduled
// on p. onComplete, if non-nil, is called every time the pending routine
// count transitions to zero, with success reporting whether the routine
// responsible for that transition ran to completion (true) or was
// discarded via Cleanup (false).
func NewDispatcher(p *pool.Pool, onComplete func(d *Dispatcher, success bool), opts ...Option) *Dispatcher {
	d := &Dispatcher{pool: p, onComplete: onComplete, shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(d)
	}
	d.alloc = slab.New[Routine](d.shardCount, func() *Routine { return new(Routine) })
	return d
}

// Allocate creates a new Routine wrapping callable, with an initial lock
// count of one representing the caller's own allocation hold. callable may
// be nil (used internally for junction routines, and for routines whose
// only purpose is fanning out once released - e.g. async.DispatchCoroutine).
// w, if non-nil, is the Warp callable must run on, exclusively of w's other
// work; otherwise callable is submitted directly to the dispatcher's pool
// at priority.
func (d *Dispatcher) Allocate(w *warp.Warp, callable func(), priority int) *Routine {
	shard := int(d.allocSeq.Add(1))
	r := d.alloc.Get(shard)
	*r = Routine{callable: callable, warp: w, priority: priority}
	r.lockCount.Store(1)
	d.pendingCount.Add(1)
	return r
}

// Order wires to as a dependent of from: from will Dispatch(to) once from
// completes, and to will not run until every such predecessor (plus to's
// own allocation hold) has been released. Returns ErrCycle if the edge
// would make to reachable from itself.
func (d *Dispatcher) Order(from, to *Routine) error {
	if from == to || reaches(to, from) {
		return xerrors.ErrCycle
	}
	if from.childCount < 4 {
		from.children[from.childCount] = to
		from.childCount++
		to.lockCount.Add(1)
		return nil
	}
	if from.overflow == nil {
		j := d.Allocate(nil, nil, 0)
		j.isJunction = true
		from.overflow = j
	}
	return d.Order(from.overflow, to)
}

// reaches reports whether target is reachable from start by following
// children/overflow edges.
func reaches(start, target *Routine) bool {
	if start == nil {
		return false
	}
	visited := map[*Routine]bool{}
	queue := []*Routine{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n == target {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		for i := 0; i < n.childCount; i++ {
			queue = append(queue, n.children[i])
		}
		if n.overflow != nil {
			queue = append(queue, n.overflow)
		}
	}
	return false
}

// Defer places an extra hold on r, delaying it: r must not have already
// reached zero holds (it must not yet have run), and the caller must
// release the extra hold with a matching Dispatch call of its own before r
// can become ready. This lets a caller reserve the right to release r later
// - after some condition decided outside the dependency graph - without
// racing against the graph's own edges reaching zero first.
func (d *Dispatcher) Defer(r *Routine) *Routine {
	r.lockCount.Add(1)
	return r
}

// Dispatch releases one hold on r (either the caller's own allocation
// hold, or a predecessor-edge hold); once every hold has been released, r
// becomes ready: a routine with a callable is handed to its target Warp's
// RunIn, or the dispatcher's pool at its priority if it has no Warp; a
// routine with no callable (a junction, or a caller-driven fan-out node)
// is executed inline immediately, since there is no actual work to
// schedule.
func (d *Dispatcher) Dispatch(r *Routine) {
	if r.lockCount.Add(-1) != 0 {
		return
	}
	if r.callable == nil {
		d.execute(r)
		return
	}
	run := func() { d.execute(r) }
	var err error
	if r.warp != nil {
		err = r.warp.RunIn(run)
	} else {
		err = d.pool.Submit(run, r.priority)
	}
	if err != nil {
		run()
	}
}

func (d *Dispatcher) execute(r *Routine) {
	if !d.runCallable(r) {
		return
	}
	for i := 0; i < r.childCount; i++ {
		d.Dispatch(r.children[i])
	}
	if r.overflow != nil {
		d.Dispatch(r.overflow)
	}
	d.free(r)
	d.complete(true)
}

func (d *Dispatcher) runCallable(r *Routine) (ok bool) {
	g := guard.New(guard.Add, &r.lockCount)
	defer func() {
		if rec := recover(); rec != nil {
			g.Release()
			d.mu.Lock()
			d.resurrect = append(d.resurrect, resurrectEntry{routine: r, reason: rec})
			d.mu.Unlock()
			if l := xlog.L(); l != nil {
				l.Err().Err(&xerrors.PanicError{Value: rec, Stack: debug.Stack()}).Log("dispatcher: routine panicked")
			}
			ok = false
		}
	}()
	if r.callable != nil {
		r.callable()
	}
	g.Disarm()
	ok = true
	return
}

func (d *Dispatcher) free(r *Routine) {
	*r = Routine{}
}

// complete decrements the pending routine count and, if it reaches zero,
// invokes onComplete with success reflecting whichever routine triggered
// the transition. Mirrors the source's complete(bool): every zero-crossing
// fires the callback, not just the first one, so a Dispatcher that has
// more routines Allocated after draining to zero can fire onComplete again
// for the next wave.
func (d *Dispatcher) complete(success bool) {
	if d.pendingCount.Add(-1) == 0 && d.onComplete != nil {
		d.onComplete(d, success)
	}
}

// HasException reports whether any routine has panicked and is awaiting
// Resurrect or Cleanup.
func (d *Dispatcher) HasException() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.resurrect) > 0
}

// Resurrect re-dispatches every resurrected routine, most recently
// panicked first, giving each callable another chance to complete. Returns
// whether anything was resurrected.
func (d *Dispatcher) Resurrect() bool {
	d.mu.Lock()
	pending := d.resurrect
	d.resurrect = nil
	d.mu.Unlock()
	for i := len(pending) - 1; i >= 0; i-- {
		d.Dispatch(pending[i].routine)
	}
	return len(pending) > 0
}

// Cleanup discards every resurrected routine without retrying it, still
// counting each as a (failed) completion. The children of a discarded
// routine are not released, so they never run and stay pending. Returns
// whether anything was discarded.
func (d *Dispatcher) Cleanup() bool {
	d.mu.Lock()
	pending := d.resurrect
	d.resurrect = nil
	d.mu.Unlock()
	for _, e := range pending {
		d.free(e.routine)
		d.complete(false)
	}
	return len(pending) > 0
}

// PendingCount returns the number of routines allocated but not yet freed.
func (d *Dispatcher) PendingCount() int64 {
	return d.pendingCount.Load()
}
