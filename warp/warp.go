package warp

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/iris/internal/gls"
	"github.com/joeycumines/iris/internal/guard"
	"github.com/joeycumines/iris/internal/ringqueue"
	"github.com/joeycumines/iris/internal/xerrors"
	"github.com/joeycumines/iris/internal/xlog"
	"github.com/joeycumines/iris/pool"
	"github.com/joeycumines/iris/task"
)

var currentWarp = gls.NewStore[*Warp]()

// Current returns the Warp the calling goroutine is presently draining, or
// nil if it is not executing inside any Warp's drain loop.
func Current() *Warp {
	w, _ := currentWarp.Get()
	return w
}

type gridItem struct {
	version int64
	t       *task.Task
}

// Warp is a serialization domain: posted work runs with mutual exclusion
// against every other task posted to the same Warp, one at a time, on
// goroutines borrowed from a pool.Pool. A zero Warp is not usable;
// construct one with NewWarp.
type Warp struct {
	pool     *pool.Pool
	grid     bool
	priority int

	scheduled    atomic.Bool
	suspendCount atomic.Int64

	strandHead atomic.Pointer[task.Task]
	strandExec atomic.Pointer[task.Task]

	gridMu         sync.Mutex
	gridRings      []*ringqueue.Queue[gridItem]
	barrierVersion atomic.Int64
}

// NewWarp constructs a Warp whose drain tasks are scheduled on p.
func NewWarp(p *pool.Pool, opts ...Option) *Warp {
	w := &Warp{pool: p}
	for _, opt := range opts {
		opt(w)
	}
	if w.grid {
		n := p.ThreadCount()
		if n < 1 {
			n = 1
		}
		w.gridRings = make([]*ringqueue.Queue[gridItem], n)
		for i := range w.gridRings {
			w.gridRings[i] = ringqueue.New[gridItem]()
		}
	}
	return w
}

// GetPool returns the pool this Warp schedules its drain tasks on.
func (w *Warp) GetPool() *pool.Pool {
	return w.pool
}

// Post queues fn for exclusive execution on this Warp, scheduling a drain
// task on the underlying pool if one is not already running or queued.
func (w *Warp) Post(fn func()) error {
	t := &task.Task{Fn: fn}
	w.pushRegular(t)
	w.trySchedule()
	return nil
}

// PostExternal is for a caller outside any worker goroutine (e.g. a request
// handler goroutine handing work to a Warp). In strand mode it is exactly
// Post; in grid mode, which keeps one queue per worker, it hands fn to the
// pool as a task that posts it from a worker goroutine.
func (w *Warp) PostExternal(fn func()) error {
	if w.grid {
		return w.pool.Submit(func() { _ = w.Post(fn) }, w.priority)
	}
	return w.Post(fn)
}

// RunIn runs fn immediately if the calling goroutine is already draining
// this Warp (the inline fast path), otherwise it behaves like Post.
func (w *Warp) RunIn(fn func()) error {
	if Current() == w {
		fn()
		return nil
	}
	return w.Post(fn)
}

// PostParallel suspends this Warp's regular queue, runs fn concurrently on
// the underlying pool (outside this Warp's exclusivity), and resumes the
// Warp's regular queue once fn returns. The suspend/resume pairing is held
// by a suspend_guard_t-style internal/guard.Guard, so the resume side
// happens exactly once even if fn panics (the pool recovers the panic at
// its task-execution boundary, but the guard's defer still runs first).
func (w *Warp) PostParallel(fn func(), priority int) error {
	w.Suspend()
	g := guard.New(guard.Sub, &w.suspendCount)
	err := w.pool.Submit(func() {
		defer func() {
			g.Release()
			w.flush()
		}()
		fn()
	}, priority)
	if err != nil {
		g.Release()
		w.flush()
	}
	return err
}

// PostParallelPost is PostParallel, except then is posted back onto this
// Warp's regular queue (rejoining its exclusivity) once fn completes, and
// the Warp's suspend count is only dropped after then has been enqueued.
func (w *Warp) PostParallelPost(fn func(), then func(), priority int) error {
	w.Suspend()
	g := guard.New(guard.Sub, &w.suspendCount)
	err := w.pool.Submit(func() {
		defer func() {
			g.Release()
			w.flush()
		}()
		fn()
		_ = w.Post(then)
	}, priority)
	if err != nil {
		g.Release()
		w.flush()
	}
	return err
}

// Suspend pauses this Warp's regular queue: posted work still queues, but
// the drain loop will not execute it until every outstanding Suspend has a
// matching Resume.
func (w *Warp) Suspend() {
	w.suspendCount.Add(1)
}

// Resume reverses one Suspend call, rescheduling the regular queue's drain
// once the suspend count returns to zero. flush is always safe to call
// here since hasWork reports false while any suspend remains outstanding.
func (w *Warp) Resume() {
	w.suspendCount.Add(-1)
	w.flush()
}

// QueueBarrier establishes a happens-before fence in grid storage mode:
// every task posted before this call is drained, across every producer,
// before any task posted after it. Strand mode already has a single total
// order, so QueueBarrier is a no-op there.
func (w *Warp) QueueBarrier() {
	w.barrierVersion.Add(1)
}

// Yield parks the calling goroutine until a continuation posted to this
// Warp's regular queue has run, giving every already-queued task a turn
// first. The caller blocks on a channel until the continuation runs, so it
// must not be called from a goroutine that is itself currently draining
// this Warp (that would deadlock). Package async's Coro.Yield does not use
// it; it re-queues a coroutine with Coro.Switch instead.
func (w *Warp) Yield() {
	done := make(chan struct{})
	_ = w.Post(func() { close(done) })
	<-done
}

// Join blocks the calling goroutine until this Warp's queue is fully
// drained and it is not suspended, busy-polling at a short interval.
func (w *Warp) Join() {
	for {
		if w.suspendCount.Load() == 0 && !w.scheduled.Load() && !w.hasWork() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (w *Warp) trySchedule() {
	if w.scheduled.CompareAndSwap(false, true) {
		if err := w.pool.Submit(w.drainOnce, w.priority); err != nil {
			w.scheduled.Store(false)
		}
	}
}

func (w *Warp) flush() {
	if w.hasWork() {
		w.trySchedule()
	}
}

func (w *Warp) drainOnce() {
	prev := Current()
	currentWarp.Set(w)
	defer func() {
		if prev != nil {
			currentWarp.Set(prev)
		} else {
			currentWarp.Clear()
		}
	}()

	for {
		w.drainAvailable()
		w.scheduled.Store(false)
		if w.hasWork() && w.scheduled.CompareAndSwap(false, true) {
			continue
		}
		return
	}
}

func (w *Warp) drainAvailable() {
	for w.suspendCount.Load() == 0 {
		t, ok := w.popRegular()
		if !ok {
			return
		}
		w.runTask(t)
	}
}

func (w *Warp) runTask(t *task.Task) {
	defer func() {
		if r := recover(); r != nil {
			if l := xlog.L(); l != nil {
				l.Err().Err(&xerrors.PanicError{Value: r, Stack: debug.Stack()}).Log("warp: task panicked")
			}
		}
	}()
	t.Run()
}

func (w *Warp) hasWork() bool {
	if w.suspendCount.Load() != 0 {
		return false
	}
	if w.grid {
		return w.gridHasWork()
	}
	return w.strandHead.Load() != nil || w.strandExec.Load() != nil
}

func (w *Warp) pushRegular(t *task.Task) {
	if w.grid {
		w.pushGrid(t)
		return
	}
	for {
		old := w.strandHead.Load()
		t.SetNext(old)
		if w.strandHead.CompareAndSwap(old, t) {
			return
		}
	}
}

func (w *Warp) popRegular() (*task.Task, bool) {
	if w.grid {
		return w.popGridItem()
	}
	return w.popStrandBatch()
}

// popStrandBatch detaches the whole strand stack, reverses it into post
// order, and returns it one node at a time across repeated calls by
// keeping the remainder in the private strandExec list, which is used up
// before the stack is detached again.
func (w *Warp) popStrandBatch() (*task.Task, bool) {
	batch := w.strandExec.Load()
	if batch == nil {
		old := w.strandHead.Swap(nil)
		if old == nil {
			return nil, false
		}
		batch = reverseTaskList(old)
	}
	w.strandExec.Store(batch.Next())
	batch.SetNext(nil)
	return batch, true
}

func (w *Warp) republishStrand(chain *task.Task) {
	tail := chain
	for tail.Next() != nil {
		tail = tail.Next()
	}
	for {
		cur := w.strandHead.Load()
		tail.SetNext(cur)
		if w.strandHead.CompareAndSwap(cur, chain) {
			return
		}
	}
}

func reverseTaskList(head *task.Task) *task.Task {
	var prev *task.Task
	cur := head
	for cur != nil {
		next := cur.Next()
		cur.SetNext(prev)
		prev = cur
		cur = next
	}
	return prev
}

func (w *Warp) gridShardForCurrent() int {
	n := len(w.gridRings)
	if n < 1 {
		return 0
	}
	idx, ok := w.pool.CurrentThreadIndex()
	if !ok {
		idx = 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func (w *Warp) pushGrid(t *task.Task) {
	shard := w.gridShardForCurrent()
	v := w.barrierVersion.Load()
	w.gridMu.Lock()
	w.gridRings[shard].Push(gridItem{version: v, t: t})
	w.gridMu.Unlock()
}

func (w *Warp) popGridItem() (*task.Task, bool) {
	w.gridMu.Lock()
	defer w.gridMu.Unlock()
	bestShard := -1
	var bestVersion int64
	for i, r := range w.gridRings {
		item, ok := r.Peek()
		if !ok {
			continue
		}
		if bestShard == -1 || item.version < bestVersion {
			bestShard, bestVersion = i, item.version
		}
	}
	if bestShard == -1 {
		return nil, false
	}
	item, _ := w.gridRings[bestShard].Pop()
	return item.t, true
}

func (w *Warp) gridHasWork() bool {
	w.gridMu.Lock()
	defer w.gridMu.Unlock()
	for _, r := range w.gridRings {
		if r.Len() > 0 {
			return true
		}
	}
	return false
}
