package pool

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/iris/internal/gls"
	"github.com/joeycumines/iris/internal/slab"
	"github.com/joeycumines/iris/internal/xerrors"
	"github.com/joeycumines/iris/internal/xlog"
	"github.com/joeycumines/iris/task"
)

const defaultDuplicateCount = 4

// Pool is a fixed-size bank of worker goroutines draining a priority-banded
// lock-free task queue. A zero Pool is not usable; construct one with
// NewPool.
type Pool struct {
	threadCount     int
	duplicateCount  int
	initialLimit    int
	hasInitialLimit bool

	heads   []atomic.Pointer[task.Task]
	lengths []atomic.Int64

	taskCount    atomic.Int64
	runningCount atomic.Int32
	waitingCount atomic.Int32
	limit        atomic.Int32
	externalSeq  atomic.Int32

	mu   sync.Mutex
	cond *sync.Cond

	started    atomic.Bool
	terminated atomic.Bool

	wg sync.WaitGroup

	taskAlloc *slab.Pool[task.Task]

	current *gls.Store[int]

	metrics metrics
}

type metrics struct {
	submitted atomic.Int64
	executed  atomic.Int64
	panics    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of a Pool's lifetime counters.
type MetricsSnapshot struct {
	Submitted int64
	Executed  int64
	Panics    int64
}

// NewPool constructs a Pool with threadCount workers (minimum 1). Workers
// are not started until Start is called.
func NewPool(threadCount int, opts ...Option) *Pool {
	if threadCount < 1 {
		threadCount = 1
	}
	p := &Pool{
		threadCount:    threadCount,
		duplicateCount: defaultDuplicateCount,
		current:        gls.NewStore[int](),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.duplicateCount < 1 {
		p.duplicateCount = 1
	}
	size := p.duplicateCount * p.threadCount
	p.heads = make([]atomic.Pointer[task.Task], size)
	p.lengths = make([]atomic.Int64, size)
	if p.hasInitialLimit {
		p.limit.Store(int32(clampInt(p.initialLimit, 0, threadCount)))
	} else {
		p.limit.Store(0)
	}
	p.taskAlloc = slab.New[task.Task](threadCount, func() *task.Task { return new(task.Task) })
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Start spawns the pool's worker goroutines. Calling Start more than once
// is a no-op.
func (p *Pool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(p.threadCount)
	for i := 0; i < p.threadCount; i++ {
		go p.threadLoop(i)
	}
	if l := xlog.L(); l != nil {
		l.Info().Int("workers", p.threadCount).Log("pool: started")
	}
}

func (p *Pool) threadLoop(i int) {
	defer p.wg.Done()
	p.current.Set(i)
	defer p.current.Clear()
	p.runningCount.Add(1)
	defer p.runningCount.Add(-1)
	for !p.terminated.Load() {
		if !p.pollAt(p.effectivePrioritySize(), i) {
			p.delay(i)
		}
	}
}

// MakeCurrent registers the calling goroutine as worker index i, for
// external threads (see Append) that want to participate in the duplicate-
// head locality heuristic without being a pool-owned worker goroutine.
func (p *Pool) MakeCurrent(i int) {
	p.current.Set(i)
}

// Append reserves a fresh external thread index for the calling goroutine
// and registers it as current, exactly as MakeCurrent would. Returns the
// reserved index.
func (p *Pool) Append() int {
	i := p.threadCount + int(p.externalSeq.Add(1)) - 1
	p.current.Set(i)
	return i
}

// CurrentThreadIndex returns the worker/external index registered for the
// calling goroutine, and whether one was registered at all.
func (p *Pool) CurrentThreadIndex() (int, bool) {
	return p.current.Get()
}

func (p *Pool) currentThreadIndexOrDefault() int {
	i, ok := p.current.Get()
	if !ok {
		return 0
	}
	return i
}

// Limit sets the pool's throttle n: workers poll only the highest
// threadCount-n priority bands (at least one), and a submit wakes a sleeping
// worker only while more than priority+n workers are waiting. A higher n
// throttles more; 0 (the default) throttles nothing. Clamped to
// [0, threadCount].
func (p *Pool) Limit(n int) {
	p.limit.Store(int32(clampInt(n, 0, p.threadCount)))
}

func (p *Pool) effectivePrioritySize() int {
	n := p.threadCount
	bound := int(p.limit.Load()) + 1
	if bound > n {
		bound = n
	}
	size := n + 1 - bound
	return clampInt(size, 1, n)
}

func clampPriority(priority, threadCount int) int {
	max := threadCount - 1
	if max < 0 {
		max = 0
	}
	return clampInt(priority, 0, max)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Submit queues fn for execution at the given priority band (clamped to
// [0, threadCount-1], lower runs sooner). Returns ErrPoolTerminated if the
// pool has already been terminated.
func (p *Pool) Submit(fn func(), priority int) error {
	if p.terminated.Load() {
		return xerrors.ErrPoolTerminated
	}
	idx := p.currentThreadIndexOrDefault()
	shard := p.shardIndex(idx)
	t := p.taskAlloc.Get(shard)
	t.Fn = fn
	t.SetNext(nil)
	p.metrics.submitted.Add(1)
	p.taskCount.Add(1)
	p.enqueue(t, priority, idx)
	return nil
}

func (p *Pool) shardIndex(threadIndex int) int {
	n := len(p.lengths) / p.duplicateCount
	if n < 1 {
		n = 1
	}
	idx := threadIndex % n
	if idx < 0 {
		idx += n
	}
	return idx
}

// enqueue installs t onto one of the D duplicate heads for priority,
// preferring an empty head, or the lowest-length occupied head otherwise.
func (p *Pool) enqueue(t *task.Task, priority, currentThreadIndex int) {
	priority = clampPriority(priority, p.threadCount)
	d := p.duplicateCount
	bestIdx := -1
	var bestLen int64 = -1
	for k := 0; k < d; k++ {
		dup := (k + currentThreadIndex) % d
		idx := dup*p.threadCount + priority
		if p.heads[idx].CompareAndSwap(nil, t) {
			p.lengths[idx].Add(1)
			p.wakeupOneWithPriority(priority)
			return
		}
		l := p.lengths[idx].Load()
		if bestIdx == -1 || l < bestLen {
			bestIdx, bestLen = idx, l
		}
	}
	for {
		old := p.heads[bestIdx].Load()
		t.SetNext(old)
		if p.heads[bestIdx].CompareAndSwap(old, t) {
			break
		}
	}
	p.lengths[bestIdx].Add(1)
	p.wakeupOneWithPriority(priority)
}

// fetch returns the index of the first non-empty head within prioritySize
// bands, scanning duplicate groups in an order shifted by
// currentThreadIndex, or -1 if none are occupied.
func (p *Pool) fetch(prioritySize, currentThreadIndex int) int {
	d := p.duplicateCount
	for k := 0; k < d; k++ {
		dup := (k + currentThreadIndex) % d
		base := dup * p.threadCount
		for n := 0; n < prioritySize; n++ {
			idx := base + n
			if p.heads[idx].Load() != nil {
				return idx
			}
		}
	}
	return -1
}

// pollAt drains and executes a single task from within prioritySize bands,
// using currentThreadIndex to pick a scan order. Returns false if nothing
// was found.
func (p *Pool) pollAt(prioritySize, currentThreadIndex int) bool {
	idx := p.fetch(prioritySize, currentThreadIndex)
	if idx < 0 {
		return false
	}
	org := p.heads[idx].Swap(nil)
	if org == nil {
		return false
	}
	p.lengths[idx].Add(-1)
	first := org
	remaining := first.Next()
	first.SetNext(nil)
	raced := p.heads[idx].Swap(remaining)
	if raced != nil {
		tail := raced
		for tail.Next() != nil {
			tail = tail.Next()
		}
		for {
			cur := p.heads[idx].Load()
			tail.SetNext(cur)
			if p.heads[idx].CompareAndSwap(cur, raced) {
				break
			}
		}
		p.lengths[idx].Add(1)
	}
	priority := idx % p.threadCount
	p.wakeupOneWithPriority(priority)
	p.executeTask(first, p.shardIndex(currentThreadIndex))
	return true
}

// Poll drains and executes a single task, using this pool's current
// adaptive concurrency limit to decide how many priority bands to
// consider. Returns false if nothing was available.
func (p *Pool) Poll() bool {
	idx := p.currentThreadIndexOrDefault()
	return p.pollAt(p.effectivePrioritySize(), idx)
}

// PollPriority is like Poll, but considers exactly the [0, priority] bands.
func (p *Pool) PollPriority(priority int) bool {
	idx := p.currentThreadIndexOrDefault()
	size := clampInt(priority+1, 1, p.threadCount)
	return p.pollAt(size, idx)
}

// PollDelay polls once, and if nothing is available, blocks up to d for
// new work before giving up. Returns false only if nothing became
// available within d.
func (p *Pool) PollDelay(priority int, d time.Duration) bool {
	idx := p.currentThreadIndexOrDefault()
	size := clampInt(priority+1, 1, p.threadCount)
	if p.pollAt(size, idx) {
		return true
	}
	if p.terminated.Load() {
		return false
	}
	p.mu.Lock()
	p.waitingCount.Add(1)
	timer := time.AfterFunc(d, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	p.cond.Wait()
	timer.Stop()
	p.waitingCount.Add(-1)
	p.mu.Unlock()
	if p.pollAt(size, idx) {
		return true
	}
	p.wakeupOneWithPriority(0)
	return false
}

func (p *Pool) delay(currentThreadIndex int) {
	if p.terminated.Load() {
		return
	}
	p.mu.Lock()
	p.waitingCount.Add(1)
	if p.fetch(p.threadCount, currentThreadIndex) == -1 && !p.terminated.Load() {
		p.cond.Wait()
	}
	p.waitingCount.Add(-1)
	p.mu.Unlock()
}

func (p *Pool) wakeupOneWithPriority(priority int) {
	p.mu.Lock()
	if int(p.waitingCount.Load()) > priority+int(p.limit.Load()) {
		p.cond.Signal()
	}
	p.mu.Unlock()
}

func (p *Pool) wakeupAll() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *Pool) executeTask(t *task.Task, shard int) {
	p.taskCount.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.metrics.panics.Add(1)
			err := &xerrors.PanicError{Value: r, Stack: debug.Stack()}
			if l := xlog.L(); l != nil {
				l.Err().Err(err).Log("pool: task panicked")
			}
		}
		t.Reset()
		p.taskAlloc.Put(shard, t)
	}()
	p.metrics.executed.Add(1)
	t.Run()
}

// Cleanup drains every priority band across every duplicate head, executing
// everything found, and reports whether all heads were already empty (i.e.
// nothing was drained).
func (p *Pool) Cleanup() bool {
	empty := true
	for idx := range p.heads {
		org := p.heads[idx].Swap(nil)
		if org == nil {
			continue
		}
		empty = false
		p.lengths[idx].Store(0)
		for n := org; n != nil; {
			next := n.Next()
			n.SetNext(nil)
			p.executeTask(n, p.shardIndex(idx%p.threadCount))
			n = next
		}
	}
	return empty
}

// Terminate stops accepting scheduling decisions from Start's worker loop
// and wakes every blocked worker. It does not wait for workers to exit;
// call Join for that.
func (p *Pool) Terminate() {
	p.terminated.Store(true)
	p.wakeupAll()
}

// Join terminates the pool (if not already), waits for every worker
// goroutine to exit, and drains any remaining queued tasks.
func (p *Pool) Join() {
	if len(p.heads) == 0 {
		return
	}
	p.Terminate()
	p.wg.Wait()
	for !p.Cleanup() {
	}
	if l := xlog.L(); l != nil {
		l.Info().Log("pool: joined")
	}
}

// Finalize releases any pool-owned resources once Join has returned. Go's
// garbage collector reclaims the task allocator shards and head arrays on
// its own, so this exists chiefly to mirror the two-phase shutdown
// (terminate-and-drain, then release) and give callers a single place to
// hook additional teardown.
func (p *Pool) Finalize() bool {
	return p.Cleanup()
}

// PendingCount returns the number of tasks submitted but not yet started.
func (p *Pool) PendingCount() int64 {
	return p.taskCount.Load()
}

// Metrics returns a snapshot of the pool's lifetime counters.
func (p *Pool) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		Submitted: p.metrics.submitted.Load(),
		Executed:  p.metrics.executed.Load(),
		Panics:    p.metrics.panics.Load(),
	}
}

// ThreadCount returns the number of pool-owned worker goroutines.
func (p *Pool) ThreadCount() int {
	return p.threadCount
}
