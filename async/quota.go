package async

import (
	"context"
	"sync"
)

// Quota is a multi-dimension semaphore: Acquire reserves an amount along
// each of several independent dimensions atomically - either every
// dimension has enough available and all are debited together, or the
// call blocks (none are debited) until they do. Release credits amounts
// back and wakes any blocked Acquire whose full request became
// satisfiable as a result.
type Quota struct {
	mu        sync.Mutex
	capacity  []int64
	available []int64
	waiters   []*quotaWaiter
}

type quotaWaiter struct {
	amounts []int64
	ready   chan struct{}
}

// NewQuota constructs a Quota with the given per-dimension capacities,
// initially fully available.
func NewQuota(capacity ...int64) *Quota {
	q := &Quota{
		capacity:  append([]int64(nil), capacity...),
		available: append([]int64(nil), capacity...),
	}
	return q
}

func (q *Quota) satisfiableLocked(amounts []int64) bool {
	for i, a := range amounts {
		if q.available[i] < a {
			return false
		}
	}
	return true
}

func (q *Quota) debitLocked(amounts []int64) {
	for i, a := range amounts {
		q.available[i] -= a
	}
}

func (q *Quota) creditLocked(amounts []int64) {
	for i, a := range amounts {
		q.available[i] += a
		if q.available[i] > q.capacity[i] {
			q.available[i] = q.capacity[i]
		}
	}
}

// wakeSatisfiableLocked grants the quota, in FIFO order, to every waiter
// whose request is satisfiable given the current available amounts; a
// waiter that isn't stays queued without holding back the ones behind it.
func (q *Quota) wakeSatisfiableLocked() {
	kept := q.waiters[:0]
	for _, w := range q.waiters {
		if !q.satisfiableLocked(w.amounts) {
			kept = append(kept, w)
			continue
		}
		q.debitLocked(w.amounts)
		close(w.ready)
	}
	q.waiters = kept
}

// Acquire reserves amounts (one per dimension, in the same order passed to
// NewQuota) all-or-nothing, blocking until every dimension has enough
// available or ctx is done. On cancellation, nothing is debited.
func (q *Quota) Acquire(ctx context.Context, amounts ...int64) (*QuotaGuard, error) {
	q.mu.Lock()
	if q.satisfiableLocked(amounts) {
		q.debitLocked(amounts)
		q.mu.Unlock()
		return &QuotaGuard{q: q, amounts: amounts}, nil
	}
	w := &quotaWaiter{amounts: amounts, ready: make(chan struct{})}
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	select {
	case <-w.ready:
		return &QuotaGuard{q: q, amounts: amounts}, nil
	case <-ctx.Done():
		q.mu.Lock()
		select {
		case <-w.ready:
			q.mu.Unlock()
			return &QuotaGuard{q: q, amounts: amounts}, nil
		default:
		}
		for i, ww := range q.waiters {
			if ww == w {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				break
			}
		}
		q.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release credits amounts back to the quota, waking any blocked Acquire
// calls this makes satisfiable. Prefer QuotaGuard.Release for amounts
// obtained via Acquire, to avoid mismatched bookkeeping.
func (q *Quota) Release(amounts ...int64) {
	q.mu.Lock()
	q.creditLocked(amounts)
	q.wakeSatisfiableLocked()
	q.mu.Unlock()
}

// QuotaGuard is a one-shot handle on a successful Acquire, returned so
// callers can release exactly what they acquired without restating the
// amounts.
type QuotaGuard struct {
	q        *Quota
	amounts  []int64
	released bool
}

// Release credits the guarded amounts back to the quota. Safe to call more
// than once; only the first call has effect.
func (g *QuotaGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.q.Release(g.amounts...)
}
