// Package warp implements a serialization domain: a Warp guarantees that at
// most one goroutine executes its posted work at a time, backed by a
// pool.Pool for the goroutines that actually run it.
//
// Two storage modes are available:
//
//   - Strand (default): a single lock-free MPSC stack. Post order becomes
//     a global FIFO by draining the stack with an atomic exchange-to-nil,
//     reversing the detached LIFO chain, and running it oldest-first.
//   - Grid (WithGridStorage): one queue per producer worker index,
//     guaranteeing only per-producer FIFO. QueueBarrier establishes a
//     happens-before fence across producers: every task posted before a
//     barrier call is run, by every producer, before any task posted
//     after it runs by any producer. This is implemented with a
//     monotonically increasing version stamped onto each task at post
//     time, and a drain that always picks the globally lowest unresolved
//     version across every producer queue. All grid rings and the
//     version merge share a single mutex in this port, taken by every
//     post and by the drain loop for every item it pops, so producers
//     contend on it with each other and with the drainer.
//
// A Warp's "current" state - whether the calling goroutine is presently
// executing inside this Warp's drain loop - is tracked with goroutine-local
// storage (internal/gls), not a parameter threaded through every call,
// mirroring the bare "current warp" accessor this package is modeled on.
// RunIn uses it for an inline fast path: posting work to the Warp you are
// already draining runs it immediately instead of round-tripping through
// the pool.
//
// Suspend/Resume pause a Warp's regular queue without blocking producers -
// posts still queue normally, they just won't be drained until the
// suspend count returns to zero. PostParallel and PostParallelPost use this
// to run work on the underlying pool concurrently with (i.e. outside of)
// the Warp's normal exclusivity, rejoining the Warp's serialized queue
// afterward; the suspend/resume pairing itself is held by an
// internal/guard.Guard, the Go analogue of the source's suspend_guard_t.
package warp
