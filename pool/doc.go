// Package pool implements a work-stealing worker pool: a fixed number of
// goroutines drain a bank of lock-free, priority-banded task stacks.
//
// Scheduling algorithm
//
// Tasks are submitted at a priority, clamped to [0, threadCount-1]. Each
// priority band is represented D times (D = the duplicate count, 4 by
// default) to reduce contention between producers: Submit probes the D
// duplicate heads for the requested band, starting at an offset derived
// from the caller's own worker index (so a worker submitting work tends to
// land on "its own" duplicate, improving cache locality), and installs onto
// the first empty one it finds. If all D are occupied it instead chains
// onto whichever of the D currently holds the fewest queued tasks, which is
// this module's Go-native substitute for the original design's raw
// pointer-distance load-balancing heuristic (Go disallows pointer
// arithmetic between unrelated allocations, so a per-head running length
// counter serves the same balancing purpose).
//
// Workers fetch by scanning duplicate groups, then priority bands within
// each group, in an order shifted by their own worker index, so workers
// also prefer the duplicate most likely to be "theirs." A found head is
// drained with an atomic exchange-to-nil; its first entry (the most recently
// pushed) is executed, and the remainder is re-published onto the head,
// with any tasks that raced in between the drain and the re-publish
// relinked in front of it.
//
// Priority's dual role
//
// priority passed to Submit also doubles as a consumer-side filter: workers
// only consider bands below a size derived from the pool's current
// throttle (see Limit, and package balancer, which adjusts it adaptively).
// A higher limit narrows the band window a worker will poll, throttling how
// much of the lowest-priority backlog gets drained per cycle under load.
//
// Current worker index
//
// CurrentThreadIndex, and the "am I on a worker goroutine" checks used by
// package warp, are backed by internal/gls goroutine-local storage rather
// than a parameter threaded through every call - matching this package's
// external surface to the bare-accessor-function contract described for
// the scheduler this is based on.
package pool
