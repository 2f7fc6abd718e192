// Package dispatcher implements a DAG task scheduler: routines (allocated
// via Dispatcher.Allocate, each bound to a target Warp and priority) are
// wired into a dependency graph with Dispatcher.Order, then released with
// Dispatcher.Dispatch. A routine runs exactly once every one of its
// dependency edges, plus its own initial allocation hold, has been
// released - so the caller releases every routine once after wiring the
// whole graph, and the Dispatcher itself releases each routine's children
// automatically as that routine completes.
//
// Scheduling
//
// A routine becomes ready when its lock count reaches zero. If it carries
// a callable, it is handed off rather than run on whatever goroutine
// happened to release it: a routine bound to a Warp runs through that
// Warp's RunIn (so it is serialized against the Warp's other work), and a
// routine with no Warp is submitted to the dispatcher's pool at its own
// priority - mirroring the source's "warp->queue_routine if warped,
// otherwise worker.queue(task, priority)" split. A callable-less routine
// (a junction, or a caller-constructed fan-out node) has no work to hand
// off, so it always executes inline, immediately.
//
// Fan-out beyond four children
//
// Each Routine holds up to four children inline. A fifth Order call
// synthesizes a junction routine - an ordinary, callable-less Routine
// spliced in as the node's sole extra child - and recurses the new edge
// onto it, so arbitrarily wide fan-out is just a chain of junctions, each
// still bounded to four slots.
//
// Exceptions
//
// A panicking routine callable is not freed and does not propagate its
// children: an internal/guard.Guard re-arms its lock count to one (the
// Go analogue of the source's routine_guard_t relinking onto the
// resurrect list on abnormal exit) and it is pushed onto a resurrect
// stack. HasException reports whether that stack is non-empty; Resurrect
// re-dispatches every resurrected routine (last panicked, first retried);
// Cleanup instead discards them without retrying, still counting each as
// a failed completion; the children of a discarded routine are not
// released.
//
// Completion
//
// The optional onComplete callback passed to NewDispatcher fires every
// time the dispatcher's pending routine count transitions to zero, with a
// success flag reporting whether the routine responsible for that
// transition ran to completion (true) or was discarded via Cleanup
// (false).
//
// Cycle detection runs at Order time: adding an edge that would let the
// new child already reach the parent is rejected with ErrCycle.
package dispatcher
