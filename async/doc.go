// Package async provides goroutine-based async tasks and the awaitable
// synchronization primitives built on top of them: Switch/Select (warp
// hand-off for coroutine bodies), Event, Pipe, Barrier and Quota.
//
// Task[T] is a lazily-started async operation: nothing runs until the
// first Await or OnComplete (or explicit Start). Coroutine bodies that need to suspend
// without blocking whatever warp they happen to be running on use
// internal/fiber: the body runs on its own goroutine, and Switch/Select
// suspend that goroutine while posting its resumption through the target
// warp, so resumption always happens with that warp's exclusivity held -
// never by directly waking the suspended goroutine.
package async
