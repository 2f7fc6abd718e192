package async

import (
	"sync/atomic"

	"github.com/joeycumines/iris/internal/fiber"
	"github.com/joeycumines/iris/warp"
)

// Coro is passed to a coroutine body started with Go, and is the body's
// only way to suspend: every method here parks the body's goroutine and
// arranges for it to be resumed by posting through a target Warp, never by
// waking it directly.
type Coro struct {
	fib *fiber.Fiber
}

type request interface {
	dispatch(d *driver)
}

type switchRequest struct {
	target *warp.Warp
}

func (r switchRequest) dispatch(d *driver) {
	d.resumeOn(r.target, warp.Current())
}

type selectRequest struct {
	warps []*warp.Warp
}

func (r selectRequest) dispatch(d *driver) {
	var picked atomic.Pointer[warp.Warp]
	for _, w := range r.warps {
		w := w
		_ = w.Post(func() {
			if picked.CompareAndSwap(nil, w) {
				d.resumeOn(w, w)
			}
		})
	}
}

// driver owns a Coro's fiber and is the only thing that ever calls Resume
// on it, always from within a task posted to the warp being switched to.
type driver struct {
	fib *fiber.Fiber
}

func (d *driver) resumeOn(w *warp.Warp, arg any) {
	run := func() {
		out, done := d.fib.Resume(arg)
		if done {
			return
		}
		out.(request).dispatch(d)
	}
	if w != nil {
		_ = w.Post(run)
		return
	}
	go run()
}

// Go starts a coroutine body, initially resumed on initial (or a bare
// goroutine, if initial is nil).
func Go(initial *warp.Warp, body func(c *Coro)) {
	fib := fiber.New(func(f *fiber.Fiber, _ any) {
		body(&Coro{fib: f})
	})
	(&driver{fib: fib}).resumeOn(initial, nil)
}

// Switch suspends the calling coroutine and resumes it on target, with
// target's exclusivity held, then returns the warp it was running on before
// the switch (nil if it was on a bare goroutine), so callers can Switch back
// later.
func (c *Coro) Switch(target *warp.Warp) *warp.Warp {
	w, _ := c.fib.Suspend(switchRequest{target: target}).(*warp.Warp)
	return w
}

// Select suspends the calling coroutine and resumes it as soon as any one
// of warps becomes available, returning whichever warp won.
func (c *Coro) Select(warps ...*warp.Warp) *warp.Warp {
	w, _ := c.fib.Suspend(selectRequest{warps: warps}).(*warp.Warp)
	return w
}

// Yield cooperatively re-queues the calling coroutine behind whatever else
// is already queued on current, giving it a turn before resuming.
func (c *Coro) Yield(current *warp.Warp) {
	c.Switch(current)
}
