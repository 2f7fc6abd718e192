package async

import (
	"github.com/joeycumines/iris/dispatcher"
)

// DispatchCoroutine starts t and returns a Routine that only becomes
// dispatchable once t completes - letting a DAG hold off on a branch until
// an independently-scheduled async Task finishes, rather than forcing the
// whole DAG onto one Warp. Wire children onto the returned Routine with
// Dispatcher.Order exactly as for any other node.
func DispatchCoroutine[T any](d *dispatcher.Dispatcher, t *Task[T]) *dispatcher.Routine {
	r := d.Allocate(nil, nil, 0)
	t.OnComplete(func(T, error) {
		d.Dispatch(r)
	})
	t.Start()
	return r
}

// CoroutineDispatch wires resume as a dependent of every routine in
// routines, then releases each routine's own allocation hold - so resume
// becomes dispatchable once all of them have completed. It is the
// counterpart to DispatchCoroutine: a coroutine body that needs to wait on
// several independently-dispatched Routines allocates resume itself (e.g.
// via Dispatcher.Allocate with a callable that re-dispatches its Task) and
// passes the Routines it must wait on here.
func CoroutineDispatch(d *dispatcher.Dispatcher, resume *dispatcher.Routine, routines ...*dispatcher.Routine) {
	for _, r := range routines {
		_ = d.Order(r, resume)
	}
	for _, r := range routines {
		d.Dispatch(r)
	}
}
