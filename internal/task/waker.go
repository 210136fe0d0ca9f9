// File: internal/task/waker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Waker is the wake_by_ref/wake/clone/drop protocol from the task's vtable,
// lifted into a concrete Go type: a Runnable stands in for the raw pointer
// and function table the original implementation threads through unsafe
// code, and the Go compiler fills in the dispatch for us.
package task

// Runnable is the capability a Waker (and a TaskQueue) need from a Task
// without depending on its result type parameter. Only this package can
// produce a value satisfying it, since header and schedule are unexported;
// callers outside the package hold it purely to invoke Run.
type Runnable interface {
	// Run drives the task through one poll. It returns true if the task
	// rescheduled itself (a self-wake during this very poll); Run has then
	// already pushed it back onto its queue through its schedule callback,
	// so the bool is for bookkeeping and tests and the caller does nothing
	// further with it.
	Run() bool

	header() *header
	schedule()
}

// Waker holds one reference against the Task it targets. The reference is
// acquired when the Waker is created (via newWaker or Clone) and released
// exactly once, by Release or by Wake.
type Waker struct {
	r Runnable
}

func newWaker(r Runnable) *Waker {
	r.header().references.Add(1)
	return &Waker{r: r}
}

// Clone produces a new Waker sharing the same target, incrementing the
// target's reference count.
func (w *Waker) Clone() *Waker {
	w.r.header().references.Add(1)
	return &Waker{r: w.r}
}

// WakeByRef schedules the target task for another poll if it is not
// already scheduled, completed, or closed. Unlike Wake, it does not consume
// this Waker's reference, so the caller may call it many times from many
// places (e.g. once per readiness edge on a Source).
func (w *Waker) WakeByRef() {
	h := w.r.header()
	for {
		state := h.load()
		if state&(Completed|Closed) != 0 {
			return
		}
		if state&Scheduled != 0 {
			return
		}
		next := state | Scheduled
		if !h.state.CompareAndSwap(uint32(state), uint32(next)) {
			continue
		}
		if state&Running == 0 {
			w.r.schedule()
		}
		return
	}
}

// Wake is WakeByRef followed by Release, mirroring the consuming wake()
// call in the original vtable.
func (w *Waker) Wake() {
	w.WakeByRef()
	w.Release()
}

// Release drops this Waker's reference. If it is the last reference to a
// task that is neither completed nor closed, the task is force-scheduled
// one final time so the executor tears down its future; otherwise, if the
// task is already done, the header is destroyed once references reach
// zero.
func (w *Waker) Release() {
	h := w.r.header()
	refs := h.references.Add(-1)
	if refs < 0 {
		panic("task: waker released more times than it was cloned")
	}
	if refs != 0 || h.hasHandle() {
		return
	}
	state := h.load()
	if state&(Completed|Closed) != 0 {
		h.tryDestroy()
		return
	}
	if state&Scheduled == 0 {
		w.r.schedule()
	}
	h.state.Store(uint32(Scheduled | Closed))
}
