// File: internal/task/joinhandle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// JoinHandle is the owner-side view of a Task: whoever spawned it uses this
// to await the result, cancel it, or walk away without caring about it.
package task

// JoinHandle lets the spawner of a Task await its result, cancel it, or
// drop interest in it entirely. A JoinHandle is itself a Future[*R]-shaped
// type (via Poll), so it can be awaited from inside another Task the same
// way any other future is.
type JoinHandle[R any] struct {
	t *Task[R]
}

// Poll implements the join protocol: while the task has neither completed
// nor closed, it registers w as the awaiter and reports Pending. Once the
// task is Completed (and not yet Closed), Poll claims the output exactly
// once by racing a single CAS against the task's own completion CAS, marks
// the task Closed, and returns the value. If the task was Closed instead
// (cancelled, or torn down for lacking a handle), Poll flushes any stale
// awaiter and reports done with a nil value.
func (jh *JoinHandle[R]) Poll(w *Waker) (*R, bool) {
	h := &jh.t.hdr
	for {
		state := h.load()

		if state&Closed != 0 {
			h.notifyAwaiter()
			return nil, true
		}

		if state&Completed == 0 {
			h.registerAwaiter(w)
			return nil, false
		}

		next := state | Closed
		if !h.state.CompareAndSwap(uint32(state), uint32(next)) {
			continue
		}
		h.notifyAwaiter()
		out := jh.t.output
		var zero R
		jh.t.output = zero
		return &out, true
	}
}

// Cancel requests that the task stop running. If the task is not currently
// mid-poll, its future is dropped immediately; otherwise the executor
// drops it the next time Run observes the Closed bit.
func (jh *JoinHandle[R]) Cancel() {
	h := &jh.t.hdr
	for {
		state := h.load()
		if state&(Completed|Closed) != 0 {
			return
		}
		next := state | Closed
		if !h.state.CompareAndSwap(uint32(state), uint32(next)) {
			continue
		}
		if state&Running == 0 {
			jh.t.future = nil
		}
		return
	}
}

// Release drops this JoinHandle's interest in the task, following the
// same three cases as the original drop implementation: if the task has
// already completed and nobody consumed the output, the output is dropped
// here and now; if the task is otherwise idle with no other references
// held, it is force-scheduled one last time so the executor tears its
// future down; in every other case clearing the Handle bit is enough and
// whatever reference is still outstanding (the run loop, a waker) will
// finish the job.
func (jh *JoinHandle[R]) Release() {
	h := &jh.t.hdr
	for {
		state := h.load()
		refs := h.references.Load()

		if state&Completed != 0 && state&Closed == 0 {
			next := (state | Closed) &^ Handle
			if !h.state.CompareAndSwap(uint32(state), uint32(next)) {
				continue
			}
			var zero R
			jh.t.output = zero
			if refs == 0 {
				h.tryDestroy()
			}
			return
		}

		if refs == 0 && state&Closed == 0 {
			next := Scheduled | Closed
			if !h.state.CompareAndSwap(uint32(state), uint32(next)) {
				continue
			}
			h.references.Add(1)
			jh.t.scheduleFn(jh.t)
			return
		}

		next := state &^ Handle
		if !h.state.CompareAndSwap(uint32(state), uint32(next)) {
			continue
		}
		if refs == 0 {
			h.tryDestroy()
		}
		return
	}
}
