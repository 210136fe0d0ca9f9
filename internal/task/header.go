// File: internal/task/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The task header carries every bit of bookkeeping the executor and the
// waker protocol need to agree on, packed so that it can be mutated with
// plain atomic read-modify-writes and never a mutex: wake_by_ref legally
// runs on a goroutine other than the executor's own (a timer firing, a
// cross-executor waker), while every other header field is touched only
// from the owning executor's thread.
package task

import "sync/atomic"

// State is a bitset over the lifecycle of a Task.
type State uint32

const (
	// Scheduled means the Task is either inside its TaskQueue or about to
	// be: one reference is held on its behalf.
	Scheduled State = 1 << iota
	// Running means the executor is currently inside Task.Run for this
	// Task. Running and Completed are mutually exclusive.
	Running
	// Completed means the future has produced a value: output is valid
	// and the future has been dropped.
	Completed
	// Closed means the future will never be polled again. Once Closed,
	// the output is either already consumed or was never going to be
	// read by anyone.
	Closed
	// Handle means a JoinHandle still references the Task.
	Handle
)

type header struct {
	state      atomic.Uint32
	executorID uint64
	references atomic.Int32
	awaiter    atomic.Pointer[Waker]
	destroyed  atomic.Bool
}

func (h *header) load() State {
	return State(h.state.Load())
}

func (h *header) hasHandle() bool {
	return h.load()&Handle != 0
}

// tryDestroy marks the header as torn down exactly once. In a garbage
// collected runtime there is no allocation to free here, but the flag
// lets tests assert that destruction only ever happens once, regardless
// of how many JoinHandles or Wakers still reference this Task.
func (h *header) tryDestroy() bool {
	return h.destroyed.CompareAndSwap(false, true)
}

// Destroyed reports whether this task's header has been torn down. Exposed
// for tests exercising the reference-counting invariants; ordinary callers
// never need it.
func (h *header) Destroyed() bool {
	return h.destroyed.Load()
}

func (h *header) registerAwaiter(w *Waker) {
	next := w.Clone()
	prev := h.awaiter.Swap(next)
	if prev != nil {
		prev.Release()
	}
}

func (h *header) notifyAwaiter() {
	w := h.awaiter.Swap(nil)
	if w != nil {
		w.Wake()
	}
}
