// File: internal/task/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Task is the unit the executor schedules. It owns a Future, a header
// tracking its lifecycle bits and reference count, and the closure that
// pushes it back onto its TaskQueue when woken. There is no raw pointer
// dance here the way the Rust ancestor needs one: Go generics give us a
// typed Task[R] for spawn/join call sites, and the Runnable interface
// (waker.go) erases R for anything that only needs to drive or wake the
// task.
package task

import "fmt"

// Future is the minimal coroutine contract a Task drives: Poll either
// produces a final value (ready=true) or registers interest with w and
// returns ready=false, at which point something else is responsible for
// calling w.WakeByRef/Wake once progress becomes possible again. A Future
// that wants to keep the waker beyond the call must Clone it; the one
// handed to Poll is only valid for the duration of the call.
type Future[R any] interface {
	Poll(w *Waker) (R, bool)
}

// Task wraps a Future[R] with the scheduling bookkeeping the executor
// needs. It is always reached either through a *JoinHandle[R] or through
// the Runnable interface once placed on a TaskQueue.
type Task[R any] struct {
	hdr        header
	future     Future[R]
	output     R
	scheduleFn func(Runnable)
}

// New constructs a Task/JoinHandle pair and performs the task's initial
// scheduling: the header starts at Scheduled|Handle with zero references,
// and the explicit schedule call below is what adds the one reference that
// backs the Scheduled bit and actually enqueues the task.
func New[R any](future Future[R], executorID uint64, scheduleFn func(Runnable)) (*Task[R], *JoinHandle[R]) {
	t := &Task[R]{
		future:     future,
		scheduleFn: scheduleFn,
	}
	t.hdr.state.Store(uint32(Scheduled | Handle))
	t.hdr.executorID = executorID
	t.schedule()
	return t, &JoinHandle[R]{t: t}
}

func (t *Task[R]) header() *header {
	return &t.hdr
}

func (t *Task[R]) schedule() {
	t.hdr.references.Add(1)
	t.scheduleFn(t)
}

// ExecutorID reports the identity of the LocalExecutor this task was
// spawned on. executor.Spawn/SpawnInto record the target executor's id
// here at New time. Separately, they refuse to schedule a future onto a
// queue owned by a different executor than the one currently bound to
// the calling thread, since Go's QueueManager has no locking of its own
// and assumes every push comes from its owning executor's single Run
// loop thread; that check compares executors directly and does not read
// this field.
func (t *Task[R]) ExecutorID() uint64 {
	return t.hdr.executorID
}

// Destroyed reports whether the task's header has been torn down. Intended
// for tests verifying the destroy-exactly-once invariant.
func (t *Task[R]) Destroyed() bool {
	return t.hdr.Destroyed()
}

// Run drives the task through exactly one poll cycle, implementing the
// run algorithm: closed tasks are torn down without polling; otherwise the
// future is polled once under a Waker scoped to this call, and the
// resulting state transition decides whether the task reschedules itself,
// completes, or goes back to sleep awaiting an external wake.
func (t *Task[R]) Run() bool {
	h := &t.hdr

	if h.load()&Closed != 0 {
		t.future = nil
		t.clearScheduledBit()
		h.notifyAwaiter()
		t.releaseRef()
		return false
	}

	for {
		old := h.load()
		next := (old &^ Scheduled) | Running
		if h.state.CompareAndSwap(uint32(old), uint32(next)) {
			break
		}
	}

	out, ready := t.pollFuture()

	if ready {
		t.future = nil
		t.output = out
		for {
			old := h.load()
			next := (old &^ (Running | Scheduled)) | Completed
			keepsOutput := old&Handle != 0
			if !keepsOutput {
				next |= Closed
			}
			if !h.state.CompareAndSwap(uint32(old), uint32(next)) {
				continue
			}
			if !keepsOutput {
				var zero R
				t.output = zero
			}
			h.notifyAwaiter()
			t.releaseRef()
			return false
		}
	}

	for {
		cur := h.load()
		if cur&Closed != 0 {
			t.future = nil
			next := cur &^ (Running | Scheduled)
			if !h.state.CompareAndSwap(uint32(cur), uint32(next)) {
				continue
			}
			h.notifyAwaiter()
			t.releaseRef()
			return false
		}
		if cur&Scheduled != 0 {
			next := cur &^ Running
			if !h.state.CompareAndSwap(uint32(cur), uint32(next)) {
				continue
			}
			t.scheduleFn(t)
			return true
		}
		next := cur &^ Running
		if !h.state.CompareAndSwap(uint32(cur), uint32(next)) {
			continue
		}
		t.releaseRef()
		return false
	}
}

// pollFuture polls the future under a waker scoped to this call and
// recovers a panicking future: the panic is converted into task closure
// rather than crashing the whole process.
func (t *Task[R]) pollFuture() (out R, ready bool) {
	w := newWaker(t)
	defer w.Release()
	defer func() {
		if r := recover(); r != nil {
			for {
				old := t.hdr.load()
				next := (old | Scheduled | Closed) &^ Running
				if t.hdr.state.CompareAndSwap(uint32(old), uint32(next)) {
					break
				}
			}
			var zero R
			out, ready = zero, false
			_ = fmt.Sprintf("recovered panicking future: %v", r)
		}
	}()
	return t.future.Poll(w)
}

func (t *Task[R]) clearScheduledBit() {
	h := &t.hdr
	for {
		old := h.load()
		next := old &^ Scheduled
		if h.state.CompareAndSwap(uint32(old), uint32(next)) {
			return
		}
	}
}

func (t *Task[R]) releaseRef() {
	h := &t.hdr
	refs := h.references.Add(-1)
	if refs < 0 {
		panic("task: reference count went negative")
	}
	if refs == 0 && !h.hasHandle() {
		h.tryDestroy()
	}
}
