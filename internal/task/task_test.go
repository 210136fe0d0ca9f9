package task

import "testing"

// testQueue is a trivial FIFO standing in for a real TaskQueue, just
// enough to drive the scheduling side-effects under test.
type testQueue struct {
	items []Runnable
}

func (q *testQueue) push(r Runnable) {
	q.items = append(q.items, r)
}

func (q *testQueue) pop() Runnable {
	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r
}

type readyFuture[R any] struct {
	value R
}

func (f *readyFuture[R]) Poll(w *Waker) (R, bool) {
	return f.value, true
}

type pendingOnceFuture[R any] struct {
	polled bool
	value  R
	waker  *Waker
}

func (f *pendingOnceFuture[R]) Poll(w *Waker) (R, bool) {
	if !f.polled {
		f.polled = true
		f.waker = w.Clone()
		var zero R
		return zero, false
	}
	return f.value, true
}

type selfWakeFuture[R any] struct {
	fired bool
	value R
}

func (f *selfWakeFuture[R]) Poll(w *Waker) (R, bool) {
	if !f.fired {
		f.fired = true
		w.WakeByRef()
		var zero R
		return zero, false
	}
	return f.value, true
}

type panicFuture[R any] struct{}

func (f *panicFuture[R]) Poll(w *Waker) (R, bool) {
	panic("boom")
}

func TestTaskRunsReadyFutureToCompletion(t *testing.T) {
	q := &testQueue{}
	tk, jh := New[int](&readyFuture[int]{value: 42}, 0, q.push)
	if tk.Destroyed() {
		t.Fatal("task destroyed before it ran")
	}

	r := q.pop()
	if r == nil {
		t.Fatal("expected task to be scheduled on creation")
	}
	rescheduled := r.Run()
	if rescheduled {
		t.Fatal("a completed task should not reschedule itself")
	}

	out, ready := jh.Poll(newWaker(&testNoopRunnable{}))
	if !ready || out == nil || *out != 42 {
		t.Fatalf("expected ready output 42, got ready=%v out=%v", ready, out)
	}
}

func TestTaskSelfWakeDuringPollReschedules(t *testing.T) {
	q := &testQueue{}
	_, _ = New[int](&selfWakeFuture[int]{value: 7}, 0, q.push)

	r := q.pop()
	rescheduled := r.Run()
	if !rescheduled {
		t.Fatal("expected self-wake to cause reschedule")
	}

	r2 := q.pop()
	if r2 == nil {
		t.Fatal("expected the self-woken task to be back on the queue")
	}
	if r2.Run() {
		t.Fatal("second run should complete, not reschedule again")
	}
}

func TestTaskPendingThenExternalWakeCompletes(t *testing.T) {
	q := &testQueue{}
	f := &pendingOnceFuture[string]{value: "done"}
	_, jh := New[string](f, 0, q.push)

	r := q.pop()
	if r.Run() {
		t.Fatal("a task parked awaiting an external wake should not self-reschedule")
	}
	if len(q.items) != 0 {
		t.Fatal("task should not be on the queue while parked")
	}

	f.waker.Wake()
	if len(q.items) != 1 {
		t.Fatalf("expected wake to reschedule the task, queue has %d items", len(q.items))
	}

	r2 := q.pop()
	if r2.Run() {
		t.Fatal("final run should complete")
	}
	out, ready := jh.Poll(newWaker(&testNoopRunnable{}))
	if !ready || out == nil || *out != "done" {
		t.Fatalf("expected ready output 'done', got ready=%v out=%v", ready, out)
	}
}

func TestTaskPanicClosesInsteadOfCrashing(t *testing.T) {
	q := &testQueue{}
	tk, jh := New[int](&panicFuture[int]{}, 0, q.push)

	r := q.pop()
	if r.Run() {
		t.Fatal("a panicking poll should close the task, not reschedule it")
	}
	out, ready := jh.Poll(newWaker(&testNoopRunnable{}))
	if !ready || out != nil {
		t.Fatalf("expected a closed (nil) result, got ready=%v out=%v", ready, out)
	}
	jh.Release()
	if !tk.Destroyed() {
		t.Fatal("expected the task to be torn down once the handle is released too")
	}
}

func TestTaskDestroyedExactlyOnce(t *testing.T) {
	q := &testQueue{}
	tk, jh := New[int](&readyFuture[int]{value: 1}, 0, q.push)
	q.pop().Run()
	jh.Release()
	if !tk.Destroyed() {
		t.Fatal("expected task to be destroyed once refs and handle both drop")
	}
}

// testNoopRunnable lets tests build a throwaway Waker to poll a JoinHandle, or
// to stand in for "something awaiting a join", without needing a second
// real task. If pushFn is set, schedule() behaves like a real task queue
// push; otherwise scheduling is a no-op.
type testNoopRunnable struct {
	h      header
	pushFn func(Runnable)
}

func (n *testNoopRunnable) Run() bool       { return false }
func (n *testNoopRunnable) header() *header { return &n.h }
func (n *testNoopRunnable) schedule() {
	if n.pushFn != nil {
		n.pushFn(n)
	}
}
