package task

import "testing"

func TestJoinHandlePendingUntilTaskCompletes(t *testing.T) {
	q := &testQueue{}
	f := &pendingOnceFuture[int]{value: 99}
	_, jh := New[int](f, 0, q.push)

	q.pop().Run()

	awaiterQ := &testQueue{}
	_, awaiterWaker := newAwaiterPair(awaiterQ)
	out, ready := jh.Poll(awaiterWaker)
	if ready || out != nil {
		t.Fatalf("expected join to stay pending while task is parked, got ready=%v out=%v", ready, out)
	}
	if len(awaiterQ.items) != 0 {
		t.Fatal("registering as awaiter must not itself schedule anything")
	}

	f.waker.Wake()
	q.pop().Run()

	if len(awaiterQ.items) != 1 {
		t.Fatalf("expected task completion to wake the join awaiter, got %d items", len(awaiterQ.items))
	}

	out2, ready2 := jh.Poll(awaiterWaker)
	if !ready2 || out2 == nil || *out2 != 99 {
		t.Fatalf("expected completed join with value 99, got ready=%v out=%v", ready2, out2)
	}
}

func TestJoinHandleCancelBeforeCompletionDropsFuture(t *testing.T) {
	q := &testQueue{}
	f := &pendingOnceFuture[int]{value: 1}
	tk, jh := New[int](f, 0, q.push)

	q.pop().Run()
	jh.Cancel()

	if tk.future != nil {
		t.Fatal("cancelling an idle (non-running) task should drop its future immediately")
	}

	out, ready := jh.Poll(newWaker(&testNoopRunnable{}))
	if !ready || out != nil {
		t.Fatalf("expected a closed join after cancel, got ready=%v out=%v", ready, out)
	}
}

func TestJoinHandleReleaseBeforeCompletionForcesTeardown(t *testing.T) {
	q := &testQueue{}
	f := &pendingOnceFuture[int]{value: 1}
	tk, jh := New[int](f, 0, q.push)

	q.pop().Run() // parks, awaiting f.waker

	jh.Release()
	if tk.Destroyed() {
		t.Fatal("task still has an outstanding waker reference, should not be destroyed yet")
	}
	if len(q.items) != 0 {
		t.Fatal("releasing the handle while another reference is outstanding must not itself schedule")
	}

	// f.waker is now the only remaining reference. Dropping it is what
	// forces the task to be scheduled one last time so its future gets
	// torn down.
	f.waker.Release()
	if len(q.items) != 1 {
		t.Fatalf("expected the last reference drop to force-schedule the task, got %d items", len(q.items))
	}
	q.pop().Run()
	if !tk.Destroyed() {
		t.Fatal("expected task to be destroyed once the forced teardown run completes")
	}
}

// newAwaiterPair builds a throwaway Runnable/Waker pair usable as the
// "something awaiting a join" side of a test, so that notifyAwaiter has
// somewhere real to deliver its wake.
func newAwaiterPair(q *testQueue) (Runnable, *Waker) {
	r := &testNoopRunnable{pushFn: q.push}
	w := newWaker(r)
	return r, w
}
