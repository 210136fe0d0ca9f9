// File: executor/local_executor_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package executor

import (
	"errors"
	"testing"

	"github.com/brianshih1/mini-async-runtime/api"
	"github.com/brianshih1/mini-async-runtime/internal/task"
)

// readyFuture completes with a fixed value on its very first poll.
type readyFuture[R any] struct{ value R }

func (f readyFuture[R]) Poll(w *task.Waker) (R, bool) { return f.value, true }

func TestRunArithmeticCompletesImmediately(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	out, err := Run[int](ex, readyFuture[int]{value: 2 + 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 5 {
		t.Fatalf("expected 5, got %d", out)
	}
}

// countingFuture becomes ready only after it has been polled n times,
// incrementing a shared counter on every poll, letting tests observe
// interleaving between two such tasks scheduled on the same queue.
type countingFuture struct {
	n       int
	polls   int
	counter *int
}

func (f *countingFuture) Poll(w *task.Waker) (int, bool) {
	f.polls++
	*f.counter++
	if f.polls >= f.n {
		return *f.counter, true
	}
	w.WakeByRef()
	return 0, false
}

func TestRunCooperativeTwoTasksBothComplete(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	shared := 0
	a := &countingFuture{n: 3, counter: &shared}
	b := &countingFuture{n: 5, counter: &shared}

	jhA, err := Spawn[int](ex, a)
	if err != nil {
		t.Fatalf("Spawn a: %v", err)
	}
	jhB, err := Spawn[int](ex, b)
	if err != nil {
		t.Fatalf("Spawn b: %v", err)
	}

	root := &joinBothFuture{a: jhA, b: jhB}
	resA, resB, err := runJoinBoth(ex, root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resA == nil || resB == nil {
		t.Fatalf("expected both tasks to complete, got a=%v b=%v", resA, resB)
	}
	if shared != 8 {
		t.Fatalf("expected 3+5=8 total polls across both tasks, got %d", shared)
	}
}

func TestRunSelfWakeEventuallyCompletes(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	shared := 0
	out, err := Run[int](ex, &countingFuture{n: 4, counter: &shared})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 4 || shared != 4 {
		t.Fatalf("expected a self-waking task to run 4 times, got out=%d shared=%d", out, shared)
	}
}

// joinBothFuture awaits two JoinHandles to completion, returning both
// results once ready — a minimal parent future exercising the
// join-before-complete scenario without needing async/await sugar.
type joinBothFuture struct {
	a, b     *task.JoinHandle[int]
	resA     *int
	resB     *int
}

func (f *joinBothFuture) Poll(w *task.Waker) (struct{}, bool) {
	if f.resA == nil {
		if out, ready := f.a.Poll(w); ready {
			f.resA = out
		}
	}
	if f.resB == nil {
		if out, ready := f.b.Poll(w); ready {
			f.resB = out
		}
	}
	return struct{}{}, f.resA != nil && f.resB != nil
}

func runJoinBoth(ex *LocalExecutor, f *joinBothFuture) (*int, *int, error) {
	_, err := Run[struct{}](ex, f)
	return f.resA, f.resB, err
}

// pendingOnceFuture completes on its second poll, letting a parent await
// its JoinHandle across at least one not-ready pass. It wakes itself
// before reporting not-ready, so the executor polls it a second time.
type pendingOnceFuture[R any] struct {
	value  R
	polled bool
}

func (f *pendingOnceFuture[R]) Poll(w *task.Waker) (R, bool) {
	if !f.polled {
		f.polled = true
		w.WakeByRef()
		return f.value, false
	}
	return f.value, true
}

// joinBeforeCompleteFuture spawns a child on its first poll and awaits
// the child's JoinHandle, completing with the child's value plus one.
type joinBeforeCompleteFuture struct {
	ex      *LocalExecutor
	started bool
	child   *task.JoinHandle[int]
}

func (f *joinBeforeCompleteFuture) Poll(w *task.Waker) (int, bool) {
	if !f.started {
		f.started = true
		jh, err := Spawn[int](f.ex, &pendingOnceFuture[int]{value: 41})
		if err != nil {
			panic(err)
		}
		f.child = jh
	}
	out, ready := f.child.Poll(w)
	if !ready {
		return 0, false
	}
	if out == nil {
		return 0, true
	}
	return *out + 1, true
}

func TestRunJoinBeforeCompleteAwaitsChild(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	out, err := Run[int](ex, &joinBeforeCompleteFuture{ex: ex})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 42 {
		t.Fatalf("expected 42, got %d", out)
	}
}

// neverReadyFuture never completes on its own; only Cancel ends it.
type neverReadyFuture struct{}

func (neverReadyFuture) Poll(w *task.Waker) (int, bool) { return 0, false }

func TestSpawnCancelBeforeCompletionResolvesNil(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	root := &cancelChildFuture{ex: ex}
	out, err := Run[bool](ex, root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out {
		t.Fatal("expected cancellation to resolve the JoinHandle with (nil, true)")
	}
}

type cancelChildFuture struct {
	ex      *LocalExecutor
	started bool
	child   *task.JoinHandle[int]
}

func (f *cancelChildFuture) Poll(w *task.Waker) (bool, bool) {
	if !f.started {
		f.started = true
		jh, err := Spawn[int](f.ex, neverReadyFuture{})
		if err != nil {
			panic(err)
		}
		f.child = jh
		f.child.Cancel()
	}
	out, ready := f.child.Poll(w)
	if !ready {
		return false, false
	}
	return out == nil, true
}

func TestBuildWithFixedPlacementReportsBoundCPU(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Apply(WithPlacement(Fixed{CPU: 0})).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()
	cpu, bound := ex.BoundCPU()
	if !bound || cpu != 0 {
		t.Fatalf("expected bound=true cpu=0, got bound=%v cpu=%d", bound, cpu)
	}
}

func TestSpawnOutsideExecutorStillSchedulesOnDefaultQueue(t *testing.T) {
	ex, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer ex.Close()

	jh, err := Spawn[int](ex, readyFuture[int]{value: 7})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	out, err := Run[int](ex, &awaitFuture{jh: jh})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != 7 {
		t.Fatalf("expected 7, got %d", out)
	}
}

type awaitFuture struct {
	jh *task.JoinHandle[int]
}

func (f *awaitFuture) Poll(w *task.Waker) (int, bool) {
	out, ready := f.jh.Poll(w)
	if !ready {
		return 0, false
	}
	if out == nil {
		return 0, true
	}
	return *out, true
}

// spawnForeignFuture attempts to Spawn onto a different LocalExecutor
// than the one currently driving it, capturing whatever error comes
// back so the test can assert on it.
type spawnForeignFuture struct {
	foreign *LocalExecutor
	err     error
	done    bool
}

func (f *spawnForeignFuture) Poll(w *task.Waker) (struct{}, bool) {
	_, f.err = Spawn[int](f.foreign, readyFuture[int]{value: 1})
	f.done = true
	return struct{}{}, true
}

func TestSpawnOntoForeignExecutorIsRejected(t *testing.T) {
	ex1, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build ex1: %v", err)
	}
	defer ex1.Close()
	ex2, err := NewLocalExecutorBuilder().Build()
	if err != nil {
		t.Fatalf("Build ex2: %v", err)
	}
	defer ex2.Close()

	root := &spawnForeignFuture{foreign: ex2}
	if _, err := Run[struct{}](ex1, root); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if root.err == nil {
		t.Fatal("expected Spawn onto a foreign executor to be rejected")
	}
	if !errors.Is(root.err, api.ErrInvalidArgument) {
		t.Fatalf("expected api.ErrInvalidArgument, got %v", root.err)
	}
}
