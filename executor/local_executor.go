// File: executor/local_executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package executor

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/brianshih1/mini-async-runtime/affinity"
	"github.com/brianshih1/mini-async-runtime/api"
	"github.com/brianshih1/mini-async-runtime/internal/queue"
	"github.com/brianshih1/mini-async-runtime/internal/task"
	"github.com/brianshih1/mini-async-runtime/reactor"
)

// executorSeq hands out process-wide unique LocalExecutor identities.
// Unlike the placement CPU (which is 0 for every Unbound executor and
// therefore useless as an identity), this is guaranteed distinct across
// every LocalExecutor ever constructed, live or since torn down.
var executorSeq atomic.Uint64

// LocalExecutor owns exactly one QueueManager and one Reactor and drives
// both from a single OS thread. It is not safe to share across
// goroutines: the QueueManager has no locking, so Spawn/SpawnInto and the
// schedule closures they install must run on the thread driving this
// executor's Run loop, or before Run has started.
type LocalExecutor struct {
	id    uint64
	name  string
	qm    *queue.QueueManager
	rx    *reactor.Reactor
	defQ  queue.QueueID
	cpu   int
	bound bool

	mu     sync.Mutex
	closed bool
}

func newLocalExecutor(rx *reactor.Reactor, cpu int, bound bool, name string) *LocalExecutor {
	qm := queue.NewQueueManager()
	defQ := qm.CreateTaskQueue(name)
	id := executorSeq.Add(1)
	return &LocalExecutor{id: id, name: name, qm: qm, rx: rx, defQ: defQ, cpu: cpu, bound: bound}
}

// ID returns this executor's process-wide unique identity, assigned once
// at construction. Tasks spawned onto this executor carry it so
// Spawn/SpawnInto can refuse to enqueue work meant for a different
// executor's queues onto this one, and vice versa.
func (ex *LocalExecutor) ID() uint64 {
	return ex.id
}

// Name returns the diagnostic name of this executor's default task
// queue, set via WithName (or "default" if none was given).
func (ex *LocalExecutor) Name() string {
	return ex.name
}

// BoundCPU reports the logical CPU this executor's thread is pinned to,
// and whether a Fixed placement was used to pin it at all.
func (ex *LocalExecutor) BoundCPU() (int, bool) {
	return ex.cpu, ex.bound
}

// CreateTaskQueue registers a new named lane tasks can be targeted at via
// SpawnInto, for priority separation between unrelated workloads sharing
// this executor.
func (ex *LocalExecutor) CreateTaskQueue(name string) queue.QueueID {
	return ex.qm.CreateTaskQueue(name)
}

// Reactor exposes the executor's reactor to collaborators (asyncio) that
// need to register Sources or schedule timers.
func (ex *LocalExecutor) Reactor() *reactor.Reactor {
	return ex.rx
}

// Run implements api.Executor's service-lifecycle contract: it drives
// queues and the reactor indefinitely — servicing whatever has been
// spawned onto this executor via Spawn/SpawnInto — until Close is called,
// then returns nil. Use the package-level Run[R] instead when the caller
// wants to block on one specific future's result.
func (ex *LocalExecutor) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := bind(ex); err != nil {
		return err
	}
	defer unbind()
	if ex.bound {
		if err := affinity.SetAffinity(ex.cpu); err != nil {
			return fmt.Errorf("executor: pin to cpu %d: %w", ex.cpu, err)
		}
	}

	for {
		ex.mu.Lock()
		closed := ex.closed
		ex.mu.Unlock()
		if closed {
			return nil
		}
		ex.runQueuesToQuiescence()
		if err := ex.rx.Drive(true); err != nil {
			if err == api.ErrReactorClosed {
				return nil
			}
			return err
		}
	}
}

// Close stops a running Run loop (it observes closed on its next pass)
// and releases the reactor's kernel resources. Idempotent.
func (ex *LocalExecutor) Close() error {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return nil
	}
	ex.closed = true
	ex.mu.Unlock()
	return ex.rx.Close()
}

// Shutdown is an alias for Close, satisfying api.GracefulShutdown for
// callers that hold a LocalExecutor behind that interface rather than a
// concrete type.
func (ex *LocalExecutor) Shutdown() error {
	return ex.Close()
}

var (
	_ api.Executor         = (*LocalExecutor)(nil)
	_ api.GracefulShutdown = (*LocalExecutor)(nil)
)

// runQueuesToQuiescence drains every currently-active TaskQueue in FIFO
// rotation order, running each task it pops to one poll, until no queue
// has runnable work left.
func (ex *LocalExecutor) runQueuesToQuiescence() {
	for {
		q := ex.qm.PickNext()
		if q == nil {
			return
		}
		ex.qm.SetExecuting(q)
		for {
			r, ok := q.Pop()
			if !ok {
				break
			}
			r.Run()
		}
		ex.qm.SetExecuting(nil)
		ex.qm.Deactivate(q)
	}
}

// Run blocks the calling goroutine, which it locks to its OS thread for
// the duration, until future completes, and returns its value. It is the
// package's primary entry point: bind the thread-local slot, spawn
// future onto the default queue, then alternately run ready queues to
// quiescence and drive the reactor until the root JoinHandle resolves.
// The root JoinHandle is polled after every pass over the queues, so the
// reactor is never asked to block once the root has completed.
func Run[R any](ex *LocalExecutor, future task.Future[R]) (R, error) {
	var zero R
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := bind(ex); err != nil {
		return zero, err
	}
	defer unbind()
	if ex.bound {
		if err := affinity.SetAffinity(ex.cpu); err != nil {
			return zero, fmt.Errorf("executor: pin to cpu %d: %w", ex.cpu, err)
		}
	}

	jh, err := Spawn(ex, future)
	if err != nil {
		return zero, err
	}

	w := task.NoopWaker()
	defer w.Release()

	for {
		ex.runQueuesToQuiescence()
		out, ready := jh.Poll(w)
		if ready {
			if out == nil {
				return zero, nil
			}
			return *out, nil
		}
		if err := ex.rx.Drive(true); err != nil {
			if err == api.ErrReactorClosed {
				return zero, nil
			}
			return zero, err
		}
	}
}

// Spawn schedules future onto the currently executing queue if Spawn is
// called from within a running Task, or onto ex's default queue
// otherwise, and returns immediately with a JoinHandle. Go cannot express
// a generic method, so Spawn takes its executor explicitly rather than
// living on *LocalExecutor.
func Spawn[R any](ex *LocalExecutor, future task.Future[R]) (*task.JoinHandle[R], error) {
	if err := checkOwningThread(ex); err != nil {
		return nil, err
	}
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return nil, api.ErrExecutorClosed
	}
	ex.mu.Unlock()

	q := ex.qm.Executing()
	if q == nil {
		q = ex.qm.Lookup(ex.defQ)
	}
	scheduleFn := func(r task.Runnable) { ex.qm.Push(q, r) }
	_, jh := task.New[R](future, ex.id, scheduleFn)
	return jh, nil
}

// SpawnInto is Spawn targeted at a specific, previously-created
// TaskQueue, for workloads that need priority separation from the
// default lane.
func SpawnInto[R any](ex *LocalExecutor, future task.Future[R], qid queue.QueueID) (*task.JoinHandle[R], error) {
	if err := checkOwningThread(ex); err != nil {
		return nil, err
	}
	q := ex.qm.Lookup(qid)
	if q == nil {
		return nil, fmt.Errorf("executor: %w: queue %d", api.ErrQueueNotFound, qid)
	}
	ex.mu.Lock()
	closed := ex.closed
	ex.mu.Unlock()
	if closed {
		return nil, api.ErrExecutorClosed
	}
	scheduleFn := func(r task.Runnable) { ex.qm.Push(q, r) }
	_, jh := task.New[R](future, ex.id, scheduleFn)
	return jh, nil
}

// checkOwningThread is the integrity check on scheduling: QueueManager
// has no internal synchronization of its own, since every LocalExecutor
// is meant to be driven exclusively by the one OS thread inside its own
// Run/Run[R] loop. If some other executor is already bound to the
// calling thread, pushing work onto ex's queues from here would race
// ex's own Run loop on another thread instead of merely mis-scheduling
// it, so this is rejected rather than silently allowed through. Spawn
// called before any Run has started (Current returns nil) is the
// legitimate "seed initial work" case and passes unchecked.
func checkOwningThread(ex *LocalExecutor) error {
	if cur := Current(); cur != nil && cur.id != ex.id {
		return fmt.Errorf("executor: %w: spawn targets executor %d from a thread bound to executor %d",
			api.ErrInvalidArgument, ex.id, cur.id)
	}
	return nil
}

var (
	currentMu sync.Mutex
	current   = make(map[int]*LocalExecutor)
)

// bind occupies the thread-local slot for the calling OS thread, failing
// if one is already bound — the Go expression of "nested run on the same
// thread is forbidden."
func bind(ex *LocalExecutor) error {
	tid := threadID()
	currentMu.Lock()
	defer currentMu.Unlock()
	if _, exists := current[tid]; exists {
		return fmt.Errorf("executor: an executor is already running on this thread")
	}
	current[tid] = ex
	return nil
}

func unbind() {
	tid := threadID()
	currentMu.Lock()
	delete(current, tid)
	currentMu.Unlock()
}

// Current returns the LocalExecutor bound to the calling OS thread by an
// enclosing Run call, or nil if none is bound. asyncio uses this to reach
// the Reactor from code running inside a spawned Task without threading
// an executor pointer through every call.
func Current() *LocalExecutor {
	tid := threadID()
	currentMu.Lock()
	defer currentMu.Unlock()
	return current[tid]
}
