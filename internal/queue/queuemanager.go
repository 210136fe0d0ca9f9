// File: internal/queue/queuemanager.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// QueueManager is the executor's per-tick scheduler: it knows every
// TaskQueue that exists, which of them currently have runnable tasks, and
// which one is executing right now. The active rotation is backed by
// eapache/queue's ring-buffer FIFO rather than a hand-rolled slice, so
// activation and selection are both O(1) amortized.
package queue

import (
	"github.com/eapache/queue"

	"github.com/brianshih1/mini-async-runtime/internal/task"
)

// QueueManager owns every TaskQueue belonging to one LocalExecutor.
type QueueManager struct {
	available map[QueueID]*TaskQueue
	active    *queue.Queue
	executing *TaskQueue
	nextID    uint64
}

// NewQueueManager builds an empty QueueManager.
func NewQueueManager() *QueueManager {
	return &QueueManager{
		available: make(map[QueueID]*TaskQueue),
		active:    queue.New(),
	}
}

// CreateTaskQueue registers a new, initially inactive TaskQueue and
// returns the handle callers use to target it from SpawnInto.
func (m *QueueManager) CreateTaskQueue(name string) QueueID {
	m.nextID++
	id := QueueID(m.nextID)
	m.available[id] = NewTaskQueue(id, name)
	return id
}

// Lookup returns the TaskQueue for id, or nil if it does not exist (the
// caller has already been torn down, or the id was never valid).
func (m *QueueManager) Lookup(id QueueID) *TaskQueue {
	return m.available[id]
}

// MaybeActivate inserts q into the active rotation if it is not already
// there. Safe to call unconditionally any time a task is pushed.
func (m *QueueManager) MaybeActivate(q *TaskQueue) {
	if q.Active {
		return
	}
	q.Active = true
	m.active.Add(q)
}

// PickNext pops the next queue due to run from the active rotation. It
// returns nil once every queue has gone quiet. Selection policy is FIFO:
// the queue that has been waiting longest for its turn runs first.
func (m *QueueManager) PickNext() *TaskQueue {
	if m.active.Length() == 0 {
		return nil
	}
	q := m.active.Remove().(*TaskQueue)
	return q
}

// Push enqueues r onto q and activates q in this manager's rotation if
// needed, combining TaskQueue.Push with QueueManager.MaybeActivate the way
// every real schedule callback in this runtime needs to.
func (m *QueueManager) Push(q *TaskQueue, r task.Runnable) {
	if q.Push(r) {
		m.MaybeActivate(q)
	}
}

// SetExecuting records which queue is currently being drained, so that a
// Spawn made from inside a running task places the new task on that same
// queue.
func (m *QueueManager) SetExecuting(q *TaskQueue) {
	m.executing = q
}

// Executing returns the queue currently being drained, or nil if the
// executor is between queues.
func (m *QueueManager) Executing() *TaskQueue {
	return m.executing
}

// Deactivate clears the active bit on q. Callers do this once q has been
// drained to empty inside the executor's runQueuesToQuiescence.
func (m *QueueManager) Deactivate(q *TaskQueue) {
	q.Active = false
}

// AllQueues returns every TaskQueue this manager knows about, active or
// not, primarily for diagnostics and tests.
func (m *QueueManager) AllQueues() []*TaskQueue {
	out := make([]*TaskQueue, 0, len(m.available))
	for _, q := range m.available {
		out = append(out, q)
	}
	return out
}
