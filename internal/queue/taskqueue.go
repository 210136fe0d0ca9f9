// File: internal/queue/taskqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TaskQueue is the per-lane FIFO an executor round-robins across. Every
// Task belongs to exactly one TaskQueue for its whole life; the QueueID it
// was created with is how SpawnInto finds the right lane again.
package queue

import (
	"github.com/brianshih1/mini-async-runtime/internal/ring"
	"github.com/brianshih1/mini-async-runtime/internal/task"
)

// QueueID is an opaque handle identifying a TaskQueue, returned by
// QueueManager.CreateTaskQueue and accepted by anything that needs to
// spawn into a specific lane rather than the default one.
type QueueID uint64

// TaskQueue is a FIFO of runnable Tasks plus the active bit the
// QueueManager uses to decide whether this queue belongs in its rotation.
// The invariant it upholds is: Active is true if and only if this queue is
// currently sitting in the QueueManager's activeQueues rotation.
type TaskQueue struct {
	ID     QueueID
	Name   string
	Active bool

	tasks *ring.Buffer[task.Runnable]
}

// NewTaskQueue allocates an empty, inactive TaskQueue.
func NewTaskQueue(id QueueID, name string) *TaskQueue {
	return &TaskQueue{
		ID:    id,
		Name:  name,
		tasks: ring.New[task.Runnable](8),
	}
}

// Push appends a task to the back of the queue. It reports whether this
// push transitioned the queue from empty to non-empty, which is the
// caller's cue to call QueueManager.MaybeActivate.
func (q *TaskQueue) Push(r task.Runnable) (becameNonEmpty bool) {
	wasEmpty := q.tasks.Empty()
	q.tasks.PushGrow(r)
	return wasEmpty
}

// Pop removes and returns the task at the front of the queue.
func (q *TaskQueue) Pop() (task.Runnable, bool) {
	return q.tasks.Pop()
}

// Empty reports whether the queue currently holds no tasks.
func (q *TaskQueue) Empty() bool {
	return q.tasks.Empty()
}

// Len reports how many tasks are currently queued.
func (q *TaskQueue) Len() int {
	return q.tasks.Len()
}
