// File: executor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package executor is the thread-per-core run loop: a LocalExecutor owns
// exactly one QueueManager and one Reactor, runs on a single OS thread it
// locks itself to, and drives Tasks to completion by alternating between
// "run every ready queue to quiescence" and "drive the reactor." There is
// no cross-thread parallelism inside one LocalExecutor; the recommended
// deployment is one per CPU, each pinned via LocalExecutorBuilder's Fixed
// placement so no two executors ever share a runqueue.
package executor
