// File: api/executor.go
// Author: momentics <momentics@gmail.com>
//
// Executor is the minimal contract a LocalExecutor satisfies: the
// generic Spawn/SpawnInto entry points live as package-level functions in
// the executor package itself (Go methods cannot carry their own type
// parameters), so this interface only needs to describe the non-generic
// lifecycle surface.
package api

// Executor abstracts the run loop of a single-threaded, cooperative
// executor: drive every task queue to quiescence, and allow a caller on
// another goroutine to ask it to stop.
type Executor interface {
	// Run blocks the calling goroutine, draining task queues until the
	// executor is closed. Returns an error if an executor is already
	// running on the calling OS thread (nested Run).
	Run() error

	// Close requests that Run return once the current pass over the task
	// queues finishes. Safe to call from any goroutine.
	Close() error
}
