// File: internal/task/noop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package task

// noopRunnable backs NoopWaker: a Runnable with its own private header
// and a schedule that does nothing, since nothing ever drains it from a
// queue.
type noopRunnable struct {
	hdr header
}

func (n *noopRunnable) Run() bool        { return false }
func (n *noopRunnable) header() *header  { return &n.hdr }
func (n *noopRunnable) schedule()        {}

// NoopWaker returns a Waker usable by a caller that polls its JoinHandle
// in a loop and never needs an asynchronous nudge — the executor's own
// run loop is the only user: it re-polls the root JoinHandle after every
// pass over the ready queues and the reactor, so it never waits to be
// woken, it only needs somewhere harmless to register as an awaiter.
func NoopWaker() *Waker {
	return newWaker(&noopRunnable{})
}
