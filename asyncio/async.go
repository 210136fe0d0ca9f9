// File: asyncio/async.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package asyncio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/brianshih1/mini-async-runtime/executor"
	"github.com/brianshih1/mini-async-runtime/internal/task"
	"github.com/brianshih1/mini-async-runtime/reactor"
)

// FdHolder is the minimal capability Async[T] requires of the wrapped
// I/O object: a raw, poll-able file descriptor.
type FdHolder interface {
	Fd() int
}

// Async wraps an FdHolder with a registered Source, giving it the
// ReadWith/WriteWith retry-and-wait primitives every suspending I/O
// operation in this runtime is built from.
type Async[T FdHolder] struct {
	io     T
	source *reactor.Source
}

// NewAsync registers io's file descriptor with the Reactor of the
// executor currently bound to the calling OS thread (executor.Current),
// setting it non-blocking.
func NewAsync[T FdHolder](io T) (*Async[T], error) {
	ex := executor.Current()
	if ex == nil {
		return nil, fmt.Errorf("asyncio: NewAsync called with no executor bound to this thread")
	}
	src, err := ex.Reactor().Register(io.Fd(), reactor.SourcePoll)
	if err != nil {
		return nil, err
	}
	return &Async[T]{io: io, source: src}, nil
}

// Close deregisters the Source. It does not close the underlying fd;
// callers that own io are responsible for that. Calling Close more than
// once on the same Async returns api.ErrSourceNotFound on the second and
// subsequent calls. When no executor is bound to the calling thread,
// Close does nothing and returns nil.
func (a *Async[T]) Close() error {
	ex := executor.Current()
	if ex == nil {
		return nil
	}
	return ex.Reactor().Deregister(a.source)
}

// Inner returns the wrapped I/O object.
func (a *Async[T]) Inner() T {
	return a.io
}

// retryLoop implements the "try, register, wait" adapter pattern from
// the reactor's collaborator contract: attempt the non-blocking
// operation, and only suspend on the readiness future when the attempt
// signals EAGAIN/EWOULDBLOCK. It is a plain helper, not itself a
// task.Future — step's (int, error, bool) result tells ioFuture whether
// the attempt settled this call.
type retryLoop struct {
	attempt func() (int, error)
	ready   func() task.Future[reactor.IOResult]
	waiting task.Future[reactor.IOResult]
}

// step advances the retry loop by one poll, returning settled=false
// while it remains suspended on a readiness edge.
func (f *retryLoop) step(w *task.Waker) (n int, err error, settled bool) {
	if f.waiting != nil {
		if _, ready := f.waiting.Poll(w); !ready {
			return 0, nil, false
		}
		f.waiting = nil
	}
	n, err = f.attempt()
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		f.waiting = f.ready()
		f.waiting.Poll(w)
		return 0, nil, false
	}
	return n, err, true
}

// ioFuture is the task.Future[IOOutcome] wrapper around a retryLoop,
// caching the outcome once the loop settles so repeated polls after
// completion stay cheap and idempotent.
type ioFuture struct {
	inner *retryLoop
	done  bool
	n     int
	err   error
}

// IOOutcome is the result of a completed Read/Write attempt.
type IOOutcome struct {
	N   int
	Err error
}

func (f *ioFuture) Poll(w *task.Waker) (IOOutcome, bool) {
	if f.done {
		return IOOutcome{N: f.n, Err: f.err}, true
	}
	n, err, settled := f.inner.step(w)
	if !settled {
		return IOOutcome{}, false
	}
	f.done = true
	f.n, f.err = n, err
	return IOOutcome{N: n, Err: err}, true
}

// ReadWith returns a Future that performs a non-blocking read into buf,
// suspending on read-readiness exactly once per EAGAIN.
func (a *Async[T]) ReadWith(buf []byte) task.Future[IOOutcome] {
	fd := a.io.Fd()
	inner := &retryLoop{
		attempt: func() (int, error) { return unix.Read(fd, buf) },
		ready:   func() task.Future[reactor.IOResult] { return a.source.Readable() },
	}
	return &ioFuture{inner: inner}
}

// WriteWith returns a Future that performs a non-blocking write of buf,
// suspending on write-readiness exactly once per EAGAIN.
func (a *Async[T]) WriteWith(buf []byte) task.Future[IOOutcome] {
	fd := a.io.Fd()
	inner := &retryLoop{
		attempt: func() (int, error) { return unix.Write(fd, buf) },
		ready:   func() task.Future[reactor.IOResult] { return a.source.Writable() },
	}
	return &ioFuture{inner: inner}
}
