// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor is the executor's single point of contact with the kernel's
// readiness machinery. It owns the backend (io_uring, epoll, or the
// unsupported-platform stub — each implementing api.Reactor) and the
// id→Source map the backend's opaque userData values are matched against.
package reactor

import (
	"fmt"
	"sync"
	"time"

	"github.com/brianshih1/mini-async-runtime/api"
	"github.com/brianshih1/mini-async-runtime/internal/task"
)

// SourceType tags what operation family a Source serves; purely
// informational today, but it is where a future cancellation-aware
// backend would dispatch.
type SourceType int

const (
	SourcePoll SourceType = iota
	SourceTimer
)

// Source is a reactor-side record bound to one file descriptor: the
// wakers currently awaiting readiness, and the most recent completion
// result once one arrives.
type Source struct {
	id         uintptr
	fd         int
	sourceType SourceType
	reactor    *Reactor

	mu        sync.Mutex
	waiters   []*task.Waker
	hasResult bool
	readable  bool
	writable  bool
}

// Fd returns the file descriptor this Source watches.
func (s *Source) Fd() int {
	return s.fd
}

// Readable returns a Future that completes once the fd is ready to read
// (or errored/hung up), following the "try, register, wait" adapter
// pattern: the caller attempts its non-blocking syscall first and only
// awaits this when it gets EAGAIN/EWOULDBLOCK.
func (s *Source) Readable() task.Future[IOResult] {
	return &readinessFuture{s: s, write: false}
}

// Writable is the write-direction counterpart to Readable.
func (s *Source) Writable() task.Future[IOResult] {
	return &readinessFuture{s: s, write: true}
}

// IOResult is the translated outcome of a readiness completion.
type IOResult struct {
	Readable bool
	Writable bool
}

type readinessFuture struct {
	s     *Source
	write bool
}

// Poll implements the exact algorithm from the readiness primitive: take
// and return a stored result if one is already present, otherwise queue
// this poll's waker and stage the corresponding interest with the Reactor.
func (f *readinessFuture) Poll(w *task.Waker) (IOResult, bool) {
	s := f.s
	s.mu.Lock()
	if s.hasResult {
		res := IOResult{Readable: s.readable, Writable: s.writable}
		s.hasResult = false
		s.mu.Unlock()
		return res, true
	}
	s.waiters = append(s.waiters, w.Clone())
	s.mu.Unlock()

	s.reactor.stageInterest(s, !f.write, f.write)
	return IOResult{}, false
}

// Reactor owns one executor's readiness-multiplexing backend.
type Reactor struct {
	mu          sync.Mutex
	backend     api.Reactor
	sources     map[uintptr]*Source
	nextID      uintptr
	submissions []api.Interest
	submitFds   []int
	pendingIDs  []uintptr
	timer       *Timer
	closed      bool
}

// New constructs a Reactor. On Linux the backend is epoll, or io_uring
// when built with the minirt_uring tag (falling back to epoll if io_uring
// setup fails); other platforms get the unsupported stub. See newBackend
// in the platform-specific files.
func New() (*Reactor, error) {
	b, err := newBackend()
	if err != nil {
		return nil, err
	}
	return newWithBackend(b), nil
}

func newWithBackend(b api.Reactor) *Reactor {
	return &Reactor{
		backend: b,
		sources: make(map[uintptr]*Source),
		timer:   newTimer(),
	}
}

// Register creates a Source for fd, setting it non-blocking and assigning
// the next monotonic id.
func (r *Reactor) Register(fd int, st SourceType) (*Source, error) {
	if fd < 0 {
		return nil, fmt.Errorf("reactor: register fd %d: %w", fd, api.ErrInvalidArgument)
	}
	if err := setNonblock(fd); err != nil {
		return nil, fmt.Errorf("reactor: set nonblock: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, api.ErrReactorClosed
	}
	r.nextID++
	id := r.nextID
	s := &Source{id: id, fd: fd, sourceType: st, reactor: r}
	r.sources[id] = s
	return s, nil
}

// Deregister removes a Source from the id map and releases its waiters;
// future completions bearing its id become no-ops rather than panicking
// or waking a stale future. Returns api.ErrSourceNotFound if s was
// already deregistered (or never registered with this Reactor), so
// callers like Async.Close can detect a double-close.
func (r *Reactor) Deregister(s *Source) error {
	r.mu.Lock()
	if _, ok := r.sources[s.id]; !ok {
		r.mu.Unlock()
		return api.ErrSourceNotFound
	}
	delete(r.sources, s.id)
	_ = r.backend.Deregister(uintptr(s.fd))
	r.mu.Unlock()

	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()
	for _, w := range waiters {
		w.Release()
	}
	return nil
}

func (r *Reactor) stageInterest(s *Source, read, write bool) {
	r.mu.Lock()
	r.submissions = append(r.submissions, api.Interest{Readable: read, Writable: write})
	r.submitFds = append(r.submitFds, s.fd)
	r.pendingIDs = append(r.pendingIDs, s.id)
	r.mu.Unlock()
}

// Timer returns this reactor's deadline scheduler, satisfying
// api.Scheduler for asyncio.Sleep.
func (r *Reactor) Timer() *Timer {
	return r.timer
}

// Drive performs one pass of the reactor's drive loop: drain whatever
// completions are immediately available and wake their Sources' waiters,
// submit any staged interest to the kernel, fire due timers, and — only
// when block is true and at least one Source is registered or a timer is
// pending — sleep in the kernel until a completion arrives or the nearest
// timer deadline elapses, whichever is sooner.
func (r *Reactor) Drive(block bool) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return api.ErrReactorClosed
	}
	interests := r.submissions
	fds := r.submitFds
	ids := r.pendingIDs
	r.submissions, r.submitFds, r.pendingIDs = nil, nil, nil
	outstanding := len(r.sources) > 0
	r.mu.Unlock()

	buf := make([]api.Event, 64)
	n, err := r.backend.Wait(0, buf)
	if err != nil {
		return fmt.Errorf("reactor: drain completions: %w", err)
	}
	r.completeMany(buf[:n])

	r.submitAll(fds, interests, ids)

	fired := r.timer.Fire(time.Now())
	for _, fn := range fired {
		fn()
	}

	_, timerPending := r.timer.NextDeadline()
	if !block || (!outstanding && !timerPending) {
		return nil
	}

	timeout := r.blockingBudget()
	n, err = r.backend.Wait(timeout, buf)
	if err != nil {
		return fmt.Errorf("reactor: blocking wait: %w", err)
	}
	r.completeMany(buf[:n])
	fired = r.timer.Fire(time.Now())
	for _, fn := range fired {
		fn()
	}
	return nil
}

func (r *Reactor) submitAll(fds []int, interests []api.Interest, ids []uintptr) {
	for i, fd := range fds {
		if err := r.backend.Register(uintptr(fd), interests[i], ids[i]); err != nil {
			r.mu.Lock()
			r.submissions = append(r.submissions, interests[i])
			r.submitFds = append(r.submitFds, fd)
			r.pendingIDs = append(r.pendingIDs, ids[i])
			r.mu.Unlock()
		}
	}
}

// blockingBudget caps an indefinite blocking wait at the nearest pending
// timer deadline, so Sleep(d) always wakes on time even if no I/O
// completion ever arrives in the meantime.
func (r *Reactor) blockingBudget() time.Duration {
	d, ok := r.timer.NextDeadline()
	if !ok {
		return -1
	}
	budget := time.Until(d)
	if budget < 0 {
		budget = 0
	}
	return budget
}

func (r *Reactor) completeMany(events []api.Event) {
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	var batches [][]*task.Waker
	for _, ev := range events {
		s, ok := r.sources[ev.UserData]
		if !ok {
			continue // cancelled source; silently drop the stale completion
		}
		s.mu.Lock()
		s.hasResult = true
		s.readable = ev.Readable
		s.writable = ev.Writable
		waiters := s.waiters
		s.waiters = nil
		s.mu.Unlock()
		batches = append(batches, waiters)
	}
	r.mu.Unlock()

	for _, waiters := range batches {
		for _, waker := range waiters {
			waker.Wake()
		}
	}
}

// Close releases the backend's kernel resources. Safe to call more than
// once.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()
	return r.backend.Close()
}

// Shutdown is an alias for Close, satisfying api.GracefulShutdown.
func (r *Reactor) Shutdown() error {
	return r.Close()
}

var _ api.GracefulShutdown = (*Reactor)(nil)
