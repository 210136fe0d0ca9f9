// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for event-driven IO Reactors used to
// multiplex readiness across poll-mode backends (io_uring, epoll, or the
// unsupported-platform stub).

package api

import "time"

// Interest describes which readiness edges a caller wants notified about.
type Interest struct {
	Readable bool
	Writable bool
}

// Event encapsulates one readiness notification delivered by a Wait call.
// Backends identify the fd a completion concerns purely through
// UserData (the caller's own correlation id) rather than echoing the raw
// fd back, since the kernel's own epoll_data/io_uring user_data slots are
// both single opaque words too small to carry both reliably.
type Event struct {
	UserData uintptr // opaque value, typically a *Source's id
	Readable bool
	Writable bool
}

// Reactor defines the common interface every readiness-multiplexing
// backend (io_uring, epoll, the no-op stub) implements, so the executor's
// drive loop is written once against this contract.
type Reactor interface {
	// Register associates fd with this reactor under the given interest.
	// Every Event later reported for this registration carries userData,
	// the caller's own correlation id for its Source bookkeeping.
	Register(fd uintptr, interest Interest, userData uintptr) error

	// Deregister removes fd from this reactor. Safe to call even if fd
	// was never registered.
	Deregister(fd uintptr) error

	// Wait blocks for up to timeout for at least one readiness event,
	// filling events and returning how many were written. A timeout of
	// zero polls without blocking.
	Wait(timeout time.Duration, events []Event) (int, error)

	// Close releases the backend's kernel resources (the io_uring fd, the
	// epoll fd). What Register/Wait return after Close depends on the
	// backend; reactor.Reactor stops calling its backend once closed and
	// returns ErrReactorClosed itself.
	Close() error
}
