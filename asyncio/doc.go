// File: asyncio/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package asyncio is the collaborator contract described by the external
// interfaces the reactor expects any suspension point to use: Async[T]
// wraps anything exposing a raw file descriptor, registers a Source with
// the currently-bound executor's Reactor, and implements the "try,
// register, wait" retry loop — attempt the non-blocking syscall first,
// and only suspend on EAGAIN/EWOULDBLOCK — for reads and writes. tcp.go
// and sleep.go build TCP listeners/connections and timer-based sleeps on
// top of that primitive.
package asyncio
