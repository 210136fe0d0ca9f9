// File: reactor/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package reactor multiplexes I/O readiness for a LocalExecutor: a Source
// is a registered file descriptor with a list of wakers awaiting
// readiness, and a Reactor wraps one readiness backend (epoll on Linux,
// io_uring when built with the minirt_uring tag) plus a staging queue of not-yet-submitted
// interest and the id→Source map the kernel's completions are matched
// against. The ring carries readiness notifications only — actual reads,
// writes, and accepts are performed by the asyncio adapter once a Source
// wakes, exactly the "try, register, wait" division of labor the
// executor's Task/Waker machinery expects from any suspension point.
package reactor
