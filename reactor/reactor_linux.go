//go:build linux && !minirt_uring

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// epoll(7)-based api.Reactor backend, selected when the build excludes
// io_uring (build tag minirt_uring) or when uring setup fails at runtime.

package reactor

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/brianshih1/mini-async-runtime/api"
)

type epollBackend struct {
	epfd int

	mu  sync.Mutex
	fds map[int]bool
}

func newBackend() (api.Reactor, error) {
	return newEpollBackend()
}

func newEpollBackend() (*epollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollBackend{epfd: epfd, fds: make(map[int]bool)}, nil
}

// Register adds fd to the epoll set (or updates its interest mask if
// already present), tagging the event with userData by overwriting the
// EpollEvent's Fd and Pad fields together as one unaligned 8-byte
// uintptr. unix.EpollEvent lays out as {Events uint32; Fd int32; Pad
// int32}, which is exactly the kernel's 8-byte epoll_data union
// positioned right after Events — the kernel never inspects that union's
// contents, only the fd argument passed to EpollCtl directly, so the
// whole union is free to carry userData instead of an echoed fd. This is
// the same trick the Go runtime's own netpoller uses on its internal
// EpollEvent.Data field (runtime/netpoll_epoll.go). Writing the uintptr
// at Pad's offset instead of Fd's would run 4 bytes past the struct.
func (b *epollBackend) Register(fd uintptr, interest api.Interest, userData uintptr) error {
	var mask uint32 = unix.EPOLLERR | unix.EPOLLHUP
	if interest.Readable {
		mask |= unix.EPOLLIN
	}
	if interest.Writable {
		mask |= unix.EPOLLOUT
	}
	event := &unix.EpollEvent{Events: mask}
	*(*uintptr)(unsafe.Pointer(&event.Fd)) = userData

	b.mu.Lock()
	defer b.mu.Unlock()
	op := unix.EPOLL_CTL_ADD
	if b.fds[int(fd)] {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(b.epfd, op, int(fd), event); err != nil {
		return err
	}
	b.fds[int(fd)] = true
	return nil
}

func (b *epollBackend) Deregister(fd uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.fds[int(fd)] {
		return nil
	}
	delete(b.fds, int(fd))
	err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

// Wait blocks for up to timeout for at least one readiness event. A
// negative timeout blocks indefinitely; zero polls without blocking.
func (b *epollBackend) Wait(timeout time.Duration, events []api.Event) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(b.epfd, raw, ms)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		events[i] = api.Event{
			UserData: *(*uintptr)(unsafe.Pointer(&raw[i].Fd)),
			Readable: raw[i].Events&(unix.EPOLLIN|unix.EPOLLERR|unix.EPOLLHUP) != 0,
			Writable: raw[i].Events&(unix.EPOLLOUT|unix.EPOLLERR|unix.EPOLLHUP) != 0,
		}
	}
	return n, nil
}

func (b *epollBackend) Close() error {
	return unix.Close(b.epfd)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
