//go:build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub backend for platforms without an io_uring or epoll implementation
// in this runtime. The executor still runs — spawn/poll/join all work —
// but any component that needs Source readiness (asyncio's TCP adapter)
// fails fast with ErrUnsupportedPlatform instead of hanging forever.
// Timer-based Sleep still completes: with no blocking wait available, the
// run loop polls until the deadline passes.
package reactor

import (
	"time"

	"github.com/brianshih1/mini-async-runtime/api"
)

type stubBackend struct{}

func newBackend() (api.Reactor, error) {
	return stubBackend{}, nil
}

func (stubBackend) Register(fd uintptr, interest api.Interest, userData uintptr) error {
	return api.ErrUnsupportedPlatform
}

func (stubBackend) Deregister(fd uintptr) error {
	return nil
}

func (stubBackend) Wait(timeout time.Duration, events []api.Event) (int, error) {
	if timeout < 0 {
		return 0, api.ErrUnsupportedPlatform
	}
	return 0, nil
}

func (stubBackend) Close() error {
	return nil
}

func setNonblock(fd int) error {
	return api.ErrUnsupportedPlatform
}
