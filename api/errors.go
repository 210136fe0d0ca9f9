// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types shared across the runtime, reactor, and asyncio
// packages.

package api

import "fmt"

// Sentinel errors surfaced across the runtime. Executor misuse is reported
// as a returned error rather than a panic: a nested Run on the same
// thread returns a plain error, and a Spawn onto an executor other than
// the one bound to the calling thread returns an error wrapping
// ErrInvalidArgument.
var (
	ErrExecutorClosed      = fmt.Errorf("executor is closed")
	ErrReactorClosed       = fmt.Errorf("reactor is closed")
	ErrSourceNotFound      = fmt.Errorf("source not registered with reactor")
	ErrQueueNotFound       = fmt.Errorf("task queue not found")
	ErrUnsupportedPlatform = fmt.Errorf("operation not supported on this platform")
	ErrInvalidArgument     = fmt.Errorf("invalid argument")
)
