//go:build linux

// File: executor/tls_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package executor

import "golang.org/x/sys/unix"

// threadID identifies the calling OS thread, the key the process-wide
// "currently running executor" slot is indexed by. It is only meaningful
// after runtime.LockOSThread, which every LocalExecutor.Run/executor.Run
// call makes first.
func threadID() int {
	return unix.Gettid()
}
