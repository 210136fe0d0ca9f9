//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux implementation of CPU affinity, pinning the calling OS thread to
// exactly one logical CPU via sched_setaffinity(2).

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setAffinityPlatform pins the calling OS thread to cpuID using
// golang.org/x/sys/unix instead of a cgo call into pthread_setaffinity_np:
// sched_setaffinity with tid 0 already means "the calling thread" at the
// syscall level, so no cgo or libc thread handle is needed.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity(cpu=%d): %w", cpuID, err)
	}
	return nil
}
