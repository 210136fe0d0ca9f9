//go:build linux && minirt_uring

// File: reactor/uring_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Real io_uring backend used for readiness multiplexing only: every
// submission is an IORING_OP_POLL_ADD, and the mmap'd completion ring
// delivers the edge that fired. Actual reads/writes/accepts happen via
// plain syscalls in the asyncio adapter once a Source wakes, per the
// "try, register, wait" division of labor described in reactor/doc.go.
package reactor

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/brianshih1/mini-async-runtime/api"
)

const (
	sysIOURingSetup = 425
	sysIOURingEnter = 426

	ioringOpPollAdd    = 6
	ioringOpPollRemove = 7
	ioringOpTimeout    = 11

	ioringEnterGetevents = 1 << 0

	ioringOffSQRing = 0
	ioringOffCQRing = 0x8000000
	ioringOffSQEs   = 0x10000000

	// timeoutUserDataBit tags a CQE as belonging to the one-shot
	// IORING_OP_TIMEOUT submitted by Wait to bound a blocking enter()
	// call, distinguishing it from real poll completions. Source ids
	// handed in as userData start at 1 and are never tagged with this
	// bit, so the two spaces cannot collide.
	timeoutUserDataBit = uint64(1) << 63
)

type ioUringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFd         uint32
	resv         [3]uint32
	sqOff        sqRingOffsets
	cqOff        cqRingOffsets
}

type sqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	resv2       uint64
}

type cqRingOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	resv2       uint64
}

type uringSQE struct {
	opcode      uint8
	flags       uint8
	ioprio      uint16
	fd          int32
	off         uint64
	addr        uint64
	len         uint32
	opcodeFlags uint32
	userData    uint64
	bufIndex    uint16
	personality uint16
	spliceFdIn  int32
	pad2        [2]uint64
}

type uringCQE struct {
	userData uint64
	res      int32
	flags    uint32
}

type sqRing struct {
	head, tail  *uint32
	mask        uint32
	array       *uint32
	sqes        unsafe.Pointer
	ringPtr     uintptr
	ringSize    uintptr
	sqesPtr     uintptr
	sqesSize    uintptr
	submittedAt uint32 // local tail shadow, guarded by uringBackend.mu
}

type cqRing struct {
	head, tail *uint32
	mask       uint32
	cqes       unsafe.Pointer
	ringPtr    uintptr
	ringSize   uintptr
}

// uringBackend implements api.Reactor on top of a real mmap'd io_uring
// instance used exclusively for poll-readiness notifications.
type uringBackend struct {
	fd int
	sq sqRing
	cq cqRing

	mu     sync.Mutex
	closed bool
	// fd -> most recently submitted poll userData, so Register on an
	// already-watched fd can be treated as a rearm rather than a leak.
	active map[int]uint64

	// timeoutSeq/timeoutPins track in-flight IORING_OP_TIMEOUT SQEs
	// pushed by Wait. Each pins its backing unix.Timespec for as long as
	// the kernel's timer list holds a raw pointer to it — invisible to
	// the Go GC otherwise — until the matching CQE drains.
	timeoutSeq  uint64
	timeoutPins map[uint64]*runtime.Pinner
}

func newBackend() (api.Reactor, error) {
	b, err := newUringBackend(256)
	if err == nil {
		return b, nil
	}
	return newEpollBackend()
}

func newUringBackend(entries uint32) (*uringBackend, error) {
	var params ioUringParams
	fd, _, errno := unix.Syscall(sysIOURingSetup, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("reactor: io_uring_setup: %w", errno)
	}
	b := &uringBackend{fd: int(fd), active: make(map[int]uint64)}
	if err := b.mapRings(&params); err != nil {
		unix.Close(int(fd))
		return nil, err
	}
	return b, nil
}

func (b *uringBackend) mapRings(p *ioUringParams) error {
	sqRingSize := uintptr(p.sqOff.array + p.sqEntries*4)
	cqRingSize := uintptr(p.cqOff.cqes + p.cqEntries*uint32(unsafe.Sizeof(uringCQE{})))
	sqesSize := uintptr(p.sqEntries * uint32(unsafe.Sizeof(uringSQE{})))

	sqPtr, err := mmapRing(b.fd, sqRingSize, ioringOffSQRing)
	if err != nil {
		return fmt.Errorf("reactor: mmap sq ring: %w", err)
	}
	cqPtr, err := mmapRing(b.fd, cqRingSize, ioringOffCQRing)
	if err != nil {
		unix.Munmap(ptrSlice(sqPtr, sqRingSize))
		return fmt.Errorf("reactor: mmap cq ring: %w", err)
	}
	sqesPtr, err := mmapRing(b.fd, sqesSize, ioringOffSQEs)
	if err != nil {
		unix.Munmap(ptrSlice(sqPtr, sqRingSize))
		unix.Munmap(ptrSlice(cqPtr, cqRingSize))
		return fmt.Errorf("reactor: mmap sqes: %w", err)
	}

	b.sq = sqRing{
		head:     (*uint32)(unsafe.Pointer(sqPtr + uintptr(p.sqOff.head))),
		tail:     (*uint32)(unsafe.Pointer(sqPtr + uintptr(p.sqOff.tail))),
		mask:     *(*uint32)(unsafe.Pointer(sqPtr + uintptr(p.sqOff.ringMask))),
		array:    (*uint32)(unsafe.Pointer(sqPtr + uintptr(p.sqOff.array))),
		sqes:     unsafe.Pointer(sqesPtr),
		ringPtr:  sqPtr,
		ringSize: sqRingSize,
		sqesPtr:  sqesPtr,
		sqesSize: sqesSize,
	}
	b.cq = cqRing{
		head:     (*uint32)(unsafe.Pointer(cqPtr + uintptr(p.cqOff.head))),
		tail:     (*uint32)(unsafe.Pointer(cqPtr + uintptr(p.cqOff.tail))),
		mask:     *(*uint32)(unsafe.Pointer(cqPtr + uintptr(p.cqOff.ringMask))),
		cqes:     unsafe.Pointer(cqPtr + uintptr(p.cqOff.cqes)),
		ringPtr:  cqPtr,
		ringSize: cqRingSize,
	}
	return nil
}

func mmapRing(fd int, size uintptr, offset int64) (uintptr, error) {
	ptr, _, errno := unix.Syscall6(unix.SYS_MMAP, 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE,
		uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, errno
	}
	return ptr, nil
}

func ptrSlice(ptr uintptr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), int(size))
}

// Register submits a new IORING_OP_POLL_ADD SQE for fd with the given
// interest mask, tagged with userData so the completion can be matched
// back to its Source. A second Register call for an fd already being
// polled removes the stale poll request before issuing the new one,
// since io_uring does not let POLL_ADD update an existing request.
func (b *uringBackend) Register(fd uintptr, interest api.Interest, userData uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return api.ErrReactorClosed
	}
	if prev, ok := b.active[int(fd)]; ok {
		b.pushSQE(uringSQE{opcode: ioringOpPollRemove, fd: int32(fd), addr: prev})
	}
	mask := pollMask(interest)
	b.pushSQE(uringSQE{opcode: ioringOpPollAdd, fd: int32(fd), opcodeFlags: mask, userData: uint64(userData)})
	b.active[int(fd)] = uint64(userData)
	return b.enter(0, 0)
}

func pollMask(interest api.Interest) uint32 {
	var mask uint32 = unix.POLLERR | unix.POLLHUP
	if interest.Readable {
		mask |= unix.POLLIN | unix.POLLPRI
	}
	if interest.Writable {
		mask |= unix.POLLOUT
	}
	return mask
}

func (b *uringBackend) pushSQE(sqe uringSQE) {
	tail := *b.sq.tail
	idx := tail & b.sq.mask
	slot := (*uringSQE)(unsafe.Pointer(uintptr(b.sq.sqes) + uintptr(idx)*unsafe.Sizeof(uringSQE{})))
	*slot = sqe
	arraySlot := (*uint32)(unsafe.Pointer(uintptr(unsafe.Pointer(b.sq.array)) + uintptr(idx)*4))
	*arraySlot = idx
	*b.sq.tail = tail + 1
}

// Deregister cancels any in-flight poll for fd.
func (b *uringBackend) Deregister(fd uintptr) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, ok := b.active[int(fd)]
	if !ok {
		return nil
	}
	delete(b.active, int(fd))
	b.pushSQE(uringSQE{opcode: ioringOpPollRemove, fd: int32(fd), addr: prev})
	return b.enter(0, 0)
}

// enter calls io_uring_enter to submit every SQE pushed since the kernel
// last consumed the ring (the ring's own tail/head delta) and optionally
// wait for minComplete CQEs.
func (b *uringBackend) enter(minComplete uint32, flags uint32) error {
	toSubmit := *b.sq.tail - *b.sq.head
	_, _, errno := unix.Syscall6(sysIOURingEnter, uintptr(b.fd), uintptr(toSubmit),
		uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return fmt.Errorf("reactor: io_uring_enter: %w", errno)
	}
	return nil
}

// Wait drains whatever CQEs are already posted, blocking the kernel for
// up to timeout if none are available yet. A negative timeout blocks
// indefinitely for at least one completion; zero only peeks. A positive
// finite timeout arms a one-shot IORING_OP_TIMEOUT SQE so the blocking
// enter() call below still returns on schedule even if no poll
// completion ever arrives — mirroring the epoll backend's ms-based
// EpollWait deadline — since io_uring_enter itself takes no timeout
// argument on this runtime's minimum supported kernel ABI.
func (b *uringBackend) Wait(timeout time.Duration, events []api.Event) (int, error) {
	n := b.drain(events)
	if n > 0 || timeout == 0 {
		return n, nil
	}

	b.mu.Lock()
	if timeout > 0 {
		b.pushTimeoutSQE(timeout)
	}
	flags := uint32(ioringEnterGetevents)
	var min uint32 = 1
	err := b.enter(min, flags)
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return b.drain(events), nil
}

// pushTimeoutSQE must be called with b.mu held. The kernel keeps a raw
// pointer to ts alive in its timer list for as long as the timeout is
// outstanding, possibly past this call's return if some other
// completion satisfies enter()'s min_complete first — runtime.Pinner
// keeps ts reachable and unmoved until drain observes the matching CQE
// and unpins it.
func (b *uringBackend) pushTimeoutSQE(timeout time.Duration) {
	ts := &unix.Timespec{
		Sec:  int64(timeout / time.Second),
		Nsec: int64(timeout % time.Second),
	}
	pinner := &runtime.Pinner{}
	pinner.Pin(ts)

	b.timeoutSeq++
	seq := b.timeoutSeq
	if b.timeoutPins == nil {
		b.timeoutPins = make(map[uint64]*runtime.Pinner)
	}
	b.timeoutPins[seq] = pinner

	b.pushSQE(uringSQE{
		opcode:   ioringOpTimeout,
		addr:     uint64(uintptr(unsafe.Pointer(ts))),
		userData: timeoutUserDataBit | seq,
	})
}

func (b *uringBackend) drain(events []api.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for n < len(events) {
		head := *b.cq.head
		if head == *b.cq.tail {
			break
		}
		idx := head & b.cq.mask
		cqe := (*uringCQE)(unsafe.Pointer(uintptr(b.cq.cqes) + uintptr(idx)*unsafe.Sizeof(uringCQE{})))
		userData := cqe.userData
		res := cqe.res
		*b.cq.head = head + 1

		if userData&timeoutUserDataBit != 0 {
			seq := userData &^ timeoutUserDataBit
			if pinner, ok := b.timeoutPins[seq]; ok {
				pinner.Unpin()
				delete(b.timeoutPins, seq)
			}
			continue
		}

		mask := uint32(res)
		events[n] = api.Event{
			UserData: uintptr(userData),
			Readable: mask&(unix.POLLIN|unix.POLLERR|unix.POLLHUP|unix.POLLPRI) != 0,
			Writable: mask&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0,
		}
		n++
	}
	return n
}

func (b *uringBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, pinner := range b.timeoutPins {
		pinner.Unpin()
	}
	b.timeoutPins = nil
	b.mu.Unlock()

	unix.Munmap(ptrSlice(b.sq.ringPtr, b.sq.ringSize))
	unix.Munmap(ptrSlice(b.sq.sqesPtr, b.sq.sqesSize))
	unix.Munmap(ptrSlice(b.cq.ringPtr, b.cq.ringSize))
	return unix.Close(b.fd)
}

func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
