// File: internal/ring/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer is a growable circular FIFO sized to a power of two, adapted
// from the single-owner RingBuffer used elsewhere in the runtime's ancestry
// for lock-free rings. A TaskQueue is always popped and pushed from the
// executor's own goroutine, so no atomics are needed here; the growable
// variant used by Buffer.PushGrow is what makes it safe to use as the
// backing store for an unbounded FIFO of Tasks.
package ring

// Buffer is a growable circular FIFO of power-of-two capacity.
type Buffer[T any] struct {
	data []T
	mask uint64
	head uint64
	tail uint64
}

// New allocates a Buffer with at least the requested capacity, rounded up to
// a power of two.
func New[T any](capacity int) *Buffer[T] {
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	if size == 0 {
		size = 1
	}
	return &Buffer[T]{
		data: make([]T, size),
		mask: size - 1,
	}
}

// Len returns the number of items currently queued.
func (b *Buffer[T]) Len() int {
	return int(b.tail - b.head)
}

// Cap returns the current backing capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Empty reports whether the buffer holds no items.
func (b *Buffer[T]) Empty() bool {
	return b.head == b.tail
}

// PushGrow appends item, doubling the backing array first if full.
func (b *Buffer[T]) PushGrow(item T) {
	if b.tail-b.head >= uint64(len(b.data)) {
		b.grow()
	}
	b.data[b.tail&b.mask] = item
	b.tail++
}

// Pop removes and returns the oldest item; ok is false if empty.
func (b *Buffer[T]) Pop() (item T, ok bool) {
	if b.head == b.tail {
		return item, false
	}
	item = b.data[b.head&b.mask]
	var zero T
	b.data[b.head&b.mask] = zero
	b.head++
	return item, true
}

func (b *Buffer[T]) grow() {
	newData := make([]T, len(b.data)*2)
	n := b.Len()
	for i := 0; i < n; i++ {
		newData[i] = b.data[(b.head+uint64(i))&b.mask]
	}
	b.data = newData
	b.mask = uint64(len(newData)) - 1
	b.head = 0
	b.tail = uint64(n)
}
