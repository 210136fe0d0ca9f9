// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT
//
// BytePool is a concrete instantiation of SyncPool: a pool of fixed-size
// byte slices a caller can borrow as buffers for asyncio's
// ReadWith/WriteWith.
package pool

// NewBytePool returns a SyncPool of []byte slices of the given size.
// Callers that Read into a borrowed slice and then re-slice it (e.g.
// buf[:n]) must reslice back to the original length before calling Put,
// or re-grow it to size — SyncPool does not validate shape on return.
func NewBytePool(size int) *SyncPool[[]byte] {
	return NewSyncPool(func() []byte {
		return make([]byte, size)
	})
}
