// Package pool
// Author: momentics <momentics@gmail.com>
//
// Generic object pooling built on sync.Pool, for callers that want to
// reuse the read/write buffers they hand to asyncio's Async[T] operations
// instead of allocating one []byte per call. asyncio itself takes
// caller-supplied buffers and does not use this package.
package pool
