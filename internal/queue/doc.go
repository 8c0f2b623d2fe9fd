// Package queue buffers operations issued while no worker is attached.
//
// Operations drain in strict FIFO order exactly once per attachment, via
// continuations the correlation engine attaches to each Op — the caller
// that enqueued keeps waiting on the same completion it would have gotten
// from a direct transmit. Anything still queued at shutdown is rejected
// through its Fail continuation rather than left dangling.
//
// The queue is unbounded by default; a positive max depth makes Push
// return ErrFull at capacity.
package queue
