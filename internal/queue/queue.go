package queue

import (
	"errors"
	"sync"
	"time"
)

// ErrFull is returned by Push when a maximum depth is configured and the
// queue is at capacity.
var ErrFull = errors.New("queue: at maximum depth")

// Op is one operation held while no worker is attached.
//
// Transmit and Fail are continuations supplied by the correlation engine
// so the original caller's wait survives the queueing detour: exactly one
// of them is invoked, either when the queue drains after attachment or
// when the bridge shuts down with the operation still queued.
type Op struct {
	ID         string
	Kind       string
	EnqueuedAt time.Time

	Transmit func()
	Fail     func(err error)
}

// Status describes the queue for observability callers.
type Status struct {
	Length int      `json:"length"`
	Kinds  []string `json:"kinds,omitempty"`

	OldestEnqueuedAt time.Time `json:"oldest_enqueued_at,omitempty"`
}

// Queue is a FIFO buffer for operations issued while unattached.
// Unbounded when maxDepth is zero.
type Queue struct {
	mu       sync.Mutex
	ops      []Op
	maxDepth int
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Queue. maxDepth <= 0 means unbounded.
func New(maxDepth int) *Queue {
	return &Queue{maxDepth: maxDepth, now: time.Now}
}

// Push appends op in arrival order. The EnqueuedAt stamp is set here.
func (q *Queue) Push(op Op) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxDepth > 0 && len(q.ops) >= q.maxDepth {
		return ErrFull
	}
	op.EnqueuedAt = q.now()
	q.ops = append(q.ops, op)
	return nil
}

// Drain removes and returns all queued operations in enqueue order. The
// engine calls it exactly once per Unattached→Attached transition and
// invokes each op's Transmit continuation.
func (q *Queue) Drain() []Op {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops := q.ops
	q.ops = nil
	return ops
}

// Remove drops the operation with the given id, if still queued. It
// returns true when an entry was removed. Used when a queued caller
// abandons its wait.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, op := range q.ops {
		if op.ID == id {
			q.ops = append(q.ops[:i], q.ops[i+1:]...)
			return true
		}
	}
	return false
}

// FailAll rejects every queued operation with err and empties the queue.
// Called at shutdown so no caller is left dangling.
func (q *Queue) FailAll(err error) {
	q.mu.Lock()
	ops := q.ops
	q.ops = nil
	q.mu.Unlock()

	for _, op := range ops {
		op.Fail(err)
	}
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Status returns the queue length, the queued kinds in enqueue order and
// the oldest enqueue time.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{Length: len(q.ops)}
	if len(q.ops) == 0 {
		return st
	}
	st.OldestEnqueuedAt = q.ops[0].EnqueuedAt
	st.Kinds = make([]string, len(q.ops))
	for i, op := range q.ops {
		st.Kinds[i] = op.Kind
	}
	return st
}
