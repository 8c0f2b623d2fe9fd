package queue

import (
	"errors"
	"testing"
	"time"
)

func TestQueue_DrainPreservesFIFO(t *testing.T) {
	q := New(0)
	for _, kind := range []string{"first", "second", "third"} {
		if err := q.Push(Op{ID: kind, Kind: kind}); err != nil {
			t.Fatalf("Push %s: %v", kind, err)
		}
	}

	ops := q.Drain()
	if len(ops) != 3 {
		t.Fatalf("Drain: got %d ops, want 3", len(ops))
	}
	for i, want := range []string{"first", "second", "third"} {
		if ops[i].Kind != want {
			t.Errorf("ops[%d]: got %q, want %q", i, ops[i].Kind, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain: got %d, want 0", q.Len())
	}
}

func TestQueue_DrainEmpty(t *testing.T) {
	q := New(0)
	if ops := q.Drain(); len(ops) != 0 {
		t.Errorf("Drain on empty: got %d ops", len(ops))
	}
}

func TestQueue_MaxDepth(t *testing.T) {
	q := New(2)
	if err := q.Push(Op{ID: "a", Kind: "a"}); err != nil {
		t.Fatalf("Push a: %v", err)
	}
	if err := q.Push(Op{ID: "b", Kind: "b"}); err != nil {
		t.Fatalf("Push b: %v", err)
	}
	if err := q.Push(Op{ID: "c", Kind: "c"}); !errors.Is(err, ErrFull) {
		t.Errorf("Push c: got %v, want ErrFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len: got %d, want 2", q.Len())
	}
}

func TestQueue_Remove(t *testing.T) {
	q := New(0)
	q.Push(Op{ID: "a", Kind: "a"}) //nolint:errcheck
	q.Push(Op{ID: "b", Kind: "b"}) //nolint:errcheck
	q.Push(Op{ID: "c", Kind: "c"}) //nolint:errcheck

	if !q.Remove("b") {
		t.Fatal("Remove b: got false")
	}
	if q.Remove("b") {
		t.Error("Remove b twice: got true")
	}

	ops := q.Drain()
	if len(ops) != 2 || ops[0].ID != "a" || ops[1].ID != "c" {
		t.Errorf("after remove: got %v", ops)
	}
}

func TestQueue_FailAll(t *testing.T) {
	q := New(0)
	errs := make([]error, 0, 2)
	for _, id := range []string{"a", "b"} {
		q.Push(Op{ //nolint:errcheck
			ID:   id,
			Kind: id,
			Fail: func(err error) { errs = append(errs, err) },
		})
	}

	shutdown := errors.New("shutting down")
	q.FailAll(shutdown)

	if len(errs) != 2 {
		t.Fatalf("failed ops: got %d, want 2", len(errs))
	}
	for i, err := range errs {
		if !errors.Is(err, shutdown) {
			t.Errorf("errs[%d]: got %v", i, err)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len after FailAll: got %d, want 0", q.Len())
	}
}

func TestQueue_Status(t *testing.T) {
	q := New(0)
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	tick := 0
	q.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	if st := q.Status(); st.Length != 0 || len(st.Kinds) != 0 {
		t.Errorf("empty status: got %+v", st)
	}

	q.Push(Op{ID: "1", Kind: "ping"})     //nolint:errcheck
	q.Push(Op{ID: "2", Kind: "get_node"}) //nolint:errcheck

	st := q.Status()
	if st.Length != 2 {
		t.Errorf("length: got %d, want 2", st.Length)
	}
	if len(st.Kinds) != 2 || st.Kinds[0] != "ping" || st.Kinds[1] != "get_node" {
		t.Errorf("kinds: got %v", st.Kinds)
	}
	if !st.OldestEnqueuedAt.Equal(base.Add(time.Second)) {
		t.Errorf("oldest_enqueued_at: got %v", st.OldestEnqueuedAt)
	}
}
