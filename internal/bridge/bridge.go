package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/workerbridge/workerbridge/internal/frame"
	"github.com/workerbridge/workerbridge/internal/health"
	"github.com/workerbridge/workerbridge/internal/queue"
)

// Default lifecycle settings, overridable via Options.
const (
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultStartupGrace      = 30 * time.Second
)

// Channel is one physical worker connection, as seen by the bridge. The
// transport (internal/ws) implements it and feeds frames back through
// OnFrame/OnDisconnect.
type Channel interface {
	// Transmit sends one raw frame to the worker.
	Transmit(raw []byte) error

	// Close tears the connection down. The transport must still call
	// OnDisconnect afterwards.
	Close() error
}

// Options configures a Bridge.
type Options struct {
	// Timeouts is the per-kind deadline policy. Zero value means
	// DefaultTimeout for every kind.
	Timeouts TimeoutPolicy

	// HeartbeatInterval is the worker's expected heartbeat period.
	HeartbeatInterval time.Duration

	// StartupGrace suppresses heartbeat-based downgrades after process
	// start and after each attachment.
	StartupGrace time.Duration

	// QueueMaxDepth bounds the backpressure queue; <= 0 means unbounded.
	QueueMaxDepth int

	// Monitor receives an outcome for every settled request. A fresh one
	// is created when nil.
	Monitor *health.Monitor

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Bridge correlates operations sent to a single worker with the results it
// returns over one bidirectional frame channel. It is the sole owner of
// the pending-request table and the connection state: every mutation goes
// through its mutex, whichever goroutine delivers the event.
type Bridge struct {
	mu      sync.Mutex
	closed  bool
	pending map[string]*pendingRequest
	state   connState

	queue    *queue.Queue
	timeouts TimeoutPolicy
	monitor  *health.Monitor

	hbInterval time.Duration
	grace      time.Duration
	startedAt  time.Time

	log   *slog.Logger
	now   func() time.Time // injectable for deterministic tests
	newID func() string
}

// pendingRequest is the bookkeeping entry for one in-flight operation.
// Created at transmission, removed on result, timeout, abandonment or
// shutdown.
type pendingRequest struct {
	id     string
	kind   string
	sentAt time.Time
	timer  *time.Timer
	done   chan outcome
}

// outcome settles one Send call. done channels are buffered so settling
// never blocks on a caller that already gave up.
type outcome struct {
	data json.RawMessage
	err  error
}

// New creates a Bridge in the Unattached state.
func New(opts Options) *Bridge {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = DefaultStartupGrace
	}
	if opts.Monitor == nil {
		opts.Monitor = health.NewMonitor(health.DefaultWindow)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	b := &Bridge{
		pending:    make(map[string]*pendingRequest),
		queue:      queue.New(opts.QueueMaxDepth),
		timeouts:   opts.Timeouts,
		monitor:    opts.Monitor,
		hbInterval: opts.HeartbeatInterval,
		grace:      opts.StartupGrace,
		log:        opts.Logger.With(slog.String("component", "bridge")),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	b.startedAt = b.now()
	return b
}

// Send issues one operation to the worker and blocks until its result
// arrives, its deadline elapses, the bridge shuts down, or ctx is
// cancelled.
//
// While no worker is attached the operation is queued and transmitted, in
// enqueue order, on the next attachment; its deadline starts at that
// transmission, not now. Results for distinct operations may settle in any
// order.
func (b *Bridge) Send(ctx context.Context, kind string, payload json.RawMessage) (json.RawMessage, error) {
	done := make(chan outcome, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, &ShutdownError{}
	}
	id := b.newID()

	if b.state.attached {
		b.transmitLocked(id, kind, payload, done)
		b.mu.Unlock()
	} else {
		err := b.queue.Push(queue.Op{
			ID:   id,
			Kind: kind,
			// Invoked during the drain in handleHandshake, under b.mu.
			Transmit: func() { b.transmitLocked(id, kind, payload, done) },
			Fail:     func(err error) { done <- outcome{err: err} },
		})
		b.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("send %q: %w", kind, err)
		}
		b.log.Debug("operation queued while unattached", "id", id, "kind", kind)
	}

	select {
	case out := <-done:
		return out.data, out.err
	case <-ctx.Done():
		b.abandon(id)
		return nil, ctx.Err()
	}
}

// transmitLocked frames the operation, registers the pending entry and
// arms its deadline, then hands the bytes to the channel. Requires b.mu
// held and state.attached.
func (b *Bridge) transmitLocked(id, kind string, payload json.RawMessage, done chan outcome) {
	raw, err := frame.EncodeOperation(&frame.Operation{ID: id, Kind: kind, Payload: payload})
	if err != nil {
		done <- outcome{err: err}
		return
	}

	p := &pendingRequest{id: id, kind: kind, sentAt: b.now(), done: done}
	b.pending[id] = p
	p.timer = time.AfterFunc(b.timeouts.Lookup(kind), func() { b.expire(id) })

	if err := b.state.channel.Transmit(raw); err != nil {
		// The transport will report the disconnect; the request races its
		// deadline like any other in-flight operation.
		b.log.Warn("transmit failed", "id", id, "kind", kind, "err", err)
	}
}

// expire fails the pending request id with a TimeoutError. A result that
// already resolved it wins; a result arriving later is dropped as
// unroutable.
func (b *Bridge) expire(id string) {
	b.mu.Lock()
	p, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	elapsed := b.now().Sub(p.sentAt)
	terr := &TimeoutError{Kind: p.kind, Elapsed: elapsed}
	b.monitor.RecordError(elapsed, terr.Error())
	b.log.Warn("operation timed out", "id", id, "kind", p.kind, "elapsed", elapsed)
	p.done <- outcome{err: terr}
}

// abandon removes the bookkeeping for a caller that stopped waiting
// (context cancellation). A result arriving afterwards is dropped as
// unroutable.
func (b *Bridge) abandon(id string) {
	b.mu.Lock()
	if p, ok := b.pending[id]; ok {
		p.timer.Stop()
		delete(b.pending, id)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.queue.Remove(id)
}

// OnPhysicalConnect is called by the transport when a connection is
// established. The state stays Unattached until the handshake frame.
func (b *Bridge) OnPhysicalConnect(ch Channel) {
	b.log.Debug("physical connection opened, awaiting handshake")
}

// OnFrame decodes and dispatches one inbound frame from ch. Malformed
// frames are logged and dropped; they never close the channel or
// propagate.
func (b *Bridge) OnFrame(ch Channel, raw []byte) {
	f, err := frame.Decode(raw)
	if err != nil {
		b.log.Warn("dropping malformed frame", "err", err, "bytes", len(raw))
		return
	}

	switch f := f.(type) {
	case *frame.Handshake:
		b.handleHandshake(ch, f)
	case *frame.Heartbeat:
		b.handleHeartbeat(ch)
	case *frame.Result:
		b.resolve(f)
	case *frame.Info:
		b.forwardInfo(f)
	case *frame.Operation:
		b.log.Warn("dropping operation frame sent by worker", "id", f.ID, "kind", f.Kind)
	}
}

// handleHandshake attaches ch and drains the backpressure queue in enqueue
// order. A handshake on a second channel replaces the current one: the old
// channel is closed and in-flight requests keep racing their deadlines
// (results correlate by id, not by channel).
func (b *Bridge) handleHandshake(ch Channel, hs *frame.Handshake) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ch.Close() //nolint:errcheck
		return
	}

	replaced := b.attachLocked(ch, hs.Worker)
	ops := b.queue.Drain()
	for _, op := range ops {
		op.Transmit()
	}
	reconnects := b.state.reconnects
	b.mu.Unlock()

	if replaced != nil {
		replaced.Close() //nolint:errcheck
		b.log.Info("second handshake, replacing attached channel", "worker", hs.Worker)
	}
	b.log.Info("worker attached",
		"worker", hs.Worker,
		"version", hs.Version,
		"reconnects", reconnects,
		"drained", len(ops),
	)
}

func (b *Bridge) handleHeartbeat(ch Channel) {
	b.mu.Lock()
	if b.state.attached && ch == b.state.channel {
		b.markHeartbeatLocked()
	}
	b.mu.Unlock()
}

// resolve settles the pending request matching res. Unknown ids (already
// timed out, abandoned, or never ours) are logged and dropped.
func (b *Bridge) resolve(res *frame.Result) {
	b.mu.Lock()
	p, ok := b.pending[res.ID]
	if ok {
		p.timer.Stop()
		delete(b.pending, res.ID)
	}
	b.mu.Unlock()
	if !ok {
		b.log.Warn("dropping unroutable result", "id", res.ID, "success", res.Success)
		return
	}

	elapsed := b.now().Sub(p.sentAt)
	if res.Success {
		b.monitor.RecordSuccess(elapsed)
		p.done <- outcome{data: res.Data}
		return
	}
	b.monitor.RecordError(elapsed, res.Error)
	p.done <- outcome{err: &WorkerError{Kind: p.kind, Message: res.Error}}
}

// forwardInfo relays a worker info frame to the log verbatim.
func (b *Bridge) forwardInfo(info *frame.Info) {
	level := slog.LevelInfo
	switch info.Severity {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	b.log.Log(context.Background(), level, "worker: "+info.Text, "data", string(info.Data))
}

// OnDisconnect is called by the transport when ch closes or errors. If ch
// is the attached channel the state transitions to Unattached; pending
// requests are left to race their own deadlines.
func (b *Bridge) OnDisconnect(ch Channel) {
	b.mu.Lock()
	wasAttached := b.state.attached && ch == b.state.channel
	if wasAttached {
		b.detachLocked()
	}
	pending := len(b.pending)
	b.mu.Unlock()

	if wasAttached {
		b.log.Info("worker detached", "pending_in_flight", pending)
	}
}

// SetTimeoutPolicy swaps the deadline policy. It affects operations
// transmitted afterwards; already-armed deadlines are unchanged.
func (b *Bridge) SetTimeoutPolicy(p TimeoutPolicy) {
	b.mu.Lock()
	b.timeouts = p
	b.mu.Unlock()
	b.log.Info("timeout policy updated", "default", p.Lookup(""), "overrides", len(p.PerKind))
}

// QueueStatus reports the backpressure queue for observability callers.
func (b *Bridge) QueueStatus() queue.Status {
	return b.queue.Status()
}

// Metrics returns the health monitor snapshot.
func (b *Bridge) Metrics() health.Snapshot {
	return b.monitor.Snapshot()
}

// Close stops the bridge: every pending request and every queued operation
// is failed with a ShutdownError, and the attached channel, if any, is
// closed. Subsequent Sends fail immediately.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	pend := b.pending
	b.pending = make(map[string]*pendingRequest)
	var ch Channel
	if b.state.attached {
		ch = b.state.channel
		b.detachLocked()
	}
	b.mu.Unlock()

	serr := &ShutdownError{}
	for _, p := range pend {
		p.timer.Stop()
		p.done <- outcome{err: serr}
	}
	b.queue.FailAll(serr)

	if ch != nil {
		ch.Close() //nolint:errcheck
	}
	b.log.Info("bridge closed", "failed_pending", len(pend))
}
