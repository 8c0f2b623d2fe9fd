package bridge

import (
	"context"
	"time"

	"github.com/workerbridge/workerbridge/internal/health"
)

// connState tracks the single logical worker attachment. Mutated only
// under the bridge mutex, and only by the lifecycle methods below.
type connState struct {
	attached bool
	channel  Channel
	worker   string // name from the handshake frame

	attachedAt      time.Time
	lastHeartbeatAt time.Time

	reconnects   int
	everAttached bool
}

// HealthStatus is the read-only connection view returned by Health.
type HealthStatus struct {
	Attached        bool         `json:"attached"`
	Grade           health.Grade `json:"grade"`
	Worker          string       `json:"worker,omitempty"`
	AttachedAt      time.Time    `json:"attached_at,omitempty"`
	LastHeartbeatAt time.Time    `json:"last_heartbeat_at,omitempty"`
	ReconnectCount  int          `json:"reconnect_count"`
	PendingCount    int          `json:"pending_count"`
}

// attachLocked adopts ch as the worker channel and returns the previous
// channel when one was attached (the replace policy for a second
// handshake). Requires b.mu held.
func (b *Bridge) attachLocked(ch Channel, worker string) Channel {
	var replaced Channel
	if b.state.attached {
		replaced = b.state.channel
	}

	if b.state.everAttached {
		b.state.reconnects++
	}
	b.state.attached = true
	b.state.everAttached = true
	b.state.channel = ch
	b.state.worker = worker
	b.state.attachedAt = b.now()
	b.state.lastHeartbeatAt = time.Time{}
	return replaced
}

// detachLocked transitions to Unattached. In-flight requests are left to
// race their own deadlines. Requires b.mu held.
func (b *Bridge) detachLocked() {
	b.state.attached = false
	b.state.channel = nil
	b.state.worker = ""
}

// markHeartbeatLocked records a heartbeat from the attached channel.
// Requires b.mu held.
func (b *Bridge) markHeartbeatLocked() {
	b.state.lastHeartbeatAt = b.now()
}

// lastSeenLocked returns the best liveness reference point: the last
// heartbeat, or the attach time when no heartbeat has arrived yet.
func (b *Bridge) lastSeenLocked() time.Time {
	if !b.state.lastHeartbeatAt.IsZero() {
		return b.state.lastHeartbeatAt
	}
	return b.state.attachedAt
}

// inGraceLocked reports whether heartbeat-based downgrades are suppressed:
// shortly after process start, and shortly after an attachment before the
// first heartbeat can reasonably have arrived.
func (b *Bridge) inGraceLocked(now time.Time) bool {
	if now.Sub(b.startedAt) < b.grace {
		return true
	}
	if b.state.attached && b.state.lastHeartbeatAt.IsZero() &&
		now.Sub(b.state.attachedAt) < b.grace {
		return true
	}
	return false
}

// Health returns the current connection state with its derived grade.
func (b *Bridge) Health() HealthStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	st := HealthStatus{
		Attached:        b.state.attached,
		Worker:          b.state.worker,
		AttachedAt:      b.state.attachedAt,
		LastHeartbeatAt: b.state.lastHeartbeatAt,
		ReconnectCount:  b.state.reconnects,
		PendingCount:    len(b.pending),
	}

	in := health.GradeInput{
		Attached:          b.state.attached,
		HeartbeatInterval: b.hbInterval,
		InGrace:           b.inGraceLocked(now),
		RecentErrorRate:   b.monitor.Snapshot().RecentErrorRate,
	}
	if b.state.attached {
		in.SinceHeartbeat = now.Sub(b.lastSeenLocked())
	}
	st.Grade = health.ComputeGrade(in)
	return st
}

// Run enforces heartbeat liveness: when the attached worker has not been
// heard from for longer than the miss limit, the channel is closed and the
// state transitions to Unattached. Pending requests are never cancelled
// here — only their own deadlines terminate them. Run blocks until ctx is
// cancelled.
func (b *Bridge) Run(ctx context.Context) {
	interval := b.hbInterval / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			b.checkLiveness(now)
		}
	}
}

func (b *Bridge) checkLiveness(now time.Time) {
	b.mu.Lock()
	var stale Channel
	if b.state.attached && !b.inGraceLocked(now) {
		since := now.Sub(b.lastSeenLocked())
		if since > time.Duration(health.MissingFactor)*b.hbInterval {
			stale = b.state.channel
			b.detachLocked()
			b.log.Warn("worker heartbeat missing, detaching",
				"since_last_seen", since, "heartbeat_interval", b.hbInterval)
		}
	}
	b.mu.Unlock()

	if stale != nil {
		stale.Close() //nolint:errcheck
	}
}
