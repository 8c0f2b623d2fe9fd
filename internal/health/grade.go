package health

import "time"

// Grade is the coarse channel health classification surfaced to callers.
type Grade string

const (
	GradeHealthy   Grade = "healthy"
	GradeDegraded  Grade = "degraded"
	GradeUnhealthy Grade = "unhealthy"
)

// Heartbeat freshness multipliers, relative to the worker's heartbeat
// interval.
const (
	// FreshFactor: a heartbeat within this many intervals is fresh.
	FreshFactor = 2

	// MissingFactor: no heartbeat for this many intervals means the worker
	// is gone even though the channel has not errored yet.
	MissingFactor = 5
)

// DegradedErrorRate is the recent error fraction above which an attached,
// fresh channel is still reported degraded.
const DegradedErrorRate = 0.5

// GradeInput holds the observations the grade is derived from.
type GradeInput struct {
	// Attached reports whether a worker is currently attached.
	Attached bool

	// SinceHeartbeat is the time since the last heartbeat (or since
	// attachment, when no heartbeat has arrived yet).
	SinceHeartbeat time.Duration

	// HeartbeatInterval is the worker's expected heartbeat period.
	HeartbeatInterval time.Duration

	// InGrace suppresses heartbeat-based downgrades shortly after start or
	// attach, before the first heartbeat can reasonably have arrived.
	InGrace bool

	// RecentErrorRate is the error fraction (0–1) over the monitor's
	// outcome window.
	RecentErrorRate float64
}

// ComputeGrade maps channel observations to a Grade.
//
// Rules, in order:
//   - Unattached is always unhealthy, regardless of metrics.
//   - Heartbeat missing beyond MissingFactor intervals is unhealthy,
//     unless still inside the grace period.
//   - A fresh heartbeat (within FreshFactor intervals) with a low recent
//     error rate is healthy.
//   - Everything else (stale heartbeat, elevated error rate) is degraded.
func ComputeGrade(in GradeInput) Grade {
	if !in.Attached {
		return GradeUnhealthy
	}

	if !in.InGrace && in.SinceHeartbeat > time.Duration(MissingFactor)*in.HeartbeatInterval {
		return GradeUnhealthy
	}

	fresh := in.InGrace || in.SinceHeartbeat <= time.Duration(FreshFactor)*in.HeartbeatInterval
	if fresh && in.RecentErrorRate < DegradedErrorRate {
		return GradeHealthy
	}

	return GradeDegraded
}
