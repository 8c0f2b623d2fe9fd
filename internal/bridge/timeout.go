package bridge

import "time"

// DefaultTimeout applies when the policy carries neither a per-kind
// override nor a default.
const DefaultTimeout = 30 * time.Second

// TimeoutPolicy decides how long a transmitted operation may wait for its
// result before failing with a TimeoutError.
type TimeoutPolicy struct {
	// Default applies to every kind without an override.
	Default time.Duration

	// PerKind overrides the default for specific operation kinds.
	PerKind map[string]time.Duration
}

// Lookup returns the deadline duration for kind: the per-kind override if
// present, else the policy default, else DefaultTimeout.
func (p TimeoutPolicy) Lookup(kind string) time.Duration {
	if d, ok := p.PerKind[kind]; ok && d > 0 {
		return d
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultTimeout
}
