// Package health tracks observability data for the worker channel.
//
// monitor.go provides the Monitor: a bounded rolling window of response
// times and outcomes plus lifetime success/error counters, fed by the
// correlation engine on every settled request. It makes no control-flow
// decisions — the request path only writes to it, never reads.
//
// grade.go provides the pure ComputeGrade function that maps connection
// state, heartbeat freshness and the recent error rate to a coarse grade:
// healthy, degraded or unhealthy. Unattached is always unhealthy; a grace
// period after start/attach suppresses downgrades from a merely
// not-yet-seen heartbeat.
package health
