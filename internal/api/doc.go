// Package api implements the bridge's HTTP surface.
//
// New(bridge) returns an http.Handler that serves:
//
//	GET  /api/v1/health     — connection state, heartbeat, derived grade
//	GET  /api/v1/queue      — backpressure queue length and queued kinds
//	GET  /api/v1/stats      — health monitor snapshot (counters, timings)
//	POST /api/v1/operations — submit one operation; blocks until settled
//	GET  /metrics           — Prometheus text exposition of the same data
//
// Operation outcomes map to statuses: timeout → 504, worker-reported
// failure → 502, shutdown or full queue → 503. All JSON endpoints return
// 405 for unexpected methods. No external HTTP framework is used.
package api
