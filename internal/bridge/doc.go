// Package bridge implements the request/response correlation engine and
// the connection lifecycle for a single worker reachable over one
// bidirectional frame channel.
//
// Send is the only way to issue work: it assigns a fresh id, transmits (or
// queues, while no worker is attached), arms the per-kind deadline at
// transmission time, and blocks until the matching result frame settles
// it. The pending-request table, connection state and backpressure queue
// are all serialized through the bridge mutex, so channel events, timer
// expiries and Send calls mutate them one at a time regardless of which
// goroutine delivers them.
//
// Lifecycle: the state starts Unattached and flips to Attached on a
// handshake frame. A second handshake replaces the current channel. The
// state drops back to Unattached on disconnect or when Run's liveness
// ticker finds the heartbeat missing beyond the miss limit. Neither
// disconnect nor liveness detection cancels in-flight requests — only each
// request's own deadline does.
package bridge
