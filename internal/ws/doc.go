// Package ws is the WebSocket transport for the worker channel.
//
// Endpoint upgrades HTTP requests at the worker endpoint and runs one
// read/write pump pair per connection, delivering raw frames to a Sink
// (the bridge) and transmitting the frames the bridge hands back. The
// endpoint itself is policy-free: which connection counts as the attached
// worker is decided by the bridge when it sees a handshake frame.
//
// Transport-level ping/pong keeps dead TCP connections from lingering;
// the worker's application heartbeats are a separate concern handled by
// the bridge's lifecycle manager.
package ws
