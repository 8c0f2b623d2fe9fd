// Package frame defines the closed message vocabulary exchanged with the
// worker and its JSON codec.
//
// Every frame on the wire is a JSON object with a "type" tag:
// handshake, heartbeat and info flow worker→bridge, result answers a
// previously sent operation, and operation is the only bridge→worker frame.
// Decode parses and validates once at the channel boundary so downstream
// dispatch can switch exhaustively on the Frame variant instead of
// re-inspecting strings.
//
// Undecodable input yields *MalformedError; callers log and drop it without
// touching the channel.
package frame
