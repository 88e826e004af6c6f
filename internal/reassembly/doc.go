// Package reassembly tracks per-sender continuation state for messages split
// across multiple transport payloads. Each sender identity holds at most one
// pending message; stale pending messages are expired by a periodic sweep so
// a sender that starts a fragment sequence and disappears cannot grow memory
// without bound.
package reassembly
