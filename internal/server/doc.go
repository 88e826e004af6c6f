// Package server implements the transport multiplexer: a TCP listener and a
// UDP socket on the same port, per-connection reader goroutines, a bounded
// datagram worker pool, and the shared dispatch pipeline that runs every
// payload through framing, reassembly and event decoding before handing it to
// the sink. It also provides the HTTP monitoring API.
package server
