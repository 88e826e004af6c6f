package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/loglib/loglib-server/internal/reassembly"
)

// connPollInterval is the per-read deadline on stream connections. A timeout
// is keepalive behavior, not an error: the read simply resumes, unless the
// server is shutting down.
const connPollInterval = 1 * time.Second

// acceptLoop accepts stream connections until the listener closes.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept TCP connection", slog.String("error", err.Error()))
			s.addError()
			continue
		}

		s.connMu.Lock()
		if len(s.conns) >= s.config.MaxConnections {
			s.connMu.Unlock()
			s.logger.Warn("Connection limit reached, rejecting",
				slog.String("remote_addr", conn.RemoteAddr().String()),
				slog.Int("max_connections", s.config.MaxConnections),
			)
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.connMu.Unlock()

		s.metrics.TCPConnections.Inc()
		s.metrics.ActiveConns.Inc()
		s.statsMu.Lock()
		s.tcpConnections++
		s.statsMu.Unlock()

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

// handleConn reads one stream connection. Records are newline-delimited and
// may be pipelined within a single read; trailing undelimited bytes at
// end-of-stream or shutdown are flushed as one final record.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()

	id := reassembly.Identity{Network: "tcp", Addr: conn.RemoteAddr().String()}
	s.logger.Debug("TCP connection opened", slog.String("source", id.String()))

	defer func() {
		conn.Close()
		s.connMu.Lock()
		delete(s.conns, conn)
		s.connMu.Unlock()
		s.metrics.ActiveConns.Dec()
		s.logger.Debug("TCP connection closed", slog.String("source", id.String()))
	}()

	buf := make([]byte, s.config.BufferSize)
	var pending []byte

reading:
	for {
		if err := conn.SetReadDeadline(time.Now().Add(connPollInterval)); err != nil {
			break
		}

		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = s.drainRecords(pending, id)
		}

		switch {
		case err == nil:
		case isTimeout(err):
			select {
			case <-s.ctx.Done():
				break reading
			default:
			}
		default:
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("TCP read error",
					slog.String("source", id.String()),
					slog.String("error", err.Error()),
				)
			}
			break reading
		}
	}

	if record := bytes.TrimSpace(pending); len(record) > 0 {
		s.dispatch(record, id)
	}
}

// drainRecords dispatches every complete newline-delimited record in pending
// and returns the undelimited remainder.
func (s *Server) drainRecords(pending []byte, id reassembly.Identity) []byte {
	for {
		i := bytes.IndexByte(pending, '\n')
		if i < 0 {
			return pending
		}
		record := bytes.TrimSpace(pending[:i])
		pending = pending[i+1:]
		if len(record) > 0 {
			s.dispatch(record, id)
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
