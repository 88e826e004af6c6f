package server

import (
	"bytes"
	"errors"
	"hash/fnv"
	"log/slog"
	"net"
	"time"

	"github.com/loglib/loglib-server/internal/reassembly"
)

// receiveLoop is the main datagram receiving loop. Each datagram is one
// payload, already message-bounded by the transport; its sender address is
// the source identity.
func (s *Server) receiveLoop() {
	defer close(s.recvDone)

	buffer := make([]byte, s.config.BufferSize)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Read deadline so context cancellation is noticed promptly.
		if err := s.udpConn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set UDP read deadline", slog.String("error", err.Error()))
			return
		}

		n, remoteAddr, err := s.udpConn.ReadFromUDP(buffer)
		if err != nil {
			if isTimeout(err) {
				continue
			}

			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// The datagram socket has no per-sender connection to isolate
			// failures to; a persistent socket error ends the whole loop.
			s.logger.Error("Failed to read UDP packet", slog.String("error", err.Error()))
			s.addError()
			continue
		}

		s.metrics.UDPPackets.Inc()
		s.statsMu.Lock()
		s.udpPackets++
		s.statsMu.Unlock()

		// The read buffer is reused; the payload must be copied out.
		data := make([]byte, n)
		copy(data, buffer[:n])

		pkt := &datagram{data: data, remoteAddr: remoteAddr}

		// Datagrams are sharded to workers by sender address so payloads
		// from one source are always processed in arrival order.
		ch := s.packetChans[shardFor(remoteAddr.String(), len(s.packetChans))]
		select {
		case ch <- pkt:
			s.metrics.QueueSize.Set(float64(s.queuedPackets()))
		default:
			s.addError()
			s.logger.Warn("Packet queue full, dropping datagram",
				slog.String("remote_addr", remoteAddr.String()),
				slog.Int("packet_size", n),
			)
		}
	}
}

// packetProcessor drains one datagram shard into the dispatch pipeline.
func (s *Server) packetProcessor(workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Packet processor started", slog.Int("worker_id", workerID))

	for pkt := range s.packetChans[workerID] {
		// Datagrams get the same whitespace trim as stream records;
		// whitespace-only payloads carry nothing to dispatch.
		data := bytes.TrimSpace(pkt.data)
		if len(data) == 0 {
			continue
		}
		id := reassembly.Identity{Network: "udp", Addr: pkt.remoteAddr.String()}
		s.dispatch(data, id)
	}

	s.logger.Debug("Packet processor stopped", slog.Int("worker_id", workerID))
}

func shardFor(addr string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(addr))
	return int(h.Sum32() % uint32(shards))
}
