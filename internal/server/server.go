package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/loglib/loglib-server/internal/config"
	"github.com/loglib/loglib-server/internal/event"
	"github.com/loglib/loglib-server/internal/metrics"
	"github.com/loglib/loglib-server/internal/protocol"
	"github.com/loglib/loglib-server/internal/reassembly"
	"github.com/loglib/loglib-server/internal/sink"
)

// Server accepts log payloads over TCP and UDP on a shared port and funnels
// them through framing, reassembly and decoding into the sink. One goroutine
// runs per transport listener, one per accepted connection, a worker pool
// drains the datagram queue, and the reassembly sweep runs on its own timer.
type Server struct {
	config        *config.ServerConfig
	reassemblyCfg *config.ReassemblyConfig
	logger        *slog.Logger
	table         *reassembly.Table
	decoder       *event.Decoder
	sink          sink.Sink
	metrics       *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	listener    net.Listener
	udpConn     *net.UDPConn
	packetChans []chan *datagram
	recvDone    chan struct{}

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	// Running counters, reported by Statistics and at shutdown.
	statsMu         sync.RWMutex
	tcpConnections  uint64
	udpPackets      uint64
	eventsProcessed uint64
	decodeFallbacks uint64
	errorCount      uint64
}

// datagram is one received UDP payload with its sender address.
type datagram struct {
	data       []byte
	remoteAddr *net.UDPAddr
}

// New creates a Server. Start must be called before it accepts traffic.
func New(cfg *config.Config, logger *slog.Logger, table *reassembly.Table,
	decoder *event.Decoder, snk sink.Sink, m *metrics.Metrics) *Server {

	ctx, cancel := context.WithCancel(context.Background())

	// One queue per worker, sharded by sender address, so datagrams from
	// one source are never reordered across workers.
	chans := make([]chan *datagram, cfg.Server.UDPWorkers)
	for i := range chans {
		chans[i] = make(chan *datagram, cfg.Server.QueueSize)
	}

	return &Server{
		config:        &cfg.Server,
		reassemblyCfg: &cfg.Reassembly,
		logger:        logger,
		table:         table,
		decoder:       decoder,
		sink:          snk,
		metrics:       m,
		ctx:           ctx,
		cancel:        cancel,
		packetChans:   chans,
		recvDone:      make(chan struct{}),
		conns:         make(map[net.Conn]struct{}),
	}
}

// Start binds both transports and launches all worker goroutines. A bind
// failure on either transport is fatal and leaves nothing running.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on TCP %s: %w", addr, err)
	}
	s.listener = listener

	// Both transports share one port. When the configured port is 0 the
	// kernel picks one for TCP; UDP then binds the same port.
	port := listener.Addr().(*net.TCPAddr).Port
	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.config.BindAddress, port))
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}
	s.udpConn = conn

	if err := s.udpConn.SetReadBuffer(1024 * 1024); err != nil {
		s.logger.Warn("Failed to set UDP read buffer size",
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("Server started",
		slog.String("tcp_address", listener.Addr().String()),
		slog.String("udp_address", udpAddr.String()),
		slog.Int("buffer_size", s.config.BufferSize),
		slog.Int("max_connections", s.config.MaxConnections),
	)

	for i := 0; i < s.config.UDPWorkers; i++ {
		s.wg.Add(1)
		go s.packetProcessor(i)
	}

	go s.receiveLoop()

	s.wg.Add(1)
	go s.acceptLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.table.Run(s.ctx, s.reassemblyCfg.GetSweepInterval(), s.reassemblyCfg.GetMaxAge(), func(n int) {
			s.metrics.FragmentsExpired.Add(float64(n))
			s.metrics.PendingMessages.Set(float64(s.table.Len()))
		})
	}()

	return nil
}

// Port returns the port both transports are bound to. Valid after Start.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Stop shuts the server down: no new accepts or receives, in-flight
// connection reads finish up to their poll timeout and flush any trailing
// undelimited bytes, then all goroutines are joined.
func (s *Server) Stop() error {
	s.logger.Info("Stopping server...")

	s.cancel()

	if err := s.listener.Close(); err != nil {
		s.logger.Warn("Error closing TCP listener", slog.String("error", err.Error()))
	}
	if err := s.udpConn.Close(); err != nil {
		s.logger.Warn("Error closing UDP socket", slog.String("error", err.Error()))
	}

	// The receive loop must be gone before the packet channels close, so a
	// late datagram can never be sent on a closed channel.
	<-s.recvDone
	for _, ch := range s.packetChans {
		close(ch)
	}

	s.wg.Wait()

	stats := s.Statistics()
	s.logger.Info("Server stopped",
		slog.Uint64("tcp_connections", stats.TCPConnections),
		slog.Uint64("udp_packets", stats.UDPPackets),
		slog.Uint64("events_processed", stats.EventsProcessed),
		slog.Uint64("decode_fallbacks", stats.DecodeFallbacks),
		slog.Uint64("errors", stats.Errors),
	)

	return nil
}

// dispatch runs one payload through the framing and reassembly stages. A
// failure here affects only this payload; the source connection or socket
// stays usable.
func (s *Server) dispatch(payload []byte, id reassembly.Identity) {
	s.metrics.PayloadsReceived.WithLabelValues(id.Network).Inc()

	frame, err := protocol.Decode(payload)
	if err != nil {
		s.metrics.DecodeErrors.Inc()
		s.addError()
		s.logger.Warn("Dropping payload with invalid text encoding",
			slog.String("source", id.String()),
			slog.Int("payload_size", len(payload)),
		)
		return
	}

	// Empty text after marker stripping records no fragment and emits no event.
	if frame.Text == "" {
		return
	}

	switch frame.Kind {
	case protocol.FrameStart:
		if discarded := s.table.Start(id, frame.Text); discarded {
			s.metrics.ProtocolErrors.Inc()
		}
	case protocol.FrameContinuation:
		joined, done, ok := s.table.Continue(id, frame.Text, frame.More)
		if !ok {
			s.metrics.ProtocolErrors.Inc()
			s.addError()
			return
		}
		if done {
			s.deliver(joined, id)
		}
	case protocol.FrameComplete:
		s.deliver(frame.Text, id)
	}

	s.metrics.PendingMessages.Set(float64(s.table.Len()))
}

// deliver decodes one complete message and hands it to the sink. Structured
// decode failures still reach the sink as raw fallbacks; nothing vanishes
// without a diagnostic.
func (s *Server) deliver(text string, id reassembly.Identity) {
	s.metrics.EventBytes.Observe(float64(len(text)))

	res := s.decoder.Decode(text)
	entry := sink.Entry{
		Raw:      res.Raw,
		Source:   id.String(),
		Received: time.Now(),
	}

	if res.Fallback() {
		s.metrics.DecodeFallbacks.Inc()
		s.statsMu.Lock()
		s.decodeFallbacks++
		s.statsMu.Unlock()
		s.logger.Warn("Payload is not a structured event, keeping raw",
			slog.String("source", id.String()),
			slog.String("preview", res.Preview),
		)
	} else {
		entry.Event = res.Event
		s.metrics.EventsDecoded.Inc()
	}

	if err := s.sink.Write(entry); err != nil {
		s.addError()
		s.logger.Error("Sink write failed",
			slog.String("source", id.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.metrics.EventsWritten.Inc()
	s.statsMu.Lock()
	s.eventsProcessed++
	s.statsMu.Unlock()
}

// Statistics is a point-in-time snapshot of server counters.
type Statistics struct {
	TCPConnections    uint64 `json:"tcp_connections"`
	UDPPackets        uint64 `json:"udp_packets"`
	EventsProcessed   uint64 `json:"events_processed"`
	DecodeFallbacks   uint64 `json:"decode_fallbacks"`
	Errors            uint64 `json:"errors"`
	ActiveConnections int    `json:"active_connections"`
	PendingMessages   int    `json:"pending_messages"`
	QueueSize         int    `json:"queue_size"`
	QueueCapacity     int    `json:"queue_capacity"`
}

// Statistics returns current server counters.
func (s *Server) Statistics() Statistics {
	s.statsMu.RLock()
	stats := Statistics{
		TCPConnections:  s.tcpConnections,
		UDPPackets:      s.udpPackets,
		EventsProcessed: s.eventsProcessed,
		DecodeFallbacks: s.decodeFallbacks,
		Errors:          s.errorCount,
	}
	s.statsMu.RUnlock()

	s.connMu.Lock()
	stats.ActiveConnections = len(s.conns)
	s.connMu.Unlock()

	stats.PendingMessages = s.table.Len()
	stats.QueueSize = s.queuedPackets()
	stats.QueueCapacity = len(s.packetChans) * s.config.QueueSize
	return stats
}

func (s *Server) queuedPackets() int {
	n := 0
	for _, ch := range s.packetChans {
		n += len(ch)
	}
	return n
}

func (s *Server) addError() {
	s.statsMu.Lock()
	s.errorCount++
	s.statsMu.Unlock()
}
