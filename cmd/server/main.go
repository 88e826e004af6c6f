package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loglib/loglib-server/internal/config"
	"github.com/loglib/loglib-server/internal/event"
	"github.com/loglib/loglib-server/internal/metrics"
	"github.com/loglib/loglib-server/internal/reassembly"
	"github.com/loglib/loglib-server/internal/server"
	"github.com/loglib/loglib-server/internal/sink"
)

const (
	serviceName    = "loglib-server"
	serviceVersion = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	flag.Parse()

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("max_connections", cfg.Server.MaxConnections),
		slog.Int("udp_workers", cfg.Server.UDPWorkers),
		slog.Int("reassembly_max_age", cfg.Reassembly.MaxAge),
		slog.String("working_directory", cfg.Sink.WorkingDirectory),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.New(prometheus.DefaultRegisterer)
	logger.Info("Prometheus metrics initialized")

	// Build the sink chain: console and daily file behind one async queue.
	fileSink, err := sink.NewFile(cfg.Sink.WorkingDirectory, time.Now)
	if err != nil {
		logger.Error("Failed to create file sink", slog.String("error", err.Error()))
		os.Exit(1)
	}

	consoleSink := sink.NewConsole(os.Stdout, sink.ConsoleOptions{
		ShowTimestamp: cfg.Sink.ShowTimestamp,
		ShowAddress:   cfg.Sink.ShowAddress,
		ShowAppName:   cfg.Sink.ShowAppName,
		Color:         useColor(cfg.Sink.Color),
	})

	outSink := sink.NewAsync(
		sink.NewMulti(consoleSink, fileSink),
		logger,
		sink.WithQueueSize(cfg.Sink.QueueSize),
		sink.WithOnDrop(func() { appMetrics.SinkDrops.Inc() }),
	)
	logger.Info("Sink chain initialized",
		slog.String("working_directory", cfg.Sink.WorkingDirectory),
		slog.Int("queue_size", cfg.Sink.QueueSize),
	)

	// Initialize the reassembly table and event decoder
	table := reassembly.NewTable(logger, time.Now)
	decoder := event.NewDecoder(time.Now)

	// Initialize the ingestion server
	srv := server.New(cfg, logger, table, decoder, outSink, appMetrics)
	logger.Info("Ingestion server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, srv, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start the ingestion server
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, srv.Port())),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the ingestion server; trailing undelimited bytes on open
	// connections are flushed before this returns.
	if err := srv.Stop(); err != nil {
		logger.Error("Error stopping server", slog.String("error", err.Error()))
	}

	// Close the sink last so every delivered entry is drained to disk.
	if err := outSink.Close(); err != nil {
		logger.Error("Error closing sink", slog.String("error", err.Error()))
	}

	stats := srv.Statistics()
	logger.Info("Final server statistics",
		slog.Uint64("tcp_connections", stats.TCPConnections),
		slog.Uint64("udp_packets", stats.UDPPackets),
		slog.Uint64("events_processed", stats.EventsProcessed),
		slog.Uint64("decode_fallbacks", stats.DecodeFallbacks),
		slog.Uint64("errors", stats.Errors),
	)

	logger.Info("Service stopped")
}

// useColor resolves the configured color mode against the terminal.
func useColor(mode string) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return sink.IsTerminal(os.Stdout)
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
