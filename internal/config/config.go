package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Reassembly ReassemblyConfig `yaml:"reassembly"`
	Sink       SinkConfig       `yaml:"sink"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig contains the shared TCP/UDP listener configuration.
type ServerConfig struct {
	Port           int    `yaml:"port"`
	BindAddress    string `yaml:"bind_address"`
	BufferSize     int    `yaml:"buffer_size"`
	MaxConnections int    `yaml:"max_connections"`
	UDPWorkers     int    `yaml:"udp_workers"`
	QueueSize      int    `yaml:"queue_size"`
}

// ReassemblyConfig controls expiry of partial fragmented messages.
type ReassemblyConfig struct {
	MaxAge        int `yaml:"max_age"`        // seconds
	SweepInterval int `yaml:"sweep_interval"` // seconds
}

// SinkConfig contains console presentation and file persistence settings.
type SinkConfig struct {
	WorkingDirectory string `yaml:"working_directory"`
	ShowTimestamp    bool   `yaml:"show_timestamp"`
	ShowAddress      bool   `yaml:"show_address"`
	ShowAppName      bool   `yaml:"show_app_name"`
	Color            string `yaml:"color"` // auto, on, off
	QueueSize        int    `yaml:"queue_size"`
}

// HTTPConfig contains the HTTP monitoring API configuration.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains diagnostic logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			BindAddress:    "0.0.0.0",
			BufferSize:     65535,
			MaxConnections: 100,
			UDPWorkers:     4,
			QueueSize:      1000,
		},
		Reassembly: ReassemblyConfig{
			MaxAge:        60,
			SweepInterval: 30,
		},
		Sink: SinkConfig{
			WorkingDirectory: "./logs",
			ShowTimestamp:    true,
			ShowAddress:      false,
			ShowAppName:      true,
			Color:            "auto",
			QueueSize:        1024,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Fields absent from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Reassembly.Validate(); err != nil {
		return fmt.Errorf("reassembly config: %w", err)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.BufferSize < 1024 || s.BufferSize > 65535 {
		return fmt.Errorf("buffer_size must be between 1024 and 65535 bytes, got %d", s.BufferSize)
	}

	if s.MaxConnections < 1 || s.MaxConnections > 1000 {
		return fmt.Errorf("max_connections must be between 1 and 1000, got %d", s.MaxConnections)
	}

	if s.UDPWorkers < 1 {
		return fmt.Errorf("udp_workers must be at least 1, got %d", s.UDPWorkers)
	}

	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}

	return nil
}

// Validate validates reassembly configuration.
func (r *ReassemblyConfig) Validate() error {
	if r.MaxAge < 1 {
		return fmt.Errorf("max_age must be at least 1 second, got %d", r.MaxAge)
	}

	if r.SweepInterval < 1 {
		return fmt.Errorf("sweep_interval must be at least 1 second, got %d", r.SweepInterval)
	}

	return nil
}

// Validate validates sink configuration.
func (s *SinkConfig) Validate() error {
	if s.WorkingDirectory == "" {
		return fmt.Errorf("working_directory cannot be empty")
	}

	validColors := map[string]bool{"auto": true, "on": true, "off": true}
	if !validColors[s.Color] {
		return fmt.Errorf("color must be one of [auto, on, off], got '%s'", s.Color)
	}

	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}

	return nil
}

// Validate validates HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration.
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetMaxAge returns the reassembly expiry age as a time.Duration.
func (r *ReassemblyConfig) GetMaxAge() time.Duration {
	return time.Duration(r.MaxAge) * time.Second
}

// GetSweepInterval returns the sweep period as a time.Duration.
func (r *ReassemblyConfig) GetSweepInterval() time.Duration {
	return time.Duration(r.SweepInterval) * time.Second
}
