package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config must validate, got: %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	content := `
server:
  port: 9999
  bind_address: "127.0.0.1"
  buffer_size: 8192
  max_connections: 10
  udp_workers: 2
  queue_size: 100
reassembly:
  max_age: 120
  sweep_interval: 15
sink:
  working_directory: "/tmp/loglib-test"
  show_address: true
  color: "off"
logging:
  level: "debug"
  format: "json"
  output: "stdout"
`
	path := writeTempConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("Expected bind address 127.0.0.1, got %s", cfg.Server.BindAddress)
	}
	if cfg.Reassembly.GetMaxAge() != 2*time.Minute {
		t.Errorf("Expected max age 2m, got %v", cfg.Reassembly.GetMaxAge())
	}
	if cfg.Reassembly.GetSweepInterval() != 15*time.Second {
		t.Errorf("Expected sweep interval 15s, got %v", cfg.Reassembly.GetSweepInterval())
	}
	if !cfg.Sink.ShowAddress {
		t.Error("Expected show_address true")
	}
	// Fields absent from the file keep their defaults.
	if !cfg.Sink.ShowTimestamp {
		t.Error("Expected show_timestamp to default to true")
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected default HTTP port 9090, got %d", cfg.HTTP.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "server: [not a mapping")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{
			name:     "port too small",
			mutate:   func(c *Config) { c.Server.Port = 0 },
			errorMsg: "port must be between",
		},
		{
			name:     "port too large",
			mutate:   func(c *Config) { c.Server.Port = 70000 },
			errorMsg: "port must be between",
		},
		{
			name:     "empty bind address",
			mutate:   func(c *Config) { c.Server.BindAddress = "" },
			errorMsg: "bind_address cannot be empty",
		},
		{
			name:     "buffer too small",
			mutate:   func(c *Config) { c.Server.BufferSize = 512 },
			errorMsg: "buffer_size must be between",
		},
		{
			name:     "zero max age",
			mutate:   func(c *Config) { c.Reassembly.MaxAge = 0 },
			errorMsg: "max_age must be at least",
		},
		{
			name:     "bad color mode",
			mutate:   func(c *Config) { c.Sink.Color = "rainbow" },
			errorMsg: "color must be one of",
		},
		{
			name:     "empty working directory",
			mutate:   func(c *Config) { c.Sink.WorkingDirectory = "" },
			errorMsg: "working_directory cannot be empty",
		},
		{
			name: "http enabled without address",
			mutate: func(c *Config) {
				c.HTTP.Enabled = true
				c.HTTP.Address = ""
			},
			errorMsg: "http address cannot be empty",
		},
		{
			name:     "bad log level",
			mutate:   func(c *Config) { c.Logging.Level = "loud" },
			errorMsg: "level must be one of",
		},
		{
			name:     "bad log format",
			mutate:   func(c *Config) { c.Logging.Format = "xml" },
			errorMsg: "format must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Expected error to contain '%s', got '%s'", tt.errorMsg, err.Error())
			}
		})
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}
