// Package config defines the YAML service configuration and its validation
// rules: transport binding, reassembly expiry, sink presentation and
// persistence, the HTTP monitoring API, and logging.
package config
