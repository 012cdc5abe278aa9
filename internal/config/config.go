package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	DNS     DNSConfig     `yaml:"dns"`
	Monitor MonitorConfig `yaml:"monitor"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains server-wide settings
type ServerConfig struct {
	Hostname string `yaml:"hostname"` // FQDN of this server
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	APIKey       string        `yaml:"api_key"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	AllowedIPs   []string      `yaml:"allowed_ips"` // IPs/CIDRs allowed to call the API; empty allows all
}

// StorageConfig contains paths for the persistent stores
type StorageConfig struct {
	DatabasePath  string        `yaml:"database_path"`   // SQLite domain registry
	HistoryPath   string        `yaml:"history_path"`    // BoltDB verification history
	HistoryMaxAge time.Duration `yaml:"history_max_age"` // Prune checks older than this (0 = keep forever)
}

// DNSConfig contains verification settings
type DNSConfig struct {
	ResolverAddr     string        `yaml:"resolver_addr"`     // Default: 1.1.1.1:53
	Timeout          time.Duration `yaml:"timeout"`           // Per-lookup timeout
	ExpectedA        string        `yaml:"expected_a"`        // Apex A record target
	ExpectedCNAME    string        `yaml:"expected_cname"`    // www CNAME target
	ReservedSuffixes []string      `yaml:"reserved_suffixes"` // Platform-owned suffixes dealers may not claim
}

// MonitorConfig controls background re-verification of active domains
type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // Default: 10m
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"` // Default: :9090
	Path       string   `yaml:"path"`        // Default: /metrics
	AllowedIPs []string `yaml:"allowed_ips"` // IPs/CIDRs allowed to scrape
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Load reads, defaults and validates a configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.Hostname == "" {
		hostname, _ := os.Hostname()
		c.Server.Hostname = hostname
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 30 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}

	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "/var/lib/forecourt/domains.db"
	}
	if c.Storage.HistoryPath == "" {
		c.Storage.HistoryPath = "/var/lib/forecourt/history.db"
	}

	if c.DNS.ResolverAddr == "" {
		c.DNS.ResolverAddr = "1.1.1.1:53"
	}
	if c.DNS.Timeout == 0 {
		c.DNS.Timeout = 5 * time.Second
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 10 * time.Minute
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("api.api_key is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Monitor.Enabled && c.Monitor.Interval < time.Minute {
		return fmt.Errorf("monitor.interval must be at least 1m, got %s", c.Monitor.Interval)
	}

	if c.Storage.HistoryMaxAge < 0 {
		return fmt.Errorf("storage.history_max_age must not be negative")
	}

	return nil
}
