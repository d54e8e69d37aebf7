package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	HTTP    HTTPConfig    `yaml:"http"`
	Admin   AdminConfig   `yaml:"admin"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig contains the TCP device listener configuration
type DeviceConfig struct {
	Port           int    `yaml:"port"`
	BindAddress    string `yaml:"bind_address"`
	ReadTimeout    int    `yaml:"read_timeout"`    // seconds of inactivity before a connection is dropped
	MaxConnections int    `yaml:"max_connections"` // concurrent device connections
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// AdminConfig contains the admin credential and session parameters.
// User and Pass may be overridden by the ADMIN_USER and ADMIN_PASS
// environment variables so the credential can stay out of the yaml file.
type AdminConfig struct {
	User       string `yaml:"user"`
	Pass       string `yaml:"pass"`
	SessionTTL int    `yaml:"session_ttl"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyEnvOverrides replaces the admin credential with environment values
// when present.
func (c *Config) applyEnvOverrides() {
	if user := os.Getenv("ADMIN_USER"); user != "" {
		c.Admin.User = user
	}
	if pass := os.Getenv("ADMIN_PASS"); pass != "" {
		c.Admin.Pass = pass
	}
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Admin.Validate(); err != nil {
		return fmt.Errorf("admin config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates the device listener configuration
func (d *DeviceConfig) Validate() error {
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", d.Port)
	}

	if d.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if d.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", d.ReadTimeout)
	}

	if d.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1, got %d", d.MaxConnections)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates admin configuration
func (a *AdminConfig) Validate() error {
	if a.User == "" {
		return fmt.Errorf("user cannot be empty")
	}

	if a.Pass == "" {
		return fmt.Errorf("pass cannot be empty")
	}

	if a.SessionTTL < 1 {
		return fmt.Errorf("session_ttl must be at least 1 second, got %d", a.SessionTTL)
	}

	return nil
}

// Validate validates logging configuration
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

	// Output accepts stdout, stderr, or a file path; nothing to reject here.
	return nil
}

// GetReadTimeoutDuration returns the device read timeout as a time.Duration
func (d *DeviceConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(d.ReadTimeout) * time.Second
}

// GetSessionTTLDuration returns the admin session TTL as a time.Duration
func (a *AdminConfig) GetSessionTTLDuration() time.Duration {
	return time.Duration(a.SessionTTL) * time.Second
}
