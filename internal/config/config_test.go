package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Device: DeviceConfig{
			Port:           8080,
			BindAddress:    "0.0.0.0",
			ReadTimeout:    30,
			MaxConnections: 4,
		},
		HTTP: HTTPConfig{
			Port:    5000,
			Address: "0.0.0.0",
		},
		Admin: AdminConfig{
			User:       "serwis",
			Pass:       "raspberry123",
			SessionTTL: 600,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "device port out of range",
			mutate:      func(c *Config) { c.Device.Port = 70000 },
			expectError: true,
		},
		{
			name:        "device port zero",
			mutate:      func(c *Config) { c.Device.Port = 0 },
			expectError: true,
		},
		{
			name:        "empty bind address",
			mutate:      func(c *Config) { c.Device.BindAddress = "" },
			expectError: true,
		},
		{
			name:        "read timeout zero",
			mutate:      func(c *Config) { c.Device.ReadTimeout = 0 },
			expectError: true,
		},
		{
			name:        "max connections zero",
			mutate:      func(c *Config) { c.Device.MaxConnections = 0 },
			expectError: true,
		},
		{
			name:        "http port out of range",
			mutate:      func(c *Config) { c.HTTP.Port = -1 },
			expectError: true,
		},
		{
			name:        "empty admin user",
			mutate:      func(c *Config) { c.Admin.User = "" },
			expectError: true,
		},
		{
			name:        "empty admin pass",
			mutate:      func(c *Config) { c.Admin.Pass = "" },
			expectError: true,
		},
		{
			name:        "session ttl zero",
			mutate:      func(c *Config) { c.Admin.SessionTTL = 0 },
			expectError: true,
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected validation error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	yaml := `
device:
  port: 8080
  bind_address: "0.0.0.0"
  read_timeout: 30
  max_connections: 4

http:
  port: 5000
  address: "0.0.0.0"

admin:
  user: "serwis"
  pass: "raspberry123"
  session_ttl: 600

logging:
  level: "info"
  format: "text"
  output: "stdout"
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Device.Port != 8080 {
		t.Errorf("Expected device port 8080, got %d", cfg.Device.Port)
	}
	if cfg.HTTP.Port != 5000 {
		t.Errorf("Expected http port 5000, got %d", cfg.HTTP.Port)
	}
	if cfg.Admin.SessionTTL != 600 {
		t.Errorf("Expected session ttl 600, got %d", cfg.Admin.SessionTTL)
	}
	if got := cfg.Device.GetReadTimeoutDuration(); got != 30*time.Second {
		t.Errorf("Expected read timeout 30s, got %v", got)
	}
	if got := cfg.Admin.GetSessionTTLDuration(); got != 600*time.Second {
		t.Errorf("Expected session ttl 600s, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("device: [not a mapping"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid yaml")
	}
}

func TestEnvCredentialOverride(t *testing.T) {
	yaml := `
device:
  port: 8080
  bind_address: "0.0.0.0"
  read_timeout: 30
  max_connections: 4

http:
  port: 5000
  address: "0.0.0.0"

admin:
  user: "serwis"
  pass: "changeme"
  session_ttl: 600

logging:
  level: "info"
  format: "text"
  output: "stdout"
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("ADMIN_USER", "operator")
	t.Setenv("ADMIN_PASS", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Admin.User != "operator" {
		t.Errorf("Expected env user override, got '%s'", cfg.Admin.User)
	}
	if cfg.Admin.Pass != "s3cret" {
		t.Errorf("Expected env pass override, got '%s'", cfg.Admin.Pass)
	}
}
