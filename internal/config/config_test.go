package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default configuration should validate, got %v", err)
	}
}

func TestValidate_RejectsBrokenSections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil database", func(c *Config) { c.Database = nil }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"nil websocket", func(c *Config) { c.WebSocket = nil }},
		{"zero buffer", func(c *Config) { c.WebSocket.BufferSize = 0 }},
		{"nil session", func(c *Config) { c.Session = nil }},
		{"unknown policy", func(c *Config) { c.Session.ResourcePolicy = "merge" }},
		{"negative log cap", func(c *Config) { c.Session.MaxLogEntries = -1 }},
		{"zero liveness timeout", func(c *Config) { c.Session.LivenessTimeout = 0 }},
		{"zero rate limit", func(c *Config) { c.Session.RateLimitPerSecond = 0 }},
		{"nil ai", func(c *Config) { c.AI = nil }},
		{"empty backend", func(c *Config) { c.AI.Backend = "" }},
		{"zero moderator interval", func(c *Config) { c.AI.ModeratorInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 9090, "host": "127.0.0.1", "read_timeout": 30000000000, "write_timeout": 30000000000},
		"session": {"resource_policy": "apply_if_newer", "max_log_entries": 50,
			"liveness_timeout": 60000000000, "liveness_interval": 10000000000, "rate_limit_per_second": 10}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if config.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", config.HTTP.Port)
	}
	if config.Session.ResourcePolicy != "apply_if_newer" {
		t.Errorf("Expected apply_if_newer, got %s", config.Session.ResourcePolicy)
	}
	if config.Session.LivenessTimeout != 60*time.Second {
		t.Errorf("Expected 60s liveness timeout, got %v", config.Session.LivenessTimeout)
	}
	// Sections absent from the file keep their defaults
	if config.Database.Path != "./huddle.db" {
		t.Errorf("Expected default database path, got %s", config.Database.Path)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Loaded config should validate, got %v", err)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HUDDLE_HTTP_PORT", "9999")
	t.Setenv("HUDDLE_DB_PATH", "/tmp/huddle-test.db")
	t.Setenv("HUDDLE_RESOURCE_POLICY", "apply_if_newer")

	config := DefaultConfig()
	config.LoadFromEnv()

	if config.HTTP.Port != 9999 {
		t.Errorf("Expected env port override 9999, got %d", config.HTTP.Port)
	}
	if config.Database.Path != "/tmp/huddle-test.db" {
		t.Errorf("Expected env db path override, got %s", config.Database.Path)
	}
	if config.Session.ResourcePolicy != "apply_if_newer" {
		t.Errorf("Expected env policy override, got %s", config.Session.ResourcePolicy)
	}
}
