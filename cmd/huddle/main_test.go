package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"huddle/internal/app"
	"huddle/internal/config"
)

// FUNCTIONAL VALIDATION TEST: Configuration integration without database
func TestApplication_ConfigurationValidation(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg == nil {
		t.Fatal("Default config should not be nil")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	cfg.HTTP.Port = -1
	if err := cfg.Validate(); err == nil {
		t.Error("Invalid config should fail validation")
	}
}

// FUNCTIONAL VALIDATION TEST: Application construction validation
func TestApplication_ConstructorValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1

	application, err := app.NewApplication(cfg)
	if err == nil {
		t.Error("Constructor should reject invalid configuration")
	}
	if application != nil {
		t.Error("Constructor should not return application with invalid config")
	}
}

// FUNCTIONAL VALIDATION TEST: Full construction against a scratch database
func TestApplication_ConstructionWithScratchDatabase(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "huddle-test.db")

	application, err := app.NewApplication(cfg)
	if err != nil {
		t.Fatalf("Construction failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

// TECHNICAL VALIDATION TEST: Error handling patterns
func TestApplication_ErrorHandling(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*config.Config)
	}{
		{
			name: "invalid_port",
			modify: func(c *config.Config) {
				c.HTTP.Port = 0
			},
		},
		{
			name: "empty_db_path",
			modify: func(c *config.Config) {
				c.Database.Path = ""
			},
		},
		{
			name: "invalid_resource_policy",
			modify: func(c *config.Config) {
				c.Session.ResourcePolicy = "merge_everything"
			},
		},
		{
			name: "unknown_ai_backend",
			modify: func(c *config.Config) {
				c.AI.Backend = ""
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Database.Path = filepath.Join(t.TempDir(), "huddle-test.db")
			tc.modify(cfg)

			_, err := app.NewApplication(cfg)
			if err == nil {
				t.Errorf("Expected error for %s", tc.name)
			}
		})
	}
}

// FUNCTIONAL VALIDATION TEST: Config precedence in loadConfig
func TestLoadConfig_Precedence(t *testing.T) {
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.HTTP.Port)
	}

	t.Setenv("HUDDLE_HTTP_PORT", "9090")
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Env override should win, got %d", cfg.HTTP.Port)
	}
}
