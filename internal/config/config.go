package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Session   *SessionConfig   `json:"session"`
	AI        *AIConfig        `json:"ai"`
}

// FUNCTIONAL DISCOVERY: Database configuration supports SQLite optimizations
type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// FUNCTIONAL DISCOVERY: HTTP configuration balances performance and reliability
type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

// FUNCTIONAL DISCOVERY: WebSocket configuration tuned for six-person sessions
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// SessionConfig tunes the replicated state machine and its policy knobs
type SessionConfig struct {
	// ResourcePolicy is "always_apply" or "apply_if_newer"; every replica of
	// a session must run the same policy or they diverge
	ResourcePolicy string `json:"resource_policy"`
	// MaxLogEntries bounds the activity log kept in hot state (0 = unbounded)
	MaxLogEntries int `json:"max_log_entries"`
	// LivenessTimeout is how long a participant may go without a heartbeat
	// before the failure detector synthesizes a user_leave
	LivenessTimeout time.Duration `json:"liveness_timeout"`
	// LivenessInterval is how often the failure detector scans
	LivenessInterval time.Duration `json:"liveness_interval"`
	// RateLimitPerSecond caps actions dispatched per participant
	RateLimitPerSecond int `json:"rate_limit_per_second"`
}

// AIConfig tunes the tutoring subsystem
type AIConfig struct {
	// Backend selects the completion backend ("stub" is the only built-in)
	Backend string `json:"backend"`
	// QueryTimeout bounds one backend call
	QueryTimeout time.Duration `json:"query_timeout"`
	// ModeratorInterval is how often the moderator considers nudging
	ModeratorInterval time.Duration `json:"moderator_interval"`
	// ModeratorIdleThreshold is how long a session must be idle before the
	// moderator injects guidance
	ModeratorIdleThreshold time.Duration `json:"moderator_idle_threshold"`
}

// FUNCTIONAL DISCOVERY: Production-ready defaults for small-group sessions
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./huddle.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Session: &SessionConfig{
			ResourcePolicy:     "always_apply",
			MaxLogEntries:      1000,
			LivenessTimeout:    90 * time.Second,
			LivenessInterval:   15 * time.Second,
			RateLimitPerSecond: 50,
		},
		AI: &AIConfig{
			Backend:                "stub",
			QueryTimeout:           30 * time.Second,
			ModeratorInterval:      30 * time.Second,
			ModeratorIdleThreshold: 2 * time.Minute,
		},
	}
}

// LoadFromFile loads configuration from a JSON file, starting from defaults
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromEnv applies environment variable overrides on top of the config
// FUNCTIONAL DISCOVERY: Env overrides cover the deployment-variable settings
// (ports, paths) without requiring a config file rewrite per environment
func (c *Config) LoadFromEnv() {
	if path := os.Getenv("HUDDLE_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("HUDDLE_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.HTTP.Port = p
		}
	}
	if host := os.Getenv("HUDDLE_HTTP_HOST"); host != "" {
		c.HTTP.Host = host
	}
	if policy := os.Getenv("HUDDLE_RESOURCE_POLICY"); policy != "" {
		c.Session.ResourcePolicy = policy
	}
	if backend := os.Getenv("HUDDLE_AI_BACKEND"); backend != "" {
		c.AI.Backend = backend
	}
}

// Validate ensures the configuration is internally consistent
// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system
// configurations from producing runtime failures mid-session
func (c *Config) Validate() error {
	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.ResourcePolicy != "always_apply" && c.Session.ResourcePolicy != "apply_if_newer" {
		return fmt.Errorf("resource policy must be always_apply or apply_if_newer")
	}
	if c.Session.MaxLogEntries < 0 {
		return fmt.Errorf("max log entries cannot be negative")
	}
	if c.Session.LivenessTimeout <= 0 {
		return fmt.Errorf("liveness timeout must be positive")
	}
	if c.Session.LivenessInterval <= 0 {
		return fmt.Errorf("liveness interval must be positive")
	}
	if c.Session.RateLimitPerSecond <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	if c.AI == nil {
		return fmt.Errorf("AI configuration is required")
	}
	if c.AI.Backend == "" {
		return fmt.Errorf("AI backend cannot be empty")
	}
	if c.AI.QueryTimeout <= 0 {
		return fmt.Errorf("AI query timeout must be positive")
	}
	if c.AI.ModeratorInterval <= 0 {
		return fmt.Errorf("moderator interval must be positive")
	}
	if c.AI.ModeratorIdleThreshold <= 0 {
		return fmt.Errorf("moderator idle threshold must be positive")
	}

	return nil
}
