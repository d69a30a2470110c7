package config

import (
	"time"

	"github.com/raaihank/isolated-regex/internal/host"
	"github.com/raaihank/isolated-regex/internal/settings"
	"github.com/raaihank/isolated-regex/internal/substitute"
)

// Config represents the main configuration structure
type Config struct {
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	Logging      LoggingConfig     `yaml:"logging" mapstructure:"logging"`
	Substitution substitute.Config `yaml:"substitution" mapstructure:"substitution"`
	Settings     settings.Config   `yaml:"settings" mapstructure:"settings"`
	Host         HostConfig        `yaml:"host" mapstructure:"host"`
	RateLimit    RateLimitConfig   `yaml:"rate_limit" mapstructure:"rate_limit"`
	WebSocket    WebSocketConfig   `yaml:"websocket" mapstructure:"websocket"`
	ETL          ETLConfig         `yaml:"etl" mapstructure:"etl"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// HostConfig seeds the in-process host with a roster
type HostConfig struct {
	Roster []host.Character `yaml:"roster" mapstructure:"roster"`
	Active string           `yaml:"active" mapstructure:"active"`
}

// RateLimitConfig limits API requests per client
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Username       string   `yaml:"username" mapstructure:"username"`
	Password       string   `yaml:"password" mapstructure:"password"`
	Events         struct {
		BroadcastCharacterChanges bool `yaml:"broadcast_character_changes" mapstructure:"broadcast_character_changes"`
		BroadcastRuleUpdates      bool `yaml:"broadcast_rule_updates" mapstructure:"broadcast_rule_updates"`
		BroadcastPatternErrors    bool `yaml:"broadcast_pattern_errors" mapstructure:"broadcast_pattern_errors"`
		BroadcastConnections      bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// ETLConfig contains bulk import configuration
type ETLConfig struct {
	BatchSize      int `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Substitution: substitute.DefaultConfig(),
		Settings: settings.Config{
			Backend:   "file",
			SaveDelay: time.Second,
			File: settings.FileConfig{
				Path: "data/settings.json",
			},
			Redis: settings.RedisConfig{
				URL:            "redis://localhost:6379/0",
				Key:            "isolated-regex:settings",
				MaxConnections: 10,
				MinIdleConns:   1,
			},
			SQL: settings.SQLConfig{
				Driver:          "sqlite3",
				DSN:             "file:data/rules.db",
				MaxOpenConns:    4,
				MaxIdleConns:    2,
				ConnMaxLifetime: time.Hour,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
		ETL: ETLConfig{
			BatchSize:      500,
			ProgressReport: 1000,
		},
	}

	cfg.Logging.File.Path = "logs/isolated-regex.log"
	cfg.WebSocket.Events.BroadcastCharacterChanges = true
	cfg.WebSocket.Events.BroadcastRuleUpdates = true
	cfg.WebSocket.Events.BroadcastPatternErrors = true
	cfg.WebSocket.Events.BroadcastConnections = false

	return cfg
}
