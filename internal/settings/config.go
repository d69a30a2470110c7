package settings

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config contains settings persistence configuration
type Config struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"` // file, redis, sql or memory
	SaveDelay time.Duration `yaml:"save_delay" mapstructure:"save_delay"`
	File      FileConfig    `yaml:"file" mapstructure:"file"`
	Redis     RedisConfig   `yaml:"redis" mapstructure:"redis"`
	SQL       SQLConfig     `yaml:"sql" mapstructure:"sql"`
}

// FileConfig configures the JSON file backend
type FileConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RedisConfig configures the Redis backend
type RedisConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	Key            string `yaml:"key" mapstructure:"key"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// SQLConfig configures the SQL backend. Driver is postgres or sqlite3.
type SQLConfig struct {
	Driver          string        `yaml:"driver" mapstructure:"driver"`
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// OpenBackend creates the backend selected by cfg
func OpenBackend(cfg Config, logger *zap.Logger) (Backend, error) {
	switch cfg.Backend {
	case "file":
		return NewFileBackend(cfg.File.Path), nil
	case "redis":
		return NewRedisBackend(cfg.Redis, logger)
	case "sql":
		return NewSQLBackend(cfg.SQL, logger)
	case "memory":
		return NewMemoryBackend(nil), nil
	default:
		return nil, fmt.Errorf("unknown settings backend: %s", cfg.Backend)
	}
}
