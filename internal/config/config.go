package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/isolated-regex/")
	viper.AddConfigPath("$HOME/.isolated-regex/")

	// Environment variable overrides
	viper.SetEnvPrefix("ISOLATED_REGEX")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.Substitution.CacheSize <= 0 {
		return fmt.Errorf("invalid substitution cache size: %d", config.Substitution.CacheSize)
	}

	if config.Substitution.MatchTimeout < 0 {
		return fmt.Errorf("invalid match timeout: %s", config.Substitution.MatchTimeout)
	}

	switch config.Settings.Backend {
	case "file":
		if config.Settings.File.Path == "" {
			return fmt.Errorf("file settings backend requires a path")
		}
	case "redis":
		if config.Settings.Redis.URL == "" || config.Settings.Redis.Key == "" {
			return fmt.Errorf("redis settings backend requires url and key")
		}
	case "sql":
		if config.Settings.SQL.Driver != "postgres" && config.Settings.SQL.Driver != "sqlite3" {
			return fmt.Errorf("invalid sql driver: %s (must be postgres or sqlite3)", config.Settings.SQL.Driver)
		}
		if config.Settings.SQL.DSN == "" {
			return fmt.Errorf("sql settings backend requires a dsn")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid settings backend: %s (must be file, redis, sql, or memory)", config.Settings.Backend)
	}

	if config.Settings.SaveDelay < 0 {
		return fmt.Errorf("invalid save delay: %s", config.Settings.SaveDelay)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}

	seen := make(map[string]bool, len(config.Host.Roster))
	for _, c := range config.Host.Roster {
		if c.Avatar == "" {
			return fmt.Errorf("roster entry %q has no avatar", c.Name)
		}
		if seen[c.Avatar] {
			return fmt.Errorf("duplicate roster avatar: %s", c.Avatar)
		}
		seen[c.Avatar] = true
	}

	return nil
}

// Watch starts watching the configuration file for changes. Invalid
// changes are logged and ignored.
func Watch(log *zap.Logger, callback func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			log.Warn("Ignoring configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}

		if err := validateConfig(newConfig); err != nil {
			log.Warn("Ignoring invalid configuration change", zap.String("file", e.Name), zap.Error(err))
			return
		}

		log.Info("Configuration reloaded", zap.String("file", e.Name))
		callback(newConfig)
	})
	viper.WatchConfig()
}
