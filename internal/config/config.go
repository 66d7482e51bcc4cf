package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for RoadGuard.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	AntiCheat AntiCheatConfig `koanf:"anticheat"`
	Alerts    AlertsConfig    `koanf:"alerts"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

// DatabaseConfig holds the event-log storage settings.
// Type "memory" keeps the log in-process; "postgres" makes it durable.
type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// AntiCheatConfig holds engine settings.
type AntiCheatConfig struct {
	// RulesDir is the directory holding thresholds.yaml overrides.
	// Empty or missing means built-in defaults.
	RulesDir string `koanf:"rules_dir"`

	// AppendEvents controls whether detections are also recorded as
	// domain events on the driver aggregate.
	AppendEvents bool `koanf:"append_events"`
}

// AlertsConfig holds the outbound detection alert settings.
type AlertsConfig struct {
	Enabled bool     `koanf:"enabled"`
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// Load loads the configuration from the given file path and environment variables.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"database.type":           "memory",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"anticheat.rules_dir":     "./config/anticheat",
		"anticheat.append_events": true,
		"alerts.enabled":          false,
		"alerts.brokers":          []string{"localhost:9092"},
		"alerts.topic":            "roadguard.alerts",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// 2. Load from file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// 3. Load from Environment Variables
	// ROADGUARD_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("ROADGUARD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ROADGUARD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required when database.type is postgres")
		}
	default:
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if c.Alerts.Enabled {
		if len(c.Alerts.Brokers) == 0 {
			return fmt.Errorf("alerts.brokers must not be empty when alerts are enabled")
		}
		if c.Alerts.Topic == "" {
			return fmt.Errorf("alerts.topic is required when alerts are enabled")
		}
	}
	return nil
}
