// Package config provides configuration loading for the waqctl CLI and gateway.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// Endpoint is the gateway URL the CLI talks to
	Endpoint string `mapstructure:"endpoint"`

	// Auth configuration
	Auth AuthConfig `mapstructure:"auth"`

	// Database configuration (for gateway)
	Database DatabaseConfig `mapstructure:"database"`

	// Health-check configuration
	Health HealthConfig `mapstructure:"health"`

	// Query execution configuration
	Query QueryConfig `mapstructure:"query"`

	// Trigger execution defaults
	Triggers TriggerConfig `mapstructure:"triggers"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configuration (for gateway)
	Server ServerConfig `mapstructure:"server"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds the catalog store configuration. Driver is
// "postgres", "sqlite" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`

	// Postgres settings
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	// SQLite settings
	Path string `mapstructure:"path"`
}

// DSN builds the driver connection string.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "sqlite":
		return d.Path
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
	}
}

// HealthConfig holds the periodic health-check configuration.
type HealthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Interval string `mapstructure:"interval"`
}

// QueryConfig holds query execution limits.
type QueryConfig struct {
	Timeout        string `mapstructure:"timeout"`
	ConnectTimeout string `mapstructure:"connectTimeout"`
	SchemaCacheTTL string `mapstructure:"schemaCacheTtl"`
}

// TriggerConfig holds trigger execution defaults.
type TriggerConfig struct {
	DefaultInterval string `mapstructure:"defaultInterval"`
	MaxDisplayRows  int    `mapstructure:"maxDisplayRows"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8080",
		Auth: AuthConfig{
			Token: "",
		},
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Host:     "localhost",
			Port:     5432,
			User:     "waq",
			Password: "waq_dev",
			Name:     "waq",
			SSLMode:  "disable",
			Path:     "waq.db",
		},
		Health: HealthConfig{
			Enabled:  true,
			Interval: "30s",
		},
		Query: QueryConfig{
			Timeout:        "15s",
			ConnectTimeout: "10s",
			SchemaCacheTTL: "5m",
		},
		Triggers: TriggerConfig{
			DefaultInterval: "1h",
			MaxDisplayRows:  10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".waq"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("WAQ")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "http://localhost:8080")
	v.SetDefault("auth.token", "")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "waq")
	v.SetDefault("database.password", "waq_dev")
	v.SetDefault("database.name", "waq")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "waq.db")
	v.SetDefault("health.enabled", true)
	v.SetDefault("health.interval", "30s")
	v.SetDefault("query.timeout", "15s")
	v.SetDefault("query.connectTimeout", "10s")
	v.SetDefault("query.schemaCacheTtl", "5m")
	v.SetDefault("triggers.defaultInterval", "1h")
	v.SetDefault("triggers.maxDisplayRows", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
}
