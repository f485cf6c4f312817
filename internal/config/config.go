// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the telemetry backend.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
	Retention RetentionConfig
	Geo       GeoConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// RabbitMQConfig contains the analytics fan-out exchange configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Host       string
	User       string
	Password   string
	Exchange   string
	Queue      string
	RoutingKey string
	Port       int
	Enabled    bool
}

// RedisConfig points at the optional shared session-state store. When the
// URL is empty the in-memory store is used instead.
type RedisConfig struct {
	URL string
}

// AuthConfig contains JWT verification configuration.
type AuthConfig struct {
	AccessTokenSecret string
	CookieName        string
}

// TelemetryConfig contains reconciliation thresholds and batch limits.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type TelemetryConfig struct {
	MaxBatchSize       int
	EndWindowSeconds   float64
	GapSeconds         float64
	ColdStartSeconds   float64
	PendingSeekTTL     time.Duration
	GuestPositionLimit int
}

// RetentionConfig controls expiry of the raw telemetry event log.
type RetentionConfig struct {
	Window        time.Duration
	SweepInterval time.Duration
	SweepBatch    int
}

// GeoConfig contains the IP country lookup client configuration.
type GeoConfig struct {
	BaseURL string
	Timeout time.Duration
	Enabled bool
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "mytube")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.minconnections", 5)
	viper.SetDefault("database.maxidletime", 30*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "mytube.telemetry")
	viper.SetDefault("rabbitmq.queue", "mytube.telemetry.raw")
	viper.SetDefault("rabbitmq.routingkey", "telemetry.batch")

	// Redis (session state store; empty = in-memory)
	viper.SetDefault("redis.url", "")

	// Auth
	viper.SetDefault("auth.accesstokensecret", "")
	viper.SetDefault("auth.cookiename", "accessToken")

	// Telemetry
	viper.SetDefault("telemetry.maxbatchsize", 500)
	viper.SetDefault("telemetry.endwindowseconds", 0.5)
	viper.SetDefault("telemetry.gapseconds", 10.0)
	viper.SetDefault("telemetry.coldstartseconds", 10.0)
	viper.SetDefault("telemetry.pendingseekttl", 90*time.Second)
	viper.SetDefault("telemetry.guestpositionlimit", 100)

	// Retention (raw event log kept 10 days, as in the original schema)
	viper.SetDefault("retention.window", 240*time.Hour)
	viper.SetDefault("retention.sweepinterval", 1*time.Hour)
	viper.SetDefault("retention.sweepbatch", 10000)

	// Geo
	viper.SetDefault("geo.enabled", false)
	viper.SetDefault("geo.baseurl", "http://ip-api.com/json")
	viper.SetDefault("geo.timeout", 2*time.Second)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
