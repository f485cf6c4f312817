package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "load with defaults (no config file)",
			setup: func() {
				viper.Reset()
			},
			cleanup: func() {},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8080 {
					t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
				}
				if cfg.Database.Host != "localhost" {
					t.Errorf("Database.Host = %s, want localhost", cfg.Database.Host)
				}
				if cfg.Database.Name != "mytube" {
					t.Errorf("Database.Name = %s, want mytube", cfg.Database.Name)
				}
				if cfg.Telemetry.GapSeconds != 10.0 {
					t.Errorf("Telemetry.GapSeconds = %v, want 10.0", cfg.Telemetry.GapSeconds)
				}
				if cfg.Telemetry.EndWindowSeconds != 0.5 {
					t.Errorf("Telemetry.EndWindowSeconds = %v, want 0.5", cfg.Telemetry.EndWindowSeconds)
				}
				if cfg.Telemetry.PendingSeekTTL != 90*time.Second {
					t.Errorf("Telemetry.PendingSeekTTL = %v, want 90s", cfg.Telemetry.PendingSeekTTL)
				}
				if cfg.Retention.Window != 240*time.Hour {
					t.Errorf("Retention.Window = %v, want 240h", cfg.Retention.Window)
				}
				if cfg.RabbitMQ.Enabled {
					t.Error("RabbitMQ.Enabled = true, want false")
				}
				if cfg.Auth.CookieName != "accessToken" {
					t.Errorf("Auth.CookieName = %s, want accessToken", cfg.Auth.CookieName)
				}
			},
		},
		{
			name: "load with environment variables",
			setup: func() {
				viper.Reset()
				viper.SetEnvPrefix("APP")
				viper.AutomaticEnv()
				os.Setenv("APP_SERVER_PORT", "9090")
				os.Setenv("APP_DATABASE_HOST", "testdb")
				os.Setenv("APP_TELEMETRY_GAPSECONDS", "15")
				os.Setenv("APP_RETENTION_WINDOW", "720h")
				// Manually bind env vars since AutomaticEnv doesn't work with nested keys
				viper.BindEnv("server.port", "APP_SERVER_PORT")
				viper.BindEnv("database.host", "APP_DATABASE_HOST")
				viper.BindEnv("telemetry.gapseconds", "APP_TELEMETRY_GAPSECONDS")
				viper.BindEnv("retention.window", "APP_RETENTION_WINDOW")
			},
			cleanup: func() {
				os.Unsetenv("APP_SERVER_PORT")
				os.Unsetenv("APP_DATABASE_HOST")
				os.Unsetenv("APP_TELEMETRY_GAPSECONDS")
				os.Unsetenv("APP_RETENTION_WINDOW")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Database.Host != "testdb" {
					t.Errorf("Database.Host = %s, want testdb", cfg.Database.Host)
				}
				if cfg.Telemetry.GapSeconds != 15.0 {
					t.Errorf("Telemetry.GapSeconds = %v, want 15.0", cfg.Telemetry.GapSeconds)
				}
				if cfg.Retention.Window != 720*time.Hour {
					t.Errorf("Retention.Window = %v, want 720h", cfg.Retention.Window)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			defer func() {
				if tt.cleanup != nil {
					tt.cleanup()
				}
				viper.Reset()
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
