package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	AppHost  string `env:"APP_HOST" envDefault:"0.0.0.0" validate:"required"`
	AppPort  string `env:"APP_PORT" envDefault:"8080" validate:"required"`
	AppDebug bool   `env:"APP_DEBUG" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// EncryptionKey is a base64-encoded 32-byte AES-256-GCM key used to
	// seal every stored Connection password and DSN.
	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required"`

	// SchedulerTimezone is the default timezone applied to a Job whose
	// Timezone field is unset — not a process-wide override.
	SchedulerTimezone string `env:"SCHEDULER_TIMEZONE" envDefault:"Asia/Shanghai" validate:"required"`

	MaxWorkers         int `env:"MAX_WORKERS" envDefault:"20" validate:"min=1,max=500"`
	DispatchIntervalSec int `env:"DISPATCH_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=300"`

	InsertBatchSize       int `env:"INSERT_BATCH_SIZE" envDefault:"1000" validate:"min=1"`
	CopyBatchSize         int `env:"COPY_BATCH_SIZE" envDefault:"50000" validate:"min=1"`
	CopySelectorThreshold int `env:"COPY_SELECTOR_THRESHOLD" envDefault:"100000" validate:"min=0"`
	CopyTimeoutSec        int `env:"COPY_TIMEOUT_SEC" envDefault:"300" validate:"min=0"`

	ProgressHeartbeatSec int `env:"PROGRESS_HEARTBEAT_SEC" envDefault:"30" validate:"min=1"`
	StatusCleanupDays    int `env:"STATUS_CLEANUP_DAYS" envDefault:"30" validate:"min=1"`

	// AuthTokenSecret is the HS256 secret for the thin HTTP surface's
	// static bearer-token auth middleware.
	AuthTokenSecret string `env:"AUTH_TOKEN_SECRET,required" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
