package bootstrap

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	busconfig "github.com/nsridhar76/go-orderflow/internal/eventbus/config"
)

// Config holds the Notification service's runtime configuration.
type Config struct {
	ServiceID string
	GRPCPort  int

	DatabaseURL string
	AMQPURL     string

	Prefetch   int
	MaxRetries int

	BreakerEnabled           bool
	BreakerFailurePercentage float64
	BreakerVolumeThreshold   int
	BreakerResetSeconds      time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		AMQPURL     string `yaml:"amqp_url"`
	} `yaml:"dependencies"`
}

// LoadConfig reads an optional YAML file at path, then applies
// environment-variable overrides on top of it.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                "notification-service",
		GRPCPort:                 9092,
		Prefetch:                 1,
		MaxRetries:               3,
		BreakerEnabled:           true,
		BreakerFailurePercentage: 0.5,
		BreakerVolumeThreshold:   5,
		BreakerResetSeconds:      30 * time.Second,
	}

	if path != "" {
		if raw, err := os.ReadFile(path); err == nil {
			var f configFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
			if f.Service.ID != "" {
				cfg.ServiceID = f.Service.ID
			}
			if f.Service.GRPCPort > 0 {
				cfg.GRPCPort = f.Service.GRPCPort
			}
			if f.Dependencies.PostgresURL != "" {
				cfg.DatabaseURL = f.Dependencies.PostgresURL
			}
			if f.Dependencies.AMQPURL != "" {
				cfg.AMQPURL = f.Dependencies.AMQPURL
			}
		}
	}

	cfg.ServiceID = busconfig.StringOr("SERVICE_ID", cfg.ServiceID)
	cfg.GRPCPort = busconfig.IntOr("GRPC_PORT", cfg.GRPCPort)
	cfg.DatabaseURL = busconfig.StringOr("DATABASE_URL", cfg.DatabaseURL)
	cfg.AMQPURL = busconfig.StringOr("AMQP_URL", cfg.AMQPURL)
	cfg.Prefetch = busconfig.IntOr("PREFETCH", cfg.Prefetch)
	cfg.MaxRetries = busconfig.IntOr("MAX_RETRIES", cfg.MaxRetries)
	cfg.BreakerEnabled = busconfig.BoolOr("BREAKER_ENABLED", cfg.BreakerEnabled)
	cfg.BreakerFailurePercentage = busconfig.FloatOr("BREAKER_FAILURE_PERCENTAGE", cfg.BreakerFailurePercentage)
	cfg.BreakerVolumeThreshold = busconfig.IntOr("BREAKER_VOLUME_THRESHOLD", cfg.BreakerVolumeThreshold)
	cfg.BreakerResetSeconds = busconfig.DurationSecondsOr("BREAKER_RESET_SECONDS", cfg.BreakerResetSeconds)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DATABASE_URL")
	}
	if cfg.AMQPURL == "" {
		return Config{}, fmt.Errorf("missing AMQP_URL")
	}
	return cfg, nil
}
