package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Service holds the settings shared by every service binary. Service-specific
// structs embed it.
type Service struct {
	Name               string        `env:"SERVICE_NAME"`
	Port               string        `env:"PORT"`
	GRPCPort           string        `env:"GRPC_PORT"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL        string        `env:"DATABASE_URL,required"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START" envDefault:"true"`
	KafkaBrokers       string        `env:"KAFKA_BROKERS"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	AuthHS256Secret    string        `env:"AUTH_HS256_SECRET"`
	AuthJWKSURL        string        `env:"AUTH_JWKS_URL"`
	AuthIssuer         string        `env:"AUTH_ISSUER"`
}

// Load parses the process environment into cfg. defaults supplies values for
// keys that are unset or empty, so each binary can pick its own name and ports.
func Load(cfg any, defaults map[string]string) error {
	environ := make(map[string]string, len(defaults))
	for k, v := range defaults {
		environ[k] = v
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		environ[k] = v
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Validate checks the shared settings after Load.
func (s Service) Validate() error {
	if err := Port("PORT", s.Port); err != nil {
		return err
	}
	if s.GRPCPort != "" {
		if err := Port("GRPC_PORT", s.GRPCPort); err != nil {
			return err
		}
	}
	if s.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive (got %d)", s.OutboxBatchSize)
	}
	return nil
}

func Port(key, v string) error {
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return nil
}
