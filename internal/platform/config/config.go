package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"voteledger"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`

	DatabaseDriver      string `env:"DATABASE_DRIVER" envDefault:"memory"`
	PostgresDSN         string `env:"POSTGRES_DSN"`
	SQLitePath          string `env:"SQLITE_PATH" envDefault:"voteledger.db"`
	DatabaseAutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	RabbitMQURL  string   `env:"RABBITMQ_URL"`
	RedisAddr    string   `env:"REDIS_ADDR"`

	OutboxPollInterval        time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize           int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	EnableScoreboardProjector bool          `env:"ENABLE_SCOREBOARD_PROJECTOR" envDefault:"true"`

	LedgerAdmin string `env:"LEDGER_ADMIN"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver-specific requirements.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when DATABASE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}

func (c *Config) normalize() {
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.PostgresDSN = strings.TrimSpace(c.PostgresDSN)
	c.RabbitMQURL = strings.TrimSpace(c.RabbitMQURL)
	c.RedisAddr = strings.TrimSpace(c.RedisAddr)
	c.LedgerAdmin = strings.TrimSpace(c.LedgerAdmin)

	brokers := make([]string, 0, len(c.KafkaBrokers))
	for _, value := range c.KafkaBrokers {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	c.KafkaBrokers = brokers
}
