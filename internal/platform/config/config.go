package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"fieldops"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// DatabaseDSN is a postgres DSN, or "sqlite:<path>" for a local file.
	// Empty keeps everything in memory.
	DatabaseDSN   string `env:"DATABASE_DSN"`
	DatabaseDebug bool   `env:"DATABASE_DEBUG" envDefault:"false"`
	AutoMigrate   bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`

	// RedisURL enables the distributed worker lock. Empty uses a process-local lock.
	RedisURL string `env:"REDIS_URL"`
	// AMQPURL enables the RabbitMQ publisher. Empty uses the in-process bus.
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"fieldops.events"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Timezone decides which calendar day is "today".
	Timezone       string `env:"FIELDOPS_TIMEZONE" envDefault:"UTC"`
	ConflictPolicy string `env:"CONFLICT_POLICY" envDefault:"same_day"`
	SweepOnRequest bool   `env:"SWEEP_ON_REQUEST" envDefault:"true"`

	SweepInterval          time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	PositionSampleInterval time.Duration `env:"POSITION_SAMPLE_INTERVAL" envDefault:"5m"`
	OutboxRelayInterval    time.Duration `env:"OUTBOX_RELAY_INTERVAL" envDefault:"5s"`
	OutboxBatchSize        int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	WorkerLockTTL          time.Duration `env:"WORKER_LOCK_TTL" envDefault:"1m"`

	EnableExpirySweep      bool   `env:"ENABLE_EXPIRY_SWEEP" envDefault:"true"`
	EnablePositionSampler  bool   `env:"ENABLE_POSITION_SAMPLER" envDefault:"true"`
	EnableOutboxRelay      bool   `env:"ENABLE_OUTBOX_RELAY" envDefault:"true"`
	EnableFeedbackConsumer bool   `env:"ENABLE_FEEDBACK_CONSUMER" envDefault:"true"`
	FeedbackConsumerGroup  string `env:"FEEDBACK_CONSUMER_GROUP" envDefault:"activation-service-feedback-issued-cg"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid FIELDOPS_TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.SweepInterval <= 0 || c.PositionSampleInterval <= 0 || c.OutboxRelayInterval <= 0 {
		return errors.New("worker intervals must be positive")
	}
	return nil
}

// Location resolves Timezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	location, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return location
}
