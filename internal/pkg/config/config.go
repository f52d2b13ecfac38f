package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel               string        `env:"LOG_LEVEL" envDefault:"info"`
	KafkaBrokers           []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:29092"`
	InputTopic             string        `env:"INPUT_TOPIC" envDefault:"user-login"`
	EnrichedTopic          string        `env:"ENRICHED_TOPIC" envDefault:"processed-logins"`
	AggregateTopic         string        `env:"AGGREGATE_TOPIC" envDefault:"aggregated-usage"`
	ConsumerGroup          string        `env:"CONSUMER_GROUP" envDefault:"user_login_processor"`
	PollTimeout            time.Duration `env:"POLL_TIMEOUT" envDefault:"1s"`
	CommitInterval         time.Duration `env:"COMMIT_INTERVAL" envDefault:"5s"`
	FlushInterval          time.Duration `env:"FLUSH_INTERVAL" envDefault:"10s"`
	MaxBatchSize           int           `env:"MAX_BATCH_SIZE" envDefault:"500"`
	PublishBufferSize      int           `env:"PUBLISH_BUFFER_SIZE" envDefault:"256"`
	MaxConsecutiveFailures int           `env:"MAX_CONSECUTIVE_FAILURES" envDefault:"5"`
	FetchBackoff           time.Duration `env:"FETCH_BACKOFF" envDefault:"1s"`
	ShutdownGrace          time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
	AdminAddr              string        `env:"ADMIN_ADDR" envDefault:":9091"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
