// Package config loads process settings from the environment, with an
// optional .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME" envDefault:"outreach"`

	AMQPURL    string `env:"AMQP_URL"`
	AlertQueue string `env:"ALERT_QUEUE" envDefault:"campaign_alerts"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	Timezone string `env:"SENDING_TIMEZONE" envDefault:"America/Sao_Paulo"`

	Worker  WorkerConfig
	Planner PlannerConfig
	Adapter AdapterConfig

	AIEndpoint string `env:"AI_ENDPOINT"`
	AIToken    string `env:"AI_TOKEN"`
	AWSRegion  string `env:"AWS_REGION" envDefault:"us-east-1"`
}

type WorkerConfig struct {
	TickSchedule     string        `env:"WORKER_TICK_SCHEDULE" envDefault:"@every 1m"`
	BatchSize        int           `env:"WORKER_BATCH_SIZE" envDefault:"5"`
	ClaimTimeout     time.Duration `env:"WORKER_CLAIM_TIMEOUT" envDefault:"10m"`
	BanWindow        time.Duration `env:"WORKER_BAN_WINDOW" envDefault:"1h"`
	ConfigRetryDelay time.Duration `env:"WORKER_CONFIG_RETRY_DELAY" envDefault:"15m"`
}

type PlannerConfig struct {
	ChunkSize  int `env:"PLANNER_CHUNK_SIZE" envDefault:"100"`
	MaxRetries int `env:"DISPATCH_MAX_RETRIES" envDefault:"3"`
}

type AdapterConfig struct {
	Timeout    time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"30s"`
	RatePerSec float64       `env:"ADAPTER_RATE_PER_SEC" envDefault:"1"`
}

// Load reads .env when present, then parses the environment. A missing .env
// is not an error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Worker.BatchSize < 1 {
		return fmt.Errorf("WORKER_BATCH_SIZE must be positive, got %d", c.Worker.BatchSize)
	}
	if c.Planner.ChunkSize < 1 {
		return fmt.Errorf("PLANNER_CHUNK_SIZE must be positive, got %d", c.Planner.ChunkSize)
	}
	if c.Planner.MaxRetries < 0 {
		return fmt.Errorf("DISPATCH_MAX_RETRIES must not be negative, got %d", c.Planner.MaxRetries)
	}
	if c.StoreDriver != "postgres" && c.StoreDriver != "memory" {
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}
	return nil
}

// DSN returns DATABASE_URL, or one assembled from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Location is the timezone the sending window is evaluated in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("SENDING_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
