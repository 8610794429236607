package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the service.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Notify  NotifyConfig  `yaml:"notify"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Logging LoggingConfig `yaml:"logging"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Events   EventsConfig   `yaml:"events"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// EventsConfig selects the event store backend. Rules always live in
// Postgres; the event collection can additionally be served from
// Elasticsearch when activity records are indexed there.
type EventsConfig struct {
	Backend       string              `yaml:"backend"` // postgres | elasticsearch
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

type ElasticsearchConfig struct {
	Addresses     []string `yaml:"addresses"`
	Username      string   `yaml:"username"`
	Password      string   `yaml:"password"`
	Index         string   `yaml:"index"`
	TLSSkipVerify bool     `yaml:"tlsSkipVerify"`
	FetchSize     int      `yaml:"fetchSize"`
}

// NotifyConfig selects the alert sink. The channel names the logical alert
// destination; the publisher resolves the fully qualified subject or topic
// from it plus its own deployment context.
type NotifyConfig struct {
	Backend string      `yaml:"backend"` // nats | kafka | console
	Channel string      `yaml:"channel"`
	NATS    NATSConfig  `yaml:"nats"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	WriteTimeout string   `yaml:"writeTimeout"`
}

func (k KafkaConfig) GetWriteTimeout() time.Duration {
	return parseDurationDefault(k.WriteTimeout, 10*time.Second)
}

type SweepConfig struct {
	// Cron expression triggering sweeps, robfig/cron syntax
	Schedule string `yaml:"schedule"`
	// Max rules evaluated in parallel within one sweep
	Concurrency int `yaml:"concurrency"`
	// Per-rule event fetch timeout
	FetchTimeout string `yaml:"fetchTimeout"`
}

func (s SweepConfig) GetFetchTimeout() time.Duration {
	return parseDurationDefault(s.FetchTimeout, 10*time.Second)
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file and applies defaults and env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Storage.Postgres.DSN == "" {
		c.Storage.Postgres.DSN = "postgres://localhost:5432/vigil"
	}
	if c.Storage.Events.Backend == "" {
		c.Storage.Events.Backend = "postgres"
	}
	if c.Storage.Events.Elasticsearch.Index == "" {
		c.Storage.Events.Elasticsearch.Index = "resource-events"
	}
	if c.Storage.Events.Elasticsearch.FetchSize <= 0 {
		c.Storage.Events.Elasticsearch.FetchSize = 10000
	}
	if c.Notify.Backend == "" {
		c.Notify.Backend = "console"
	}
	if c.Notify.Channel == "" {
		c.Notify.Channel = "resource-anomaly-alerts"
	}
	if c.Notify.NATS.URL == "" {
		c.Notify.NATS.URL = "nats://localhost:4222"
	}
	if len(c.Notify.Kafka.Brokers) == 0 {
		c.Notify.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = "@every 1m"
	}
	if c.Sweep.Concurrency <= 0 {
		c.Sweep.Concurrency = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.applyEnvOverrides()
}

// applyEnvOverrides lets the environment win over file values and defaults.
// LOG_LEVEL is still honored alongside VIGIL_LOG_LEVEL.
func (c *Config) applyEnvOverrides() {
	overrideString(&c.HTTP.Listen, "VIGIL_LISTEN")
	overrideString(&c.Storage.Postgres.DSN, "VIGIL_POSTGRES_DSN")
	overrideString(&c.Notify.NATS.URL, "VIGIL_NATS_URL")
	overrideString(&c.Notify.Channel, "VIGIL_CHANNEL")
	overrideString(&c.Logging.Level, "LOG_LEVEL")
	overrideString(&c.Logging.Level, "VIGIL_LOG_LEVEL")
}

func overrideString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func parseDurationDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
