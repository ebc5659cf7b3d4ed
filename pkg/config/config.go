// Package config loads and validates application configuration from
// YAML files with environment-variable overrides. It provides typed
// structs for every subsystem (Server, Postgres, Redis, Kafka, Cache,
// Vault, Resilience, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Cache      CacheConfig      `yaml:"cache"`
	Vault      VaultConfig      `yaml:"vault"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds the protocol listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxFrameBytes   int           `yaml:"maxFrameBytes"`
	MaxConns        int64         `yaml:"maxConns"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker, topic, and consumer-group settings.
type KafkaConfig struct {
	Enabled        bool        `yaml:"enabled"`
	Brokers        []string    `yaml:"brokers"`
	Topics         KafkaTopics `yaml:"topics"`
	AggregateGroup string      `yaml:"aggregateGroup"`
	// InvalidateGroup must be unique per node so every node sees every
	// invalidation; empty means derive one from the hostname.
	InvalidateGroup string `yaml:"invalidateGroup"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Documents  string `yaml:"documents"`
	Invalidate string `yaml:"invalidate"`
}

// CacheConfig controls the read-fill cache in front of the store.
// NegativeTTL of zero disables negative caching entirely.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	TTL         time.Duration `yaml:"ttl"`
	NegativeTTL time.Duration `yaml:"negativeTtl"`
	// FlushOnStart drops every key under KeyPrefix at startup, for
	// booting clean after a change to the cached entry encodings.
	FlushOnStart bool `yaml:"flushOnStart"`
}

// VaultConfig controls document addressing and ingest limits.
type VaultConfig struct {
	Buckets      int `yaml:"buckets"`
	MaxNameChars int `yaml:"maxNameChars"`
	MaxTextBytes int `yaml:"maxTextBytes"`
}

// ResilienceConfig controls retry, timeout, and circuit-breaker
// behaviour for authoritative reads.
type ResilienceConfig struct {
	MaxRetries     int           `yaml:"maxRetries"`
	RetryBaseDelay time.Duration `yaml:"retryBaseDelay"`
	RetryMaxDelay  time.Duration `yaml:"retryMaxDelay"`
	// StoreTimeout bounds a single authoritative read attempt; zero
	// leaves attempts unbounded.
	StoreTimeout     time.Duration `yaml:"storeTimeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerCooldown  time.Duration `yaml:"breakerCooldown"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads a YAML config file (if provided) and applies
// environment-variable overrides. It returns a Config populated with
// sensible defaults for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":7420",
			MaxFrameBytes:   16 << 20,
			MaxConns:        256,
			IdleTimeout:     5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "lexvault",
			User:            "lexvault",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Enabled: true,
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				Documents:  "lexvault.documents",
				Invalidate: "lexvault.invalidate",
			},
			AggregateGroup: "lexvault-aggregate",
		},
		Cache: CacheConfig{
			Enabled:     true,
			KeyPrefix:   "lv:",
			TTL:         10 * time.Minute,
			NegativeTTL: 0,
		},
		Vault: VaultConfig{
			Buckets:      8,
			MaxNameChars: 512,
			MaxTextBytes: 1 << 20,
		},
		Resilience: ResilienceConfig{
			MaxRetries:       3,
			RetryBaseDelay:   50 * time.Millisecond,
			RetryMaxDelay:    2 * time.Second,
			StoreTimeout:     3 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9184",
		},
	}
}

// applyEnvOverrides reads LV_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LV_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LV_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("LV_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("LV_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LV_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LV_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LV_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("LV_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LV_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LV_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LV_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LV_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LV_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LV_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LV_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
