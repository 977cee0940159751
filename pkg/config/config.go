// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Indexer, Search, Redis, Kafka, Postgres, Analytics, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Flush policies understood by the indexer.
const (
	FlushOnMutation = "mutation"
	FlushInterval   = "interval"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds settings for the local collaborator HTTP API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	// RateLimit is the number of requests each client may make per minute.
	// Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
}

// IndexerConfig controls where the snapshot lives and when it is written.
type IndexerConfig struct {
	DataDir       string        `yaml:"dataDir"`
	FileName      string        `yaml:"fileName"`
	FlushPolicy   string        `yaml:"flushPolicy"`
	FlushInterval time.Duration `yaml:"flushInterval"`
	MaxIDProbes   int           `yaml:"maxIdProbes"`
}

// SnapshotPath returns the full path of the persisted index file.
func (c IndexerConfig) SnapshotPath() string {
	name := c.FileName
	if name == "" {
		name = "search_index.json"
	}
	return filepath.Join(c.DataDir, name)
}

// SearchConfig controls result limits and snippet size.
type SearchConfig struct {
	DefaultLimit  int `yaml:"defaultLimit"`
	MaxResults    int `yaml:"maxResults"`
	SnippetLength int `yaml:"snippetLength"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PageEvents    string `yaml:"pageEvents"`
	IndexComplete string `yaml:"indexComplete"`
}

// PostgresConfig holds PostgreSQL connection parameters for analytics
// snapshots.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// AnalyticsConfig controls how often aggregated search stats are persisted.
type AnalyticsConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for a single-user desktop install.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            7700,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Indexer: IndexerConfig{
			DataDir:       "data",
			FileName:      "search_index.json",
			FlushPolicy:   FlushOnMutation,
			FlushInterval: 5 * time.Second,
			MaxIDProbes:   1024,
		},
		Search: SearchConfig{
			DefaultLimit:  10,
			MaxResults:    100,
			SnippetLength: 200,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "page-index",
			Topics: KafkaTopics{
				PageEvents:    "page-events",
				IndexComplete: "index.complete",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "pageindex",
			User:            "pageindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate checks values that would otherwise fail deep inside the engine.
func (c *Config) Validate() error {
	switch c.Indexer.FlushPolicy {
	case FlushOnMutation:
	case FlushInterval:
		if c.Indexer.FlushInterval <= 0 {
			return fmt.Errorf("indexer.flushInterval must be positive with the %q policy", FlushInterval)
		}
	default:
		return fmt.Errorf("unknown indexer.flushPolicy %q", c.Indexer.FlushPolicy)
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) is below search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Search.SnippetLength <= 0 {
		return fmt.Errorf("search.snippetLength must be positive, got %d", c.Search.SnippetLength)
	}
	if c.Postgres.Enabled && c.Analytics.SnapshotInterval <= 0 {
		return fmt.Errorf("analytics.snapshotInterval must be positive when postgres is enabled")
	}
	return nil
}

// applyEnvOverrides reads PI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PI_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("PI_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("PI_FLUSH_POLICY"); v != "" {
		cfg.Indexer.FlushPolicy = v
	}
	if v := os.Getenv("PI_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.FlushInterval = d
		}
	}
	if v := os.Getenv("PI_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("PI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PI_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("PI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PI_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("PI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
