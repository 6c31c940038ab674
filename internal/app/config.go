package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/kgsummary/internal/data/db"
	"github.com/yungbote/kgsummary/internal/modules/summary/disambiguate"
	"github.com/yungbote/kgsummary/internal/observability"
	kgerrors "github.com/yungbote/kgsummary/internal/pkg/errors"
	"github.com/yungbote/kgsummary/internal/platform/envutil"
	"github.com/yungbote/kgsummary/internal/platform/neo4jdb"
)

type EmbeddingConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	MaxTokens  int           `yaml:"max_tokens"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// RedisAddr enables the shared vector cache behind the in-process LRU.
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	// Store picks the shared tier: "redis" (default) or "qdrant".
	Store            string `yaml:"store"`
	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantTLS        bool   `yaml:"qdrant_tls"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

type QueueConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	Workers     int           `yaml:"workers"`
	Lease       time.Duration `yaml:"lease"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type DisambiguationConfig struct {
	Seed     int64  `yaml:"seed"`
	TieBreak string `yaml:"tie_break"`
}

type Config struct {
	LogMode            string                   `yaml:"log_mode"`
	Postgres           db.PostgresConfig        `yaml:"postgres"`
	Neo4j              neo4jdb.Config           `yaml:"neo4j"`
	Embedding          EmbeddingConfig          `yaml:"embedding"`
	Queue              QueueConfig              `yaml:"queue"`
	CacheSize          int                      `yaml:"cache_size"`
	Disambiguation     DisambiguationConfig     `yaml:"disambiguation"`
	ExcludedNamespaces []string                 `yaml:"excluded_namespaces"`
	MetricsAddr        string                   `yaml:"metrics_addr"`
	Otel               observability.OtelConfig `yaml:"otel"`
}

func DefaultConfig() Config {
	return Config{
		LogMode: "development",
		Postgres: db.PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "wiki",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Neo4j: neo4jdb.Config{
			URI:     "bolt://localhost:7687",
			User:    "neo4j",
			Timeout: 10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:            "text-embedding-3-small",
			MaxTokens:        8000,
			Timeout:          60 * time.Second,
			MaxRetries:       3,
			CacheTTL:         7 * 24 * time.Hour,
			Store:            "redis",
			QdrantPort:       6334,
			QdrantCollection: "kgsummary_embeddings",
		},
		Queue: QueueConfig{
			BatchSize:   200,
			Workers:     8,
			Lease:       30 * time.Minute,
			TaskTimeout: 5 * time.Minute,
			MaxAttempts: 3,
		},
		CacheSize: 1024,
		Disambiguation: DisambiguationConfig{
			TieBreak: disambiguate.TieBreakShuffle,
		},
		Otel: observability.OtelConfig{
			ServiceName: "kgsummary",
			SampleRatio: 0.1,
		},
	}
}

// LoadConfig layers defaults, then the YAML file at path (or CONFIG_FILE), then the
// environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = envutil.String("CONFIG_FILE", "")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)

	cfg.Postgres.Host = envutil.String("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = envutil.String("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = envutil.String("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = envutil.String("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.Name = envutil.String("POSTGRES_NAME", cfg.Postgres.Name)
	cfg.Postgres.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)
	cfg.Postgres.MaxOpenConns = envutil.Int("POSTGRES_MAX_OPEN_CONNS", cfg.Postgres.MaxOpenConns)

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database)
	cfg.Neo4j.Timeout = envutil.Duration("NEO4J_TIMEOUT", cfg.Neo4j.Timeout)
	cfg.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", cfg.Neo4j.MaxPoolSize)

	cfg.Embedding.APIKey = envutil.String("OPENAI_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.Model = envutil.String("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.MaxTokens = envutil.Int("EMBED_MAX_TOKENS", cfg.Embedding.MaxTokens)
	cfg.Embedding.RatePerSec = envutil.Float("EMBED_RATE_PER_SEC", cfg.Embedding.RatePerSec)
	cfg.Embedding.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", cfg.Embedding.MaxRetries)
	cfg.Embedding.RedisAddr = envutil.String("REDIS_ADDR", cfg.Embedding.RedisAddr)
	cfg.Embedding.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.Embedding.RedisPassword)
	cfg.Embedding.CacheTTL = envutil.Duration("EMBED_CACHE_TTL", cfg.Embedding.CacheTTL)
	cfg.Embedding.Store = envutil.String("EMBED_STORE", cfg.Embedding.Store)
	cfg.Embedding.QdrantHost = envutil.String("QDRANT_HOST", cfg.Embedding.QdrantHost)
	cfg.Embedding.QdrantPort = envutil.Int("QDRANT_PORT", cfg.Embedding.QdrantPort)
	cfg.Embedding.QdrantAPIKey = envutil.String("QDRANT_API_KEY", cfg.Embedding.QdrantAPIKey)
	cfg.Embedding.QdrantTLS = envutil.Bool("QDRANT_TLS", cfg.Embedding.QdrantTLS)
	cfg.Embedding.QdrantCollection = envutil.String("QDRANT_COLLECTION", cfg.Embedding.QdrantCollection)

	cfg.Queue.BatchSize = envutil.Int("CLAIM_BATCH_SIZE", cfg.Queue.BatchSize)
	cfg.Queue.Workers = envutil.Int("WORKERS", cfg.Queue.Workers)
	cfg.Queue.Lease = envutil.Duration("CLAIM_LEASE", cfg.Queue.Lease)
	cfg.Queue.TaskTimeout = envutil.Duration("TASK_TIMEOUT", cfg.Queue.TaskTimeout)
	cfg.Queue.MaxAttempts = envutil.Int("MAX_ATTEMPTS", cfg.Queue.MaxAttempts)

	cfg.CacheSize = envutil.Int("CACHE_SIZE", cfg.CacheSize)
	cfg.Disambiguation.Seed = envutil.Int64("DISAMBIGUATION_SEED", cfg.Disambiguation.Seed)
	cfg.Disambiguation.TieBreak = envutil.String("DISAMBIGUATION_TIE_BREAK", cfg.Disambiguation.TieBreak)
	if extra := envutil.List("EXCLUDED_NAMESPACES"); len(extra) > 0 {
		cfg.ExcludedNamespaces = extra
	}
	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Otel.Environment)
	cfg.Otel.Version = envutil.String("OTEL_SERVICE_VERSION", cfg.Otel.Version)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	if h := observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")); len(h) > 0 {
		cfg.Otel.Headers = h
	}
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Otel.SampleRatio)
	cfg.Otel.Stdout = envutil.Bool("OTEL_STDOUT", cfg.Otel.Stdout)
}

func (c Config) Validate() error {
	var problems []string
	if c.Queue.Workers < 1 {
		problems = append(problems, "WORKERS must be at least 1")
	}
	if c.Queue.BatchSize < 1 {
		problems = append(problems, "CLAIM_BATCH_SIZE must be at least 1")
	}
	if c.Queue.Lease < 0 || c.Queue.TaskTimeout < 0 {
		problems = append(problems, "CLAIM_LEASE and TASK_TIMEOUT must not be negative")
	}
	if c.Queue.Lease > 0 && c.Queue.TaskTimeout == 0 {
		problems = append(problems, "TASK_TIMEOUT is required when CLAIM_LEASE is set")
	}
	if c.Queue.Lease > 0 && c.Queue.TaskTimeout > 0 && c.Queue.TaskTimeout >= c.Queue.Lease {
		problems = append(problems, "TASK_TIMEOUT must be shorter than CLAIM_LEASE")
	}
	if c.CacheSize < 1 {
		problems = append(problems, "CACHE_SIZE must be at least 1")
	}
	switch strings.ToLower(c.Disambiguation.TieBreak) {
	case "", disambiguate.TieBreakShuffle, disambiguate.TieBreakLexical:
	default:
		problems = append(problems, fmt.Sprintf("DISAMBIGUATION_TIE_BREAK %q is not shuffle or lexical", c.Disambiguation.TieBreak))
	}
	switch strings.ToLower(c.Embedding.Store) {
	case "", "redis", "qdrant":
	default:
		problems = append(problems, fmt.Sprintf("EMBED_STORE %q is not redis or qdrant", c.Embedding.Store))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", kgerrors.ErrInvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}
