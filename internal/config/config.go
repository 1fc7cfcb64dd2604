package config

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "BOREDAPI"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL              string        `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns         int32         `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseStatementTimeout time.Duration `envconfig:"DATABASE_STATEMENT_TIMEOUT" default:"60s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"boredapi-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	SnapshotDir string `envconfig:"SNAPSHOT_DIR" default:"./data/snapshots"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	EmbeddingProvider  string        `envconfig:"EMBEDDING_PROVIDER" default:"hash"`
	EmbeddingModel     string        `envconfig:"EMBEDDING_MODEL"`
	EmbeddingBaseURL   string        `envconfig:"EMBEDDING_BASE_URL"`
	OpenAIAPIKey       string        `envconfig:"OPENAI_API_KEY"`
	EmbeddingTimeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"5s"`
	EmbeddingRateLimit float64       `envconfig:"EMBEDDING_RATE_LIMIT" default:"0"`
	EmbeddingCacheSize int           `envconfig:"EMBEDDING_CACHE_SIZE" default:"1000"`

	ChunkMaxTokens int `envconfig:"CHUNK_MAX_TOKENS" default:"512"`
	ChunkMaxChunks int `envconfig:"CHUNK_MAX_CHUNKS" default:"5"`

	SearchTimeout time.Duration `envconfig:"SEARCH_TIMEOUT" default:"3s"`
	VectorTimeout time.Duration `envconfig:"VECTOR_TIMEOUT" default:"1s"`
	LexicalWeight float64       `envconfig:"LEXICAL_WEIGHT" default:"0.5"`
	VectorWeight  float64       `envconfig:"VECTOR_WEIGHT" default:"0.5"`

	IngestWorkers      int           `envconfig:"INGEST_WORKERS" default:"4"`
	IngestMaxBodyBytes int64         `envconfig:"INGEST_MAX_BODY_BYTES" default:"33554432"`
	ReembedInterval    time.Duration `envconfig:"REEMBED_INTERVAL" default:"30s"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.LexicalWeight < 0 || c.VectorWeight < 0 {
		return fmt.Errorf("%s_LEXICAL_WEIGHT and %s_VECTOR_WEIGHT must be non-negative", envPrefix, envPrefix)
	}
	if math.Abs(c.LexicalWeight+c.VectorWeight-1) > 1e-6 {
		return fmt.Errorf("%s_LEXICAL_WEIGHT and %s_VECTOR_WEIGHT must sum to 1, got %g", envPrefix, envPrefix, c.LexicalWeight+c.VectorWeight)
	}
	if c.SearchTimeout <= 0 || c.VectorTimeout <= 0 {
		return fmt.Errorf("search and vector timeouts must be positive")
	}
	if c.VectorTimeout > c.SearchTimeout {
		return fmt.Errorf("%s_VECTOR_TIMEOUT (%s) exceeds %s_SEARCH_TIMEOUT (%s)", envPrefix, c.VectorTimeout, envPrefix, c.SearchTimeout)
	}
	if c.ChunkMaxTokens <= 0 || c.ChunkMaxChunks <= 0 {
		return fmt.Errorf("chunk limits must be positive")
	}
	if strings.EqualFold(c.EmbeddingProvider, "openai") && !c.HasOpenAI() {
		return fmt.Errorf("%s_OPENAI_API_KEY is required for the openai embedding provider", envPrefix)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("%s_INGEST_WORKERS must be positive", envPrefix)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
