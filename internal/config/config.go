package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/coursebook/pkg/config"
	"frameworks/coursebook/pkg/llm"
)

// Config stores environment configuration for the coursebook service.
type Config struct {
	Port        string
	DatabaseURL string

	LLM                 llm.Config
	Embedding           llm.Config
	EmbeddingDimensions int
	EmbeddingCacheTTL   time.Duration

	ChunkSize         int
	ChunkOverlap      int
	MaxResults        int
	MaxHistory        int
	MaxToolRounds     int
	MinNameSimilarity float64

	RedisURL        string
	RedisMode       string
	RedisAddrs      []string
	RedisMasterName string
	RedisPassword   string
	SessionTTL      time.Duration

	KafkaBrokers   []string
	KafkaTopic     string
	KafkaClusterID string

	DocsDir       string
	IngestOnStart bool
	QueryTimeout  time.Duration
}

var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-20250514",
	"openai":    "gpt-4o-mini",
	"ollama":    "llama3.1",
}

// LoadConfig reads the service configuration from environment variables.
func LoadConfig() Config {
	generation := llm.LoadConfig()
	if generation.Model == "" {
		generation.Model = defaultModels[strings.ToLower(generation.Provider)]
	}

	embedding := llm.LoadEmbeddingConfig()
	embedding.Provider = config.GetEnv("EMBEDDING_PROVIDER", "local")
	if strings.EqualFold(embedding.Provider, "local") {
		embedding.Model = ""
	}

	return Config{
		Port:                config.GetEnv("PORT", "8000"),
		DatabaseURL:         config.GetEnv("DATABASE_URL", ""),
		LLM:                 generation,
		Embedding:           embedding,
		EmbeddingDimensions: config.GetEnvInt("EMBEDDING_DIMENSIONS", 384),
		EmbeddingCacheTTL:   config.GetEnvDuration("EMBEDDING_CACHE_TTL", 10*time.Minute),
		ChunkSize:           config.GetEnvInt("CHUNK_SIZE", 800),
		ChunkOverlap:        config.GetEnvInt("CHUNK_OVERLAP", 100),
		MaxResults:          config.GetEnvInt("MAX_RESULTS", 5),
		MaxHistory:          config.GetEnvInt("MAX_HISTORY", 2),
		MaxToolRounds:       config.GetEnvInt("MAX_TOOL_ROUNDS", 2),
		MinNameSimilarity:   config.GetEnvFloat("MIN_NAME_SIMILARITY", 0),
		RedisURL:            config.GetEnv("REDIS_URL", ""),
		RedisMode:           config.GetEnv("REDIS_MODE", "single"),
		RedisAddrs:          config.GetEnvList("REDIS_ADDRS"),
		RedisMasterName:     config.GetEnv("REDIS_MASTER_NAME", ""),
		RedisPassword:       config.GetEnv("REDIS_PASSWORD", ""),
		SessionTTL:          config.GetEnvDuration("SESSION_TTL", 24*time.Hour),
		KafkaBrokers:        config.GetEnvList("KAFKA_BROKERS"),
		KafkaTopic:          config.GetEnv("KAFKA_TOPIC", "coursebook.queries"),
		KafkaClusterID:      config.GetEnv("KAFKA_CLUSTER_ID", "local"),
		DocsDir:             config.GetEnv("DOCS_DIR", "../docs"),
		IngestOnStart:       config.GetEnvBool("INGEST_ON_START", true),
		QueryTimeout:        config.GetEnvDuration("QUERY_TIMEOUT", 90*time.Second),
	}
}

// Validate rejects settings that would make ingestion or retrieval misbehave.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("MAX_RESULTS must be positive, got %d", c.MaxResults))
	}
	if c.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("MAX_HISTORY must not be negative, got %d", c.MaxHistory))
	}
	if c.MaxToolRounds <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOOL_ROUNDS must be positive, got %d", c.MaxToolRounds))
	}
	if c.MinNameSimilarity < 0 || c.MinNameSimilarity > 1 {
		errs = append(errs, fmt.Errorf("MIN_NAME_SIMILARITY must be in [0, 1], got %v", c.MinNameSimilarity))
	}
	if c.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions))
	}
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("LLM_MODEL is required for this provider"))
	}
	return errors.Join(errs...)
}

// UsesLocalEmbeddings reports whether embeddings are computed in-process.
func (c Config) UsesLocalEmbeddings() bool {
	return strings.EqualFold(c.Embedding.Provider, "local")
}
