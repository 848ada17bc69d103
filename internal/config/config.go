// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// Config holds every tunable the service consumes. There is no implicit
// process-wide state; constructors receive the values they need.
type Config struct {
	OpenAIAPIKey string

	QdrantHost string
	QdrantPort int

	// RegistryPath is the SQLite file backing the document registry.
	RegistryPath string

	HTTPPort string

	ChunkSize    int
	ChunkOverlap int

	// RetrieverK is the retrieval fan-out per tool call.
	RetrieverK int
	// MaxIterations caps the agent's deciding rounds per query.
	MaxIterations int
	// UpstreamTimeout bounds each embedding or LLM call.
	UpstreamTimeout time.Duration

	LLMModel           string
	EmbeddingModel     string
	EmbeddingDimension int

	MaxUploadBytes int64
}

// Load reads configuration from the environment, loading a .env file
// first when present. Chunking parameters are validated here so a bad
// deployment fails at startup rather than at first upload.
func Load() (*Config, error) {
	// .env is optional; production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		QdrantHost:         getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:         getEnvInt("QDRANT_PORT", 6334),
		RegistryPath:       getEnv("REGISTRY_PATH", "documents.db"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		ChunkSize:          getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 200),
		RetrieverK:         getEnvInt("RETRIEVER_K", 5),
		MaxIterations:      getEnvInt("MAX_ITERATIONS", 10),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 32)) << 20,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as silent
// corruption later (an overlap >= chunk size makes the chunker loop).
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must be non-negative, got %d", domain.ErrInvalidConfiguration, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrieverK <= 0 {
		return fmt.Errorf("%w: retriever k must be positive, got %d", domain.ErrInvalidConfiguration, c.RetrieverK)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", domain.ErrInvalidConfiguration, c.MaxIterations)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d",
			domain.ErrInvalidConfiguration, c.EmbeddingDimension)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
