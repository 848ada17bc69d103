package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

func validConfig() *Config {
	return &Config{
		QdrantHost:         "localhost",
		QdrantPort:         6334,
		RegistryPath:       "documents.db",
		HTTPPort:           "8080",
		ChunkSize:          1000,
		ChunkOverlap:       200,
		RetrieverK:         5,
		MaxIterations:      10,
		UpstreamTimeout:    time.Minute,
		LLMModel:           "gpt-4o",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 1536,
	}
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"overlap exceeds size", func(c *Config) { c.ChunkOverlap = c.ChunkSize + 1 }},
		{"zero retriever k", func(c *Config) { c.RetrieverK = 0 }},
		{"zero max iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"zero embedding dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("RETRIEVER_K", "3")
	t.Setenv("UPSTREAM_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.RetrieverK)
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
}

func TestLoad_RejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfiguration))
}
