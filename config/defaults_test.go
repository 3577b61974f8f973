package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotEqual(t, ServerConfig{}, cfg.Server)
	assert.NotEqual(t, RouterConfig{}, cfg.Router)
	assert.NotEqual(t, StoreConfig{}, cfg.Store)
	assert.NotEqual(t, RetrievalConfig{}, cfg.Retrieval)
	assert.NotEqual(t, RedisConfig{}, cfg.Redis)
	assert.NotEqual(t, DatabaseConfig{}, cfg.Database)
	assert.NotEqual(t, LLMConfig{}, cfg.LLM)
	assert.NotEqual(t, EmbeddingConfig{}, cfg.Embedding)
	assert.NotEqual(t, SearchConfig{}, cfg.Search)
	assert.NotEqual(t, RetryConfig{}, cfg.Retry)
	assert.NotEqual(t, TelemetryConfig{}, cfg.Telemetry)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	assert.Equal(t, 3, cfg.MaxHops)
	assert.Equal(t, "resume", cfg.InitialPolicy)
	assert.Equal(t, "DocumentResponder", cfg.DefaultResponder)
	assert.Equal(t, 60*time.Second, cfg.TurnTimeout)
}

func TestDefaultRetrievalConfig(t *testing.T) {
	cfg := DefaultRetrievalConfig()
	assert.Equal(t, 7, cfg.MaxResults)
	assert.Equal(t, 0.5, cfg.SimilarityThreshold)
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 102, cfg.ChunkOverlap)
	assert.Equal(t, "estimator", cfg.Tokenizer)
}

func TestDefaultSearchConfig(t *testing.T) {
	cfg := DefaultSearchConfig()
	assert.Equal(t, 5, cfg.MaxResults)
	assert.Equal(t, "advanced", cfg.SearchDepth)
	assert.True(t, cfg.IncludeAnswer)
}
