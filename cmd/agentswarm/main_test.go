package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/api"
	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LogConfig
		level zapcore.Level
	}{
		{"debug json", config.LogConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel},
		{"warn console", config.LogConfig{Level: "warn", Format: "console"}, zapcore.WarnLevel},
		{"unknown level", config.LogConfig{Level: "verbose"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := initLogger(tt.cfg)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.level))
			assert.False(t, logger.Core().Enabled(tt.level-1))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9191\nrouter:\n  max_hops: 5\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.HTTPPort)
	assert.Equal(t, 5, cfg.Router.MaxHops)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 70000\n"), 0o600))
	_, err = loadConfig(path)
	assert.Error(t, err)
}

func TestPrintCollections(t *testing.T) {
	built := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	infos := []rag.CollectionInfo{{
		Fingerprint: "abc123", Model: "text-embedding-3-small", Dimensions: 1536, ChunkCount: 12, BuiltAt: built,
	}}

	var table bytes.Buffer
	require.NoError(t, printCollections(&table, infos, false))
	assert.Contains(t, table.String(), "FINGERPRINT")
	assert.Contains(t, table.String(), "abc123")
	assert.Contains(t, table.String(), "2026-03-01T12:00:00Z")

	var raw bytes.Buffer
	require.NoError(t, printCollections(&raw, infos, true))
	var summaries []api.CollectionSummary
	require.NoError(t, json.Unmarshal(raw.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, 12, summaries[0].Chunks)
	assert.Equal(t, 1536, summaries[0].Dimensions)
}

func TestPrintCollections_EmptyJSON(t *testing.T) {
	var raw bytes.Buffer
	require.NoError(t, printCollections(&raw, nil, true))
	assert.JSONEq(t, "[]", raw.String())
}

func TestNeedsRedisAndDatabase(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.False(t, needsRedis(cfg))
	assert.False(t, needsDatabase(cfg))

	cfg.Store.Type = "redis"
	assert.True(t, needsRedis(cfg))

	cfg.Store.Type = "memory"
	cfg.Retrieval.CollectionStore = "sql"
	assert.True(t, needsDatabase(cfg))
	assert.False(t, needsRedis(cfg))
}

func TestRouterConfig(t *testing.T) {
	c := routerConfig(config.DefaultRouterConfig())
	assert.NoError(t, c.Validate())
	assert.Equal(t, "DocumentResponder", c.DefaultResponder)
	assert.Equal(t, 3, c.MaxHops)
}

func TestChatProvider(t *testing.T) {
	c := config.DefaultLLMConfig()
	c.Provider = "deepseek"
	p, err := chatProvider(c, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "deepseek", p.Name())

	c.Provider = "nope"
	_, err = chatProvider(c, zap.NewNop())
	assert.ErrorContains(t, err, "unknown llm provider")
}
