// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "DocumentResponder", cfg.Router.DefaultResponder)
	assert.Equal(t, 7, cfg.Retrieval.MaxResults)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

router:
  max_hops: 5
  initial_policy: "reclassify"
  turn_timeout: 20s

store:
  type: "redis"
  key_prefix: "test:"

retrieval:
  similarity_threshold: 0.7
  collection_store: "sql"

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, 5, cfg.Router.MaxHops)
	assert.Equal(t, "reclassify", cfg.Router.InitialPolicy)
	assert.Equal(t, 20*time.Second, cfg.Router.TurnTimeout)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "DocumentResponder", cfg.Router.DefaultResponder)

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "test:", cfg.Store.KeyPrefix)
	assert.Equal(t, 0.7, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, "sql", cfg.Retrieval.CollectionStore)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTSWARM_SERVER_HTTP_PORT", "7777")
	t.Setenv("AGENTSWARM_ROUTER_MAX_HOPS", "2")
	t.Setenv("AGENTSWARM_ROUTER_TURN_TIMEOUT", "45s")
	t.Setenv("AGENTSWARM_RETRIEVAL_SIMILARITY_THRESHOLD", "0.65")
	t.Setenv("AGENTSWARM_SEARCH_INCLUDE_ANSWER", "false")
	t.Setenv("AGENTSWARM_REDIS_ADDR", "env-redis:6379")
	t.Setenv("AGENTSWARM_LOG_OUTPUT_PATHS", "stdout, /tmp/swarm.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 2, cfg.Router.MaxHops)
	assert.Equal(t, 45*time.Second, cfg.Router.TurnTimeout)
	assert.Equal(t, 0.65, cfg.Retrieval.SimilarityThreshold)
	assert.False(t, cfg.Search.IncludeAnswer)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"stdout", "/tmp/swarm.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
llm:
  model: "yaml-model"
  base_url: "http://yaml"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("AGENTSWARM_SERVER_HTTP_PORT", "9999")
	t.Setenv("AGENTSWARM_LLM_MODEL", "env-model")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, "http://yaml", cfg.LLM.BaseURL)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	t.Setenv("MYAPP_ROUTER_DEFAULT_RESPONDER", "SearchResponder")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "SearchResponder", cfg.Router.DefaultResponder)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTSWARM_ROUTER_TURN_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("AGENTSWARM_SERVER_HTTP_PORT", "80")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error {
			if cfg.Server.HTTPPort < 1024 {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "invalid HTTP port", modify: func(c *Config) { c.Server.HTTPPort = 70000 }, wantErr: true},
		{name: "negative max hops", modify: func(c *Config) { c.Router.MaxHops = -1 }, wantErr: true},
		{name: "zero max hops is allowed", modify: func(c *Config) { c.Router.MaxHops = 0 }},
		{name: "unknown policy", modify: func(c *Config) { c.Router.InitialPolicy = "random" }, wantErr: true},
		{name: "missing default responder", modify: func(c *Config) { c.Router.DefaultResponder = "" }, wantErr: true},
		{name: "zero turn timeout", modify: func(c *Config) { c.Router.TurnTimeout = 0 }, wantErr: true},
		{name: "unknown store", modify: func(c *Config) { c.Store.Type = "mongo" }, wantErr: true},
		{name: "threshold out of range", modify: func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }, wantErr: true},
		{name: "overlap too large", modify: func(c *Config) { c.Retrieval.ChunkOverlap = 512 }, wantErr: true},
		{name: "temperature too high", modify: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: true},
		{name: "missing llm provider", modify: func(c *Config) { c.LLM.Provider = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver: "postgres", Host: "localhost", Port: 5432,
				User: "user", Password: "pass", Name: "dbname", SSLMode: "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				User: "user", Password: "pass", Name: "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8181\n"), 0644))

	cfg := MustLoad(configPath)
	assert.Equal(t, 8181, cfg.Server.HTTPPort)

	badPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("server: [\n"), 0644))
	assert.Panics(t, func() { MustLoad(badPath) })
}
