// =============================================================================
// 📦 agentswarm 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Router:    DefaultRouterConfig(),
		Store:     DefaultStoreConfig(),
		Retrieval: DefaultRetrievalConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		LLM:       DefaultLLMConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Search:    DefaultSearchConfig(),
		Retry:     DefaultRetryConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultRouterConfig 返回默认路由配置
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		MaxHops:          3,
		TurnTimeout:      60 * time.Second,
		DefaultResponder: "DocumentResponder",
		InitialPolicy:    "resume",
		MinConfidence:    0.34,
		HistoryTurns:     6,
	}
}

// DefaultStoreConfig 返回默认会话存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      "file",
		BaseDir:   "./data/conversations",
		KeyPrefix: "agentswarm:",
	}
}

// DefaultRetrievalConfig 返回默认检索配置
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DocumentPath:        "./data/curriculum.md",
		MaxResults:          7,
		SimilarityThreshold: 0.5,
		ChunkSize:           512,
		ChunkOverlap:        102,
		MinChunkSize:        50,
		EmbedBatchSize:      32,
		LockTTL:             2 * time.Minute,
		LockPoll:            200 * time.Millisecond,
		CollectionStore:     "file",
		CollectionDir:       "./data/collections",
		Tokenizer:           "estimator",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:                "localhost:6379",
		Password:            "",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		MaxRetries:          3,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "agentswarm",
		Password:        "",
		Name:            "agentswarm",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "openai",
		BaseURL:     "",
		APIKey:      "",
		Model:       "",
		Temperature: 0.2,
		Timeout:     2 * time.Minute,
		MaxRetries:  2,
	}
}

// DefaultEmbeddingConfig 返回默认向量模型配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:    "https://api.openai.com",
		APIKey:     "",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    60 * time.Second,
	}
}

// DefaultSearchConfig 返回默认搜索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		BaseURL:       "https://api.tavily.com",
		APIKey:        "",
		MaxResults:    5,
		SearchDepth:   "advanced",
		IncludeAnswer: true,
		Timeout:       30 * time.Second,
		RPS:           5,
	}
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentswarm",
		SampleRate:   0.1,
	}
}
