package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BaSui01/agentswarm/agent/persistence"
	"github.com/BaSui01/agentswarm/agent/responders"
	"github.com/BaSui01/agentswarm/agent/swarm"
	"github.com/BaSui01/agentswarm/config"
	"github.com/BaSui01/agentswarm/internal/cache"
	"github.com/BaSui01/agentswarm/internal/database"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/llm/embedding"
	"github.com/BaSui01/agentswarm/llm/providers"
	"github.com/BaSui01/agentswarm/llm/providers/openaicompat"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/llm/tokenizer"
	"github.com/BaSui01/agentswarm/llm/tools"
	"github.com/BaSui01/agentswarm/rag"

	"go.uber.org/zap"
)

// =============================================================================
// 🧩 依赖装配
// =============================================================================

// app 持有一次进程运行所需的全部组件，Close 释放共享连接
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector

	redis *cache.Manager
	db    *database.PoolManager

	store persistence.ConversationStore
	cache *rag.Cache

	llm    llm.Provider
	search tools.WebSearchProvider

	fingerprint string
}

// newApp 打开配置所需的连接与存储；模型与搜索客户端在 router 中按需创建
func newApp(cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewCollector("agentswarm", logger),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if needsRedis(cfg) {
		a.redis, err = cache.NewManager(cache.Config{
			Addr:                cfg.Redis.Addr,
			Password:            cfg.Redis.Password,
			DB:                  cfg.Redis.DB,
			MaxRetries:          cfg.Redis.MaxRetries,
			PoolSize:            cfg.Redis.PoolSize,
			MinIdleConns:        cfg.Redis.MinIdleConns,
			HealthCheckInterval: cfg.Redis.HealthCheckInterval,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	if needsDatabase(cfg) {
		pool := database.DefaultPoolConfig()
		if cfg.Database.MaxOpenConns > 0 {
			pool.MaxOpenConns = cfg.Database.MaxOpenConns
		}
		if cfg.Database.MaxIdleConns > 0 {
			pool.MaxIdleConns = cfg.Database.MaxIdleConns
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			pool.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
		}
		a.db, err = database.Open(cfg.Database.Driver, cfg.Database.DSN(), pool, logger)
		if err != nil {
			return nil, err
		}
	}

	storeCfg := persistence.DefaultStoreConfig()
	storeCfg.Type = persistence.StoreType(cfg.Store.Type)
	storeCfg.BaseDir = cfg.Store.BaseDir
	storeCfg.KeyPrefix = cfg.Store.KeyPrefix
	a.store, err = persistence.NewConversationStore(storeCfg, persistence.Dependencies{
		Redis:  a.redis,
		DB:     a.db,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	logger.Info("conversation store opened", zap.String("type", cfg.Store.Type))

	collections, err := rag.NewCollectionStore(rag.StoreOptions{
		Type:      rag.StoreType(cfg.Retrieval.CollectionStore),
		Dir:       cfg.Retrieval.CollectionDir,
		KeyPrefix: cfg.Store.KeyPrefix,
		Redis:     a.redis,
		DB:        a.db,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open collection store: %w", err)
	}

	tk, err := tokenizer.New(cfg.Retrieval.Tokenizer, cfg.Embedding.Model)
	if err != nil {
		return nil, err
	}

	var locker rag.BuildLocker = rag.NewLocalLocker()
	if a.redis != nil {
		locker = rag.NewRedisLocker(a.redis, cfg.Store.KeyPrefix, cfg.Retrieval.LockTTL, cfg.Retrieval.LockPoll, logger)
	}

	cacheCfg := rag.DefaultCacheConfig()
	if cfg.Retrieval.EmbedBatchSize > 0 {
		cacheCfg.EmbedBatchSize = cfg.Retrieval.EmbedBatchSize
	}

	embedder := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})

	a.cache = rag.NewCache(collections, embedder, logger,
		rag.WithLocker(locker),
		rag.WithChunker(rag.NewDocumentChunker(rag.ChunkingConfig{
			ChunkSize:    cfg.Retrieval.ChunkSize,
			ChunkOverlap: cfg.Retrieval.ChunkOverlap,
			MinChunkSize: cfg.Retrieval.MinChunkSize,
		}, tk, logger)),
		rag.WithRetryer(retry.NewBackoffRetryer(retryPolicy(cfg.Retry, cfg.Retry.MaxRetries), logger)),
		rag.WithCacheConfig(cacheCfg),
		rag.WithMetrics(a.metrics),
	)
	return a, nil
}

// ensureDocument 保证配置的文档已构建为检索集合并记录其指纹
func (a *app) ensureDocument(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(a.cfg.Retrieval.DocumentPath)
	if err != nil {
		return false, fmt.Errorf("read document %s: %w", a.cfg.Retrieval.DocumentPath, err)
	}
	fp, built, err := a.cache.EnsureDocument(ctx, data)
	if err != nil {
		return false, err
	}
	a.fingerprint = fp
	return built, nil
}

// router 组装应答者注册表与路由器，须在 ensureDocument 之后调用
func (a *app) router() (*swarm.Router, error) {
	if a.fingerprint == "" {
		return nil, errors.New("document collection has not been ensured")
	}
	if a.llm == nil {
		chat, err := chatProvider(a.cfg.LLM, a.logger)
		if err != nil {
			return nil, err
		}
		a.llm = llm.Instrument(chat, a.metrics)
	}
	if a.search == nil {
		a.search = tools.NewTavilyProvider(tools.TavilyConfig{
			BaseURL: a.cfg.Search.BaseURL,
			APIKey:  a.cfg.Search.APIKey,
			DefaultOpts: tools.WebSearchOptions{
				MaxResults:    a.cfg.Search.MaxResults,
				SearchDepth:   a.cfg.Search.SearchDepth,
				IncludeAnswer: a.cfg.Search.IncludeAnswer,
			},
			Timeout: a.cfg.Search.Timeout,
			RPS:     a.cfg.Search.RPS,
		}, a.logger)
	}

	registry, err := responders.NewRegistry(responders.Deps{
		LLM:         a.llm,
		Retryer:     retry.NewBackoffRetryer(retryPolicy(a.cfg.Retry, a.cfg.LLM.MaxRetries), a.logger),
		Model:       a.cfg.LLM.Model,
		Temperature: float32(a.cfg.LLM.Temperature),
		Logger:      a.logger,
		Retriever:   a.cache,
		Fingerprint: a.fingerprint,
		MaxResults:  a.cfg.Retrieval.MaxResults,
		Threshold:   a.cfg.Retrieval.SimilarityThreshold,
		Search:      a.search,
		SearchOptions: tools.WebSearchOptions{
			MaxResults:    a.cfg.Search.MaxResults,
			SearchDepth:   a.cfg.Search.SearchDepth,
			IncludeAnswer: a.cfg.Search.IncludeAnswer,
		},
	})
	if err != nil {
		return nil, err
	}

	return swarm.NewRouter(registry, a.store, routerConfig(a.cfg.Router), a.logger,
		swarm.WithMetrics(a.metrics))
}

// Close 关闭存储与共享连接，可重复调用
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	return errors.Join(errs...)
}

// =============================================================================
// 🔧 配置转换
// =============================================================================

func routerConfig(c config.RouterConfig) swarm.Config {
	return swarm.Config{
		MaxHops:          c.MaxHops,
		TurnTimeout:      c.TurnTimeout,
		DefaultResponder: c.DefaultResponder,
		InitialPolicy:    swarm.InitialPolicy(c.InitialPolicy),
		MinConfidence:    c.MinConfidence,
		HistoryTurns:     c.HistoryTurns,
	}
}

func retryPolicy(c config.RetryConfig, maxRetries int) *retry.RetryPolicy {
	return &retry.RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
		Multiplier:   c.Multiplier,
		Jitter:       c.Jitter,
		Classifier:   llm.RetryClassifier,
	}
}

// chatProvider 按服务商预设创建 OpenAI 兼容的聊天客户端
func chatProvider(c config.LLMConfig, logger *zap.Logger) (*openaicompat.Provider, error) {
	vendor, ok := providers.LookupVendor(c.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown llm provider %q (supported: %s)",
			c.Provider, strings.Join(providers.VendorNames(), ", "))
	}
	baseURL, model := vendor.Resolve(c.BaseURL, c.Model)
	return openaicompat.New(openaicompat.Config{
		ProviderName:   vendor.Name,
		APIKey:         c.APIKey,
		BaseURL:        baseURL,
		DefaultModel:   model,
		Temperature:    float32(c.Temperature),
		Timeout:        c.Timeout,
		EndpointPath:   vendor.EndpointPath,
		ModelsEndpoint: vendor.ModelsPath,
	}, logger), nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Store.Type == string(persistence.StoreTypeRedis) ||
		cfg.Retrieval.CollectionStore == string(rag.StoreTypeRedis)
}

func needsDatabase(cfg *config.Config) bool {
	return cfg.Store.Type == string(persistence.StoreTypeSQL) ||
		cfg.Retrieval.CollectionStore == string(rag.StoreTypeSQL)
}
