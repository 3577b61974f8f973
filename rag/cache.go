package rag

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/llm/embedding"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// 📚 检索缓存
// =============================================================================

// CacheConfig 检索缓存配置
type CacheConfig struct {
	// EmbedBatchSize 每次嵌入请求的块数，受 Provider.MaxBatchSize 限制
	EmbedBatchSize int
	// EmbedConcurrency 并发嵌入请求数
	EmbedConcurrency int
}

// DefaultCacheConfig 返回默认配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{EmbedBatchSize: 32, EmbedConcurrency: 4}
}

// Cache builds each document's collection at most once and serves similarity
// queries against it. The built state lives in the CollectionStore; the
// in-process map only holds collections already confirmed in the store.
type Cache struct {
	store    CollectionStore
	embedder embedding.Provider
	locker   BuildLocker
	chunker  *DocumentChunker
	retryer  retry.Retryer
	config   CacheConfig
	metrics  *metrics.Collector
	tracer   trace.Tracer
	logger   *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	loaded map[string]*Collection
}

// CacheOption 配置 Cache
type CacheOption func(*Cache)

// WithLocker 设置构建锁，默认为进程内锁
func WithLocker(l BuildLocker) CacheOption {
	return func(c *Cache) { c.locker = l }
}

// WithChunker 设置分块器
func WithChunker(ch *DocumentChunker) CacheOption {
	return func(c *Cache) { c.chunker = ch }
}

// WithRetryer 设置嵌入调用的重试器
func WithRetryer(r retry.Retryer) CacheOption {
	return func(c *Cache) { c.retryer = r }
}

// WithCacheConfig 设置批量与并发参数
func WithCacheConfig(cfg CacheConfig) CacheOption {
	return func(c *Cache) { c.config = cfg }
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Collector) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache 创建检索缓存
func NewCache(store CollectionStore, embedder embedding.Provider, logger *zap.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{
		store:    store,
		embedder: embedder,
		config:   DefaultCacheConfig(),
		tracer:   otel.Tracer("github.com/BaSui01/agentswarm/rag"),
		logger:   logger.With(zap.String("component", "retrieval_cache")),
		loaded:   make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.locker == nil {
		c.locker = NewLocalLocker()
	}
	if c.chunker == nil {
		c.chunker = NewDocumentChunker(DefaultChunkingConfig(), nil, logger)
	}
	if c.retryer == nil {
		policy := retry.DefaultRetryPolicy()
		policy.Classifier = types.IsRetryable
		c.retryer = retry.NewBackoffRetryer(policy, logger)
	}
	if c.config.EmbedBatchSize <= 0 {
		c.config.EmbedBatchSize = DefaultCacheConfig().EmbedBatchSize
	}
	if c.config.EmbedConcurrency <= 0 {
		c.config.EmbedConcurrency = DefaultCacheConfig().EmbedConcurrency
	}
	return c
}

// EnsureDocument fingerprints data and ensures its collection is built.
func (c *Cache) EnsureDocument(ctx context.Context, data []byte) (string, bool, error) {
	fp := Fingerprint(data)
	built, err := c.EnsureBuilt(ctx, fp, data)
	return fp, built, err
}

// EnsureBuilt makes sure the collection for fingerprint exists in the store.
// It reports whether this call performed the build. If the collection is
// already stored it returns without calling the embedding provider.
// Concurrent callers for one fingerprint wait for and share a single build.
func (c *Cache) EnsureBuilt(ctx context.Context, fingerprint string, data []byte) (bool, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return false, types.NewInvalidInputError("document is empty")
	}
	if fingerprint == "" {
		fingerprint = Fingerprint(data)
	} else if fingerprint != Fingerprint(data) {
		return false, types.NewInvalidInputError("fingerprint does not match document content")
	}

	ctx, span := c.tracer.Start(ctx, "rag.EnsureBuilt",
		trace.WithAttributes(attribute.String("rag.fingerprint", fingerprint)))
	defer span.End()

	built, err := c.ensureBuilt(ctx, fingerprint, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordCollectionBuild("error", 0)
		return false, err
	}
	span.SetAttributes(attribute.Bool("rag.built", built))
	if !built {
		c.metrics.RecordCollectionBuild("reused", 0)
	}
	return built, nil
}

func (c *Cache) ensureBuilt(ctx context.Context, fp string, data []byte) (bool, error) {
	if c.cached(fp) != nil {
		return false, nil
	}
	exists, err := c.store.Exists(ctx, fp)
	if err != nil {
		return false, c.storeError(ctx, "check collection", err)
	}
	if exists {
		c.logger.Info("collection already built", zap.String("fingerprint", fp))
		return false, nil
	}

	for {
		leader := false
		ch := c.group.DoChan(fp, func() (any, error) {
			leader = true
			return c.build(ctx, fp, data)
		})

		select {
		case <-ctx.Done():
			return false, types.FromContext(ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				// 领导者的 ctx 被取消而本调用仍有效时，重新发起
				if !leader && ctx.Err() == nil && isContextError(res.Err) {
					continue
				}
				return false, res.Err
			}
			return leader && res.Val.(bool), nil
		}
	}
}

// build runs under the per-fingerprint lock. The lock is released only after
// the collection is stored or the build has been abandoned.
func (c *Cache) build(ctx context.Context, fp string, data []byte) (bool, error) {
	release, err := c.locker.Acquire(ctx, fp)
	if err != nil {
		if ctx.Err() != nil {
			return false, types.FromContext(ctx.Err())
		}
		return false, types.NewNotReadyError("acquire build lock", err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			c.logger.Warn("build lock release failed", zap.String("fingerprint", fp), zap.Error(rerr))
		}
	}()

	exists, err := c.store.Exists(ctx, fp)
	if err != nil {
		return false, c.storeError(ctx, "check collection", err)
	}
	if exists {
		c.logger.Info("collection built by another worker", zap.String("fingerprint", fp))
		return false, nil
	}

	start := time.Now()
	chunks := c.chunker.Chunk(string(data))
	if len(chunks) == 0 {
		return false, types.NewInvalidInputError("document produced no chunks")
	}

	dims, err := c.embedChunks(ctx, chunks)
	if err != nil {
		return false, err
	}

	col := &Collection{
		Fingerprint: fp,
		Model:       c.embedder.Model(),
		Dimensions:  dims,
		Chunks:      chunks,
		BuiltAt:     time.Now().UTC(),
	}
	if err := c.store.Put(ctx, col); err != nil {
		if errors.Is(err, ErrCollectionExists) {
			return false, nil
		}
		return false, c.storeError(ctx, "store collection", err)
	}
	c.remember(col)

	elapsed := time.Since(start)
	c.metrics.RecordCollectionBuild("built", elapsed)
	c.logger.Info("collection built",
		zap.String("fingerprint", fp),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", dims),
		zap.String("model", col.Model),
		zap.Duration("duration", elapsed))
	return true, nil
}

// embedChunks fills every chunk's embedding and returns the dimension.
func (c *Cache) embedChunks(ctx context.Context, chunks []Chunk) (int, error) {
	batch := c.config.EmbedBatchSize
	if max := c.embedder.MaxBatchSize(); max > 0 && batch > max {
		batch = max
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.EmbedConcurrency)

	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Text
			}
			vecs, err := retry.DoWithResultTyped(c.retryer, gctx, func() ([][]float64, error) {
				return c.embedder.EmbedDocuments(gctx, texts)
			})
			if err != nil {
				return c.providerError(ctx, "embed chunks", err)
			}
			if len(vecs) != len(texts) {
				return c.providerError(ctx, "embed chunks",
					fmt.Errorf("got %d embeddings for %d chunks", len(vecs), len(texts)))
			}
			for i, v := range vecs {
				chunks[start+i].Embedding = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	dims := len(chunks[0].Embedding)
	for i, ch := range chunks {
		if len(ch.Embedding) == 0 || len(ch.Embedding) != dims {
			return 0, c.providerError(ctx, "embed chunks",
				fmt.Errorf("chunk %d has %d dimensions, want %d", i, len(ch.Embedding), dims))
		}
	}
	return dims, nil
}

// Retrieve returns at most maxResults chunks whose cosine similarity to the
// query is at least threshold, best first. Equal scores keep document order.
func (c *Cache) Retrieve(ctx context.Context, fingerprint, query string, maxResults int, threshold float64) ([]ScoredChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.NewInvalidInputError("query is required")
	}
	if maxResults < 1 {
		return nil, types.NewInvalidInputError("max_results must be at least 1")
	}
	if math.IsNaN(threshold) {
		return nil, types.NewInvalidInputError("threshold must be a number")
	}

	ctx, span := c.tracer.Start(ctx, "rag.Retrieve",
		trace.WithAttributes(
			attribute.String("rag.fingerprint", fingerprint),
			attribute.Int("rag.max_results", maxResults),
			attribute.Float64("rag.threshold", threshold)))
	defer span.End()

	results, err := c.retrieve(ctx, fingerprint, query, maxResults, threshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordRetrieval("error", 0)
		return nil, err
	}
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	c.metrics.RecordRetrieval("ok", len(results))
	return results, nil
}

func (c *Cache) retrieve(ctx context.Context, fp, query string, maxResults int, threshold float64) ([]ScoredChunk, error) {
	col, err := c.collection(ctx, fp)
	if err != nil {
		return nil, err
	}

	qv, err := retry.DoWithResultTyped(c.retryer, ctx, func() ([]float64, error) {
		return c.embedder.EmbedQuery(ctx, query)
	})
	if err != nil {
		return nil, c.providerError(ctx, "embed query", err)
	}
	if len(qv) != col.Dimensions {
		return nil, types.NewError(types.ErrInternal,
			fmt.Sprintf("query embedding has %d dimensions, collection has %d", len(qv), col.Dimensions))
	}

	return rank(col.Chunks, qv, maxResults, threshold), nil
}

// Collections lists the stored collections.
func (c *Cache) Collections(ctx context.Context) ([]CollectionInfo, error) {
	infos, err := c.store.List(ctx)
	if err != nil {
		return nil, c.storeError(ctx, "list collections", err)
	}
	return infos, nil
}

// Ready reports whether the collection for fingerprint is stored.
func (c *Cache) Ready(ctx context.Context, fingerprint string) error {
	if c.cached(fingerprint) != nil {
		return nil
	}
	ok, err := c.store.Exists(ctx, fingerprint)
	if err != nil {
		return c.storeError(ctx, "check collection", err)
	}
	if !ok {
		return types.NewError(types.ErrCollectionNotReady, "collection has not been built").
			WithRetryable(true)
	}
	return nil
}

// collection loads from the process map or the store.
func (c *Cache) collection(ctx context.Context, fp string) (*Collection, error) {
	if col := c.cached(fp); col != nil {
		c.metrics.RecordCacheHit("collection")
		return col, nil
	}
	c.metrics.RecordCacheMiss("collection")

	col, err := c.store.Get(ctx, fp)
	if errors.Is(err, ErrCollectionNotFound) {
		return nil, types.NewError(types.ErrCollectionNotReady, "collection has not been built").
			WithRetryable(true)
	}
	if err != nil {
		return nil, c.storeError(ctx, "load collection", err)
	}
	c.remember(col)
	return col, nil
}

func (c *Cache) cached(fp string) *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded[fp]
}

func (c *Cache) remember(col *Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded[col.Fingerprint] = col
}

func (c *Cache) storeError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return types.FromContext(ctx.Err())
	}
	return types.NewNotReadyError(op+" failed", err)
}

func (c *Cache) providerError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return types.FromContext(ctx.Err())
	}
	return types.WrapError(types.ErrProviderUnavailable, op+" failed", err).
		WithProvider(c.embedder.Name())
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// rank scores chunks against the query vector.
func rank(chunks []Chunk, query []float64, maxResults int, threshold float64) []ScoredChunk {
	out := make([]ScoredChunk, 0, min(maxResults, len(chunks)))
	for _, ch := range chunks {
		score := cosineSimilarity(query, ch.Embedding)
		if score < threshold {
			continue
		}
		hit := ch
		hit.Embedding = nil
		out = append(out, ScoredChunk{Chunk: hit, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Index < out[j].Index
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

// cosineSimilarity 计算余弦相似度
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
