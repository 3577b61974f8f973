package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentswarm/internal/cache"
	"github.com/BaSui01/agentswarm/internal/metrics"
	"github.com/BaSui01/agentswarm/llm/retry"
	"github.com/BaSui01/agentswarm/testutil"
	"github.com/BaSui01/agentswarm/testutil/fixtures"
	"github.com/BaSui01/agentswarm/testutil/mocks"
	"github.com/BaSui01/agentswarm/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// =============================================================================
// 🧪 Cache 测试
// =============================================================================

func fastRetryer() retry.Retryer {
	return retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
		Classifier:   types.IsRetryable,
	}, zap.NewNop())
}

func smallChunker() *DocumentChunker {
	return NewDocumentChunker(ChunkingConfig{ChunkSize: 40, ChunkOverlap: 8}, nil, zap.NewNop())
}

func newTestCache(store CollectionStore, embedder *mocks.CountingEmbedder, opts ...CacheOption) *Cache {
	opts = append([]CacheOption{WithRetryer(fastRetryer()), WithChunker(smallChunker())}, opts...)
	return NewCache(store, embedder, zap.NewNop(), opts...)
}

func TestCache_BuildsOnceAndReuses(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCollectionStore()
	embedder := mocks.NewCountingEmbedder(64).WithMaxBatch(4)
	c := newTestCache(store, embedder, WithMetrics(metrics.NewCollector("test", nil)))

	doc := []byte(fixtures.Curriculum)
	fp, built, err := c.EnsureDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, built)
	assert.Equal(t, Fingerprint(doc), fp)

	want := len(smallChunker().Chunk(fixtures.Curriculum))
	assert.Equal(t, want, embedder.Texts())
	assert.Equal(t, (want+3)/4, embedder.Calls(), "chunks are embedded in batches of the provider's max size")

	col, err := store.Get(ctx, fp)
	require.NoError(t, err)
	assert.Len(t, col.Chunks, want)
	assert.Equal(t, "bag-of-words", col.Model)
	assert.Equal(t, 64, col.Dimensions)

	embedder.Reset()
	built, err = c.EnsureBuilt(ctx, fp, doc)
	require.NoError(t, err)
	assert.False(t, built)
	assert.Zero(t, embedder.Calls())
}

func TestCache_ReusesAcrossInstances(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileCollectionStore(t.TempDir(), nil)
	require.NoError(t, err)

	doc := []byte(fixtures.Curriculum)
	_, built, err := newTestCache(store, mocks.NewCountingEmbedder(32)).EnsureDocument(ctx, doc)
	require.NoError(t, err)
	require.True(t, built)

	// 模拟进程重启：新的 Cache 共享同一存储
	embedder := mocks.NewCountingEmbedder(32)
	restarted := newTestCache(store, embedder)
	_, built, err = restarted.EnsureDocument(ctx, doc)
	require.NoError(t, err)
	assert.False(t, built)
	assert.Zero(t, embedder.Calls())

	hits, err := restarted.Retrieve(ctx, Fingerprint(doc), "Kafka pipelines", 3, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
	assert.Equal(t, 1, embedder.Calls(), "only the query is embedded")
}

func TestCache_EnsureBuiltValidation(t *testing.T) {
	c := newTestCache(NewMemoryCollectionStore(), mocks.NewCountingEmbedder(8))
	ctx := context.Background()

	_, err := c.EnsureBuilt(ctx, "", []byte("  \n"))
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))

	_, err = c.EnsureBuilt(ctx, Fingerprint([]byte("other")), []byte("document"))
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))

	built, err := c.EnsureBuilt(ctx, "", []byte("document"))
	require.NoError(t, err)
	assert.True(t, built)
}

func TestCache_ProviderFailureLeavesNoCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCollectionStore()
	embedder := mocks.NewCountingEmbedder(16).WithError(errors.New("embedding backend down"))
	c := newTestCache(store, embedder)

	doc := []byte(fixtures.Curriculum)
	_, built, err := c.EnsureDocument(ctx, doc)
	require.Error(t, err)
	assert.False(t, built)
	assert.Equal(t, types.ErrProviderUnavailable, types.GetErrorCode(err))
	assert.Equal(t, types.ConditionNotReady, types.ConditionOf(err))

	ok, err := store.Exists(ctx, Fingerprint(doc))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Retrieve(ctx, Fingerprint(doc), "Go", 3, 0)
	assert.Equal(t, types.ErrCollectionNotReady, types.GetErrorCode(err))

	// 恢复后重新构建
	embedder.WithError(nil)
	_, built, err = c.EnsureDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, built)
}

func TestCache_PartialBatchFailureLeavesNoCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCollectionStore()
	embedder := mocks.NewCountingEmbedder(16).
		WithMaxBatch(2).
		WithFailAfter(1).
		WithError(errors.New("quota exhausted"))
	c := newTestCache(store, embedder, WithCacheConfig(CacheConfig{EmbedBatchSize: 2, EmbedConcurrency: 1}))

	doc := []byte(fixtures.Curriculum)
	require.Greater(t, len(smallChunker().Chunk(fixtures.Curriculum)), 2)

	_, _, err := c.EnsureDocument(ctx, doc)
	require.Error(t, err)

	infos, err := c.Collections(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestCache_RetriesTransientProviderErrors(t *testing.T) {
	ctx := context.Background()
	transient := types.NewError(types.ErrProviderUnavailable, "503").WithRetryable(true)
	embedder := mocks.NewCountingEmbedder(16).WithError(transient)
	c := newTestCache(NewMemoryCollectionStore(), embedder,
		WithCacheConfig(CacheConfig{EmbedBatchSize: 100, EmbedConcurrency: 1}))

	_, _, err := c.EnsureDocument(ctx, []byte("short document"))
	require.Error(t, err)
	assert.Equal(t, 3, embedder.Calls(), "one attempt plus two retries")
}

func TestCache_CancelledContext(t *testing.T) {
	embedder := mocks.NewCountingEmbedder(16).WithDelay(time.Second)
	c := newTestCache(NewMemoryCollectionStore(), embedder)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.EnsureDocument(ctx, []byte(fixtures.Curriculum))
	require.Error(t, err)
	assert.Equal(t, types.ConditionUpstreamTimeout, types.ConditionOf(err))
}

func TestCache_FollowerSurvivesLeaderCancellation(t *testing.T) {
	store := NewMemoryCollectionStore()
	embedder := mocks.NewCountingEmbedder(16).WithDelay(50 * time.Millisecond)
	c := newTestCache(store, embedder)
	doc := []byte(fixtures.Curriculum)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.EnsureDocument(leaderCtx, doc)
		leaderErr <- err
	}()
	testutil.AssertEventuallyTrue(t, func() bool { return embedder.Calls() > 0 }, time.Second)

	followerDone := make(chan error, 1)
	go func() {
		_, err := c.EnsureBuilt(context.Background(), "", doc)
		followerDone <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.Error(t, <-leaderErr)
	require.NoError(t, <-followerDone)

	ok, err := store.Exists(context.Background(), Fingerprint(doc))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_RetrieveValidation(t *testing.T) {
	c := newTestCache(NewMemoryCollectionStore(), mocks.NewCountingEmbedder(8))
	ctx := context.Background()
	fp := Fingerprint([]byte("x"))

	_, err := c.Retrieve(ctx, fp, "  ", 3, 0.5)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))
	_, err = c.Retrieve(ctx, fp, "q", 0, 0.5)
	assert.Equal(t, types.ErrInvalidInput, types.GetErrorCode(err))

	_, err = c.Retrieve(ctx, fp, "q", 3, 0.5)
	assert.Equal(t, types.ErrCollectionNotReady, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Error(t, c.Ready(ctx, fp))
}

func TestCache_RetrieveRanksByScore(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(NewMemoryCollectionStore(), mocks.NewCountingEmbedder(128))

	fp, _, err := c.EnsureDocument(ctx, []byte(fixtures.Curriculum))
	require.NoError(t, err)
	require.NoError(t, c.Ready(ctx, fp))

	hits, err := c.Retrieve(ctx, fp, "Kafka Spark data pipelines", 4, 0)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.LessOrEqual(t, len(hits), 4)

	for i, h := range hits {
		assert.Nil(t, h.Embedding)
		if i > 0 {
			assert.GreaterOrEqual(t, hits[i-1].Score, h.Score)
		}
	}
	assert.Contains(t, strings.ToLower(hits[0].Text), "kafka")

	none, err := c.Retrieve(ctx, fp, "Kafka Spark data pipelines", 4, 1.01)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRank_TiesKeepDocumentOrder(t *testing.T) {
	chunks := []Chunk{
		{Index: 0, Text: "a", Embedding: []float64{1, 0}},
		{Index: 1, Text: "b", Embedding: []float64{0, 1}},
		{Index: 2, Text: "c", Embedding: []float64{1, 0}},
		{Index: 3, Text: "d", Embedding: []float64{1, 1}},
	}
	hits := rank(chunks, []float64{1, 0}, 10, 0.5)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{hits[0].Index, hits[1].Index, hits[2].Index})
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	assert.Len(t, rank(chunks, []float64{1, 0}, 1, 0), 1)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1}, []float64{1, 0}))
}

func TestCache_SharedRedisAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	mgr, err := cache.NewManager(cache.Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	store, err := NewRedisCollectionStore(mgr, "swarm:", nil)
	require.NoError(t, err)
	embedder := mocks.NewCountingEmbedder(32).WithDelay(20 * time.Millisecond)

	// 两个实例代表两个进程：各自的 singleflight，共享 Redis 锁与存储
	instances := []*Cache{
		newTestCache(store, embedder, WithLocker(NewRedisLocker(mgr, "swarm:", time.Minute, 5*time.Millisecond, nil))),
		newTestCache(store, embedder, WithLocker(NewRedisLocker(mgr, "swarm:", time.Minute, 5*time.Millisecond, nil))),
	}

	doc := []byte(fixtures.Curriculum)
	var wg sync.WaitGroup
	var mu sync.Mutex
	builds := 0
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(c *Cache) {
			defer wg.Done()
			built, err := c.EnsureBuilt(context.Background(), "", doc)
			assert.NoError(t, err)
			if built {
				mu.Lock()
				builds++
				mu.Unlock()
			}
		}(instances[i%2])
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
	assert.Equal(t, len(smallChunker().Chunk(fixtures.Curriculum)), embedder.Texts())
}

// Property: 同一文档的并发构建只调用一次嵌入
func TestProperty_ConcurrentBuildsEmbedOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)
	doc := []byte(fixtures.Curriculum)
	chunkCount := len(smallChunker().Chunk(fixtures.Curriculum))

	properties.Property("exactly one caller builds and chunks are embedded once", prop.ForAll(
		func(callers int) bool {
			embedder := mocks.NewCountingEmbedder(16).WithDelay(2 * time.Millisecond)
			c := newTestCache(NewMemoryCollectionStore(), embedder)

			var wg sync.WaitGroup
			results := make([]bool, callers)
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = c.EnsureBuilt(context.Background(), "", doc)
				}(i)
			}
			wg.Wait()

			builds := 0
			for i := range results {
				if errs[i] != nil {
					t.Logf("caller %d failed: %v", i, errs[i])
					return false
				}
				if results[i] {
					builds++
				}
			}
			return builds == 1 && embedder.Texts() == chunkCount
		},
		gen.IntRange(2, 16),
	))

	properties.TestingRun(t)
}

// Property: 阈值越高，结果是低阈值结果的前缀
func TestProperty_ThresholdResultsArePrefixes(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(NewMemoryCollectionStore(), mocks.NewCountingEmbedder(64))
	fp, _, err := c.EnsureDocument(ctx, []byte(fixtures.Curriculum))
	require.NoError(t, err)

	words := []string{"go", "python", "kafka", "spark", "data", "pipelines", "team", "lead", "cloud", "engineer"}

	rapid.Check(t, func(rt *rapid.T) {
		query := strings.Join(rapid.SliceOfN(rapid.SampledFrom(words), 1, 4).Draw(rt, "query"), " ")
		lo := rapid.Float64Range(-1, 1).Draw(rt, "lo")
		hi := rapid.Float64Range(lo, 1).Draw(rt, "hi")
		maxResults := rapid.IntRange(1, 10).Draw(rt, "maxResults")

		loHits, err := c.Retrieve(ctx, fp, query, maxResults, lo)
		if err != nil {
			rt.Fatalf("retrieve lo: %v", err)
		}
		hiHits, err := c.Retrieve(ctx, fp, query, maxResults, hi)
		if err != nil {
			rt.Fatalf("retrieve hi: %v", err)
		}

		if len(hiHits) > len(loHits) {
			rt.Fatalf("higher threshold returned more results: %d > %d", len(hiHits), len(loHits))
		}
		for i := range hiHits {
			if hiHits[i].Index != loHits[i].Index {
				rt.Fatalf("position %d: chunk %d vs %d", i, hiHits[i].Index, loHits[i].Index)
			}
			if hiHits[i].Score < hi {
				rt.Fatalf("score %f below threshold %f", hiHits[i].Score, hi)
			}
		}
	})
}
