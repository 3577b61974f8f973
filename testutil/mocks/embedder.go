package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
)

// CountingEmbedder 是确定性的词袋嵌入器：每个词哈希到一个维度，
// 结果做 L2 归一化，余弦相似度即词重叠程度。记录调用次数。
type CountingEmbedder struct {
	dims     int
	maxBatch int
	delay    time.Duration

	mu        sync.Mutex
	err       error
	failAfter int

	calls atomic.Int64
	texts atomic.Int64
}

// NewCountingEmbedder 创建嵌入器，dims<=0 时使用 64
func NewCountingEmbedder(dims int) *CountingEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &CountingEmbedder{dims: dims, maxBatch: 16}
}

// WithMaxBatch 设置最大批量
func (e *CountingEmbedder) WithMaxBatch(n int) *CountingEmbedder {
	e.maxBatch = n
	return e
}

// WithDelay 设置每次调用的延迟
func (e *CountingEmbedder) WithDelay(d time.Duration) *CountingEmbedder {
	e.delay = d
	return e
}

// WithError 设置每次调用返回的错误，nil 表示恢复正常
func (e *CountingEmbedder) WithError(err error) *CountingEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	return e
}

// WithFailAfter 前 n 次调用成功，之后返回 WithError 设置的错误
func (e *CountingEmbedder) WithFailAfter(n int) *CountingEmbedder {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAfter = n
	return e
}

func (e *CountingEmbedder) Name() string      { return "counting" }
func (e *CountingEmbedder) Model() string     { return "bag-of-words" }
func (e *CountingEmbedder) Dimensions() int   { return e.dims }
func (e *CountingEmbedder) MaxBatchSize() int { return e.maxBatch }

// Calls 返回 Embed 调用次数（查询与文档批次都计数）
func (e *CountingEmbedder) Calls() int { return int(e.calls.Load()) }

// Texts 返回被嵌入的文本总数
func (e *CountingEmbedder) Texts() int { return int(e.texts.Load()) }

// Reset 清零计数
func (e *CountingEmbedder) Reset() {
	e.calls.Store(0)
	e.texts.Store(0)
}

func (e *CountingEmbedder) begin(ctx context.Context, n int) error {
	call := e.calls.Add(1)
	e.texts.Add(int64(n))

	if e.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil && (e.failAfter == 0 || call > int64(e.failAfter)) {
		return e.err
	}
	return nil
}

// EmbedQuery 嵌入单个查询
func (e *CountingEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if err := e.begin(ctx, 1); err != nil {
		return nil, err
	}
	return Vector(query, e.dims), nil
}

// EmbedDocuments 按顺序嵌入多个文档
func (e *CountingEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if err := e.begin(ctx, len(documents)); err != nil {
		return nil, err
	}
	out := make([][]float64, len(documents))
	for i, d := range documents {
		out[i] = Vector(d, e.dims)
	}
	return out, nil
}

// Vector 返回 text 的确定性词袋向量
func Vector(text string, dims int) []float64 {
	vec := make([]float64, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
