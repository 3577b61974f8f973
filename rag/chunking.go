package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/BaSui01/agentswarm/llm/tokenizer"
	"go.uber.org/zap"
)

// ChunkingConfig 分块配置（单位：token）
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size"`     // 块大小
	ChunkOverlap int `json:"chunk_overlap"`  // 与前一块的重叠
	MinChunkSize int `json:"min_chunk_size"` // 小于此值的块并入前一块
}

// DefaultChunkingConfig 默认分块配置
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    512,
		ChunkOverlap: 102, // 20% overlap
		MinChunkSize: 50,
	}
}

// 分隔符优先级：段落 > 行 > 句子 > 单词
var chunkSeparators = []string{"\n\n", "\n", ". ", "。", "! ", "？", "? ", " "}

// 估算时每个 token 约 4 个字符
const charsPerToken = 4

// DocumentChunker 递归分块器，在段落、句子、单词边界处切分
type DocumentChunker struct {
	config    ChunkingConfig
	tokenizer tokenizer.Tokenizer
	logger    *zap.Logger
}

// NewDocumentChunker 创建分块器；tk 为 nil 时使用估算器
func NewDocumentChunker(config ChunkingConfig, tk tokenizer.Tokenizer, logger *zap.Logger) *DocumentChunker {
	def := DefaultChunkingConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = def.ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.MinChunkSize < 0 {
		config.MinChunkSize = 0
	}
	if tk == nil {
		tk = tokenizer.NewEstimatorTokenizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentChunker{
		config:    config,
		tokenizer: tk,
		logger:    logger.With(zap.String("component", "chunker")),
	}
}

// Config 返回生效的分块配置
func (c *DocumentChunker) Config() ChunkingConfig {
	return c.config
}

// Chunk 将文档切分为有序块。块的 StartPos/EndPos 是原文中的字节偏移，
// Text 为该区间去除首尾空白后的内容；全部块覆盖原文所有非空白字符。
func (c *DocumentChunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	spans := c.split(text, 0, chunkSeparators)
	chunks := make([]Chunk, 0, len(spans))
	overlapBytes := c.config.ChunkOverlap * charsPerToken

	for i, sp := range spans {
		start := sp.start
		if i > 0 && overlapBytes > 0 {
			start = max(spans[i-1].start, sp.start-overlapBytes)
			for start < sp.start && !utf8.RuneStart(text[start]) {
				start++
			}
		}

		ts, te := trimSpan(text, start, sp.end)
		if ts >= te {
			continue
		}

		body := text[ts:te]
		tokens := c.count(body)

		// 过小的尾块并入前一块
		if n := len(chunks); n > 0 && tokens < c.config.MinChunkSize {
			prev := &chunks[n-1]
			prev.EndPos = te
			prev.Text = text[prev.StartPos:te]
			prev.TokenCount = c.count(prev.Text)
			continue
		}

		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       body,
			StartPos:   ts,
			EndPos:     te,
			TokenCount: tokens,
		})
	}

	c.logger.Debug("document chunked",
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", c.config.ChunkSize),
		zap.Int("overlap", c.config.ChunkOverlap))

	return chunks
}

type span struct{ start, end int }

// split 递归切分 text（位于原文 base 偏移处），返回首尾相接的区间
func (c *DocumentChunker) split(text string, base int, seps []string) []span {
	if c.count(text) <= c.config.ChunkSize {
		return []span{{base, base + len(text)}}
	}
	if len(seps) == 0 {
		return c.splitRunes(text, base)
	}

	pieces := splitKeep(text, seps[0])
	if len(pieces) == 1 {
		return c.split(text, base, seps[1:])
	}

	var out []span
	curStart, curEnd := -1, -1
	off := 0
	for _, p := range pieces {
		pStart, pEnd := off, off+len(p)
		off = pEnd

		if curStart >= 0 && c.count(text[curStart:pEnd]) <= c.config.ChunkSize {
			curEnd = pEnd
			continue
		}
		if curStart >= 0 {
			out = append(out, span{base + curStart, base + curEnd})
			curStart = -1
		}
		if c.count(p) > c.config.ChunkSize {
			out = append(out, c.split(p, base+pStart, seps[1:])...)
			continue
		}
		curStart, curEnd = pStart, pEnd
	}
	if curStart >= 0 {
		out = append(out, span{base + curStart, base + curEnd})
	}
	return out
}

// splitRunes 最后手段：按字符数切分，不拆开多字节字符
func (c *DocumentChunker) splitRunes(text string, base int) []span {
	limit := c.config.ChunkSize * charsPerToken
	var out []span
	start, n := 0, 0
	for i := range text {
		if n == limit {
			out = append(out, span{base + start, base + i})
			start, n = i, 0
		}
		n++
	}
	if start < len(text) {
		out = append(out, span{base + start, base + len(text)})
	}
	return out
}

func (c *DocumentChunker) count(text string) int {
	n, err := c.tokenizer.CountTokens(text)
	if err != nil {
		c.logger.Warn("tokenizer CountTokens failed, falling back to estimate", zap.Error(err))
		return len(text) / charsPerToken
	}
	return n
}

// splitKeep 按分隔符切分，每段保留其结尾的分隔符
func splitKeep(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	if n := len(parts); n > 1 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	return parts
}

func trimSpan(text string, start, end int) (int, int) {
	s := text[start:end]
	lead := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	trail := len(s) - len(strings.TrimRightFunc(s, unicode.IsSpace))
	if lead == len(s) {
		return end, end
	}
	return start + lead, end - trail
}
