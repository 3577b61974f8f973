package tokenizer

import (
	"fmt"
	"strings"
)

// Tokenizer 统一的 token 计数接口，分块器用它衡量块大小
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称.
	Name() string
}

// New 按名称构造分词器：estimator 或 tiktoken。
// model 用于 tiktoken 选择编码，空字符串使用 cl100k_base。
func New(name, model string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "estimator":
		return NewEstimatorTokenizer(), nil
	case "tiktoken":
		return NewTiktokenTokenizer(model), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}
