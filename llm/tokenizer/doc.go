// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器，检索缓存的分块器据此控制块大小。
package tokenizer
