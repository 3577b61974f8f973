package api

import "time"

// =============================================================================
// 对话类型
// =============================================================================

// ChatRequest 是 POST /chat 的请求体。
// @Description 对话请求结构
type ChatRequest struct {
	// 用户问题，至少 2 个字符
	Question string `json:"question" example:"What languages does the candidate know?" binding:"required"`
	// 会话 ID，同一 ID 的请求共享历史
	ConversationID string `json:"conversation_id" example:"a1b2c3" binding:"required"`
}

// ChatResponse 是 POST /chat 的响应数据。
// @Description 对话响应结构
type ChatResponse struct {
	// 给出最终回答的应答者
	AgentName string `json:"agent_name" example:"DocumentResponder"`
	// 回答内容
	Content string `json:"content"`
	// 会话 ID
	ConversationID string `json:"conversation_id" example:"a1b2c3"`
}

// =============================================================================
// 集合类型
// =============================================================================

// CollectionSummary 描述一个已构建的检索集合。
// @Description 检索集合摘要
type CollectionSummary struct {
	Fingerprint string    `json:"fingerprint"`
	Model       string    `json:"model"`
	Dimensions  int       `json:"dimensions"`
	Chunks      int       `json:"chunks"`
	BuiltAt     time.Time `json:"built_at"`
}

// =============================================================================
// 错误类型
// =============================================================================

// ErrorDetail 表示错误详情。
// @Description 错误详情结构
type ErrorDetail struct {
	// 详细错误码（如 ROUTING_EXHAUSTED）
	Code string `json:"code" example:"NOT_READY"`
	// 边界条件（invalid_input、not_ready、upstream_timeout、routing_exhausted）
	Condition string `json:"condition" example:"not_ready"`
	// 错误信息
	Message string `json:"message"`
	// 是否可以稍后重试
	Retryable bool `json:"retryable,omitempty"`
}
