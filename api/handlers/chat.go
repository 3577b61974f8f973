package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/agentswarm/agent/swarm"
	"github.com/BaSui01/agentswarm/api"
	"github.com/BaSui01/agentswarm/types"
	"go.uber.org/zap"
)

// minQuestionLength 问题的最少字符数
const minQuestionLength = 2

// =============================================================================
// 💬 对话 Handler
// =============================================================================

// TurnRunner 执行并提交一整轮对话，*swarm.Router 满足该接口
type TurnRunner interface {
	Run(ctx context.Context, conversationID, question string) (*swarm.Response, error)
}

// ChatHandler 对话处理器
type ChatHandler struct {
	runner TurnRunner
	logger *zap.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(runner TurnRunner, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		runner: runner,
		logger: logger.With(zap.String("component", "chat_handler")),
	}
}

// HandleChat 处理对话请求
// @Summary 对话
// @Description 在会话中回答一个问题，必要时在应答者之间转交
// @Tags 对话
// @Accept json
// @Produce json
// @Param request body api.ChatRequest true "对话请求"
// @Success 200 {object} Response{data=api.ChatResponse} "回答"
// @Failure 400 {object} Response "invalid_input"
// @Failure 409 {object} Response "会话被并发修改"
// @Failure 422 {object} Response "routing_exhausted"
// @Failure 503 {object} Response "not_ready"
// @Failure 504 {object} Response "upstream_timeout"
// @Router /chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteErrorMessage(w, http.StatusMethodNotAllowed, types.ErrInvalidInput, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := validateChatRequest(&req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	ctx := types.WithConversationID(r.Context(), req.ConversationID)
	start := time.Now()
	resp, err := h.runner.Run(ctx, req.ConversationID, req.Question)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("chat turn",
		zap.String("conversation_id", req.ConversationID),
		zap.String("agent_name", resp.AgentName),
		zap.Int64("version", resp.Version),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, api.ChatResponse{
		AgentName:      resp.AgentName,
		Content:        resp.Content,
		ConversationID: resp.ConversationID,
	})
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func validateChatRequest(req *api.ChatRequest) *types.Error {
	req.Question = strings.TrimSpace(req.Question)
	req.ConversationID = strings.TrimSpace(req.ConversationID)

	if utf8.RuneCountInString(req.Question) < minQuestionLength {
		return types.NewInvalidInputError("question must have at least 2 characters")
	}
	if req.ConversationID == "" {
		return types.NewInvalidInputError("conversation_id is required")
	}
	return nil
}
