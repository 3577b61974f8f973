package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BaSui01/agentswarm/agent/swarm"
	"github.com/BaSui01/agentswarm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 模拟路由器
// =============================================================================

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	resp  *swarm.Response
	err   error
	ctxID string
}

func (f *fakeRunner) Run(ctx context.Context, conversationID, question string) (*swarm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, conversationID+"|"+question)
	f.ctxID, _ = types.ConversationID(ctx)
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &swarm.Response{
		AgentName:      "DocumentResponder",
		Content:        "Go, Python and TypeScript.",
		ConversationID: conversationID,
		Version:        1,
	}, nil
}

func postChat(t *testing.T, h *ChatHandler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleChat(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

// =============================================================================
// 🧪 ChatHandler 测试
// =============================================================================

func TestChatHandler_Success(t *testing.T) {
	runner := &fakeRunner{}
	h := NewChatHandler(runner, zap.NewNop())

	rec, resp := postChat(t, h, `{"question":"  What languages does the candidate know? ","conversation_id":"c-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "DocumentResponder", data["agent_name"])
	assert.Equal(t, "Go, Python and TypeScript.", data["content"])
	assert.Equal(t, "c-1", data["conversation_id"])
	_, hasVersion := data["version"]
	assert.False(t, hasVersion)

	assert.Equal(t, []string{"c-1|What languages does the candidate know?"}, runner.calls)
	assert.Equal(t, "c-1", runner.ctxID)
}

func TestChatHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"question too short", `{"question":"a","conversation_id":"c-1"}`},
		{"question blank", `{"question":"   ","conversation_id":"c-1"}`},
		{"missing conversation", `{"question":"hello there"}`},
		{"blank conversation", `{"question":"hello there","conversation_id":"  "}`},
		{"unknown field", `{"question":"hello there","conversation_id":"c-1","model":"x"}`},
		{"malformed", `{"question":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			rec, resp := postChat(t, NewChatHandler(runner, nil), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
			assert.Equal(t, "invalid_input", resp.Error.Condition)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestChatHandler_TwoCharacterQuestion(t *testing.T) {
	runner := &fakeRunner{}
	rec, _ := postChat(t, NewChatHandler(runner, nil), `{"question":"oi","conversation_id":"c"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, runner.calls, 1)
}

func TestChatHandler_Conditions(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		condition string
		retryable bool
	}{
		{
			name:      "routing exhausted",
			err:       types.NewError(types.ErrRoutingExhausted, "no answer after 3 handoffs").WithHTTPStatus(http.StatusUnprocessableEntity),
			status:    http.StatusUnprocessableEntity,
			code:      "ROUTING_EXHAUSTED",
			condition: "routing_exhausted",
		},
		{
			name:      "timeout",
			err:       types.NewTimeoutError("deadline exceeded", context.DeadlineExceeded),
			status:    http.StatusGatewayTimeout,
			code:      "UPSTREAM_TIMEOUT",
			condition: "upstream_timeout",
		},
		{
			name:      "responder failure",
			err:       types.NewError(types.ErrResponderFailure, "SearchResponder failed"),
			status:    http.StatusServiceUnavailable,
			code:      "RESPONDER_FAILURE",
			condition: "not_ready",
			retryable: true,
		},
		{
			name:      "concurrent modification",
			err:       types.NewError(types.ErrConcurrentModification, "conversation changed").WithHTTPStatus(http.StatusConflict),
			status:    http.StatusConflict,
			code:      "CONCURRENT_MODIFICATION",
			condition: "not_ready",
			retryable: true,
		},
		{
			name:      "plain error",
			err:       errors.New("boom"),
			status:    http.StatusServiceUnavailable,
			code:      "INTERNAL_ERROR",
			condition: "not_ready",
			retryable: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(&fakeRunner{err: tt.err}, zap.NewNop())
			rec, resp := postChat(t, h, `{"question":"hello there","conversation_id":"c-1"}`)
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.condition, resp.Error.Condition)
			assert.Equal(t, tt.retryable, resp.Error.Retryable)
		})
	}
}

func TestChatHandler_MethodAndContentType(t *testing.T) {
	h := NewChatHandler(&fakeRunner{}, nil)

	rec := httptest.NewRecorder()
	h.HandleChat(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	h.HandleChat(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
