package providers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/agentswarm/llm"
	"github.com/BaSui01/agentswarm/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		expectedCode  types.ErrorCode
		expectedRetry bool
	}{
		{"401 Unauthorized", http.StatusUnauthorized, types.ErrAuthentication, false},
		{"403 Forbidden", http.StatusForbidden, types.ErrAuthentication, false},
		{"429 Rate Limited", http.StatusTooManyRequests, types.ErrRateLimited, true},
		{"400 Bad Request", http.StatusBadRequest, types.ErrInvalidInput, false},
		{"422 Unprocessable", http.StatusUnprocessableEntity, types.ErrInvalidInput, false},
		{"504 Gateway Timeout", http.StatusGatewayTimeout, types.ErrProviderUnavailable, true},
		{"529 Model Overloaded", 529, types.ErrProviderUnavailable, true},
		{"500 Internal", http.StatusInternalServerError, types.ErrProviderUnavailable, true},
		{"503 Unavailable", http.StatusServiceUnavailable, types.ErrProviderUnavailable, true},
		{"404 Not Found", http.StatusNotFound, types.ErrProviderUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, "upstream said no", "test-provider")
			assert.Equal(t, tt.expectedCode, err.Code)
			assert.Equal(t, tt.expectedRetry, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "test-provider", err.Provider)
			assert.Equal(t, "upstream said no", err.Message)
		})
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransportError(cause, "p")
	assert.Equal(t, types.ErrProviderUnavailable, err.Code)
	assert.True(t, err.Retryable)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
	assert.ErrorIs(t, err, cause)
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"bad key","type":"auth"}}`, "bad key (type: auth)"},
		{`{"error":{"message":"bad key"}}`, "bad key"},
		{`{"detail":"missing model"}`, "missing model"},
		{"  plain text failure \n", "plain text failure"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReadErrorMessage(strings.NewReader(tt.body)))
	}
}

func TestToLLMChatResponse_ToolArguments(t *testing.T) {
	resp := ToLLMChatResponse(OpenAICompatResponse{
		ID:    "r1",
		Model: "m",
		Choices: []OpenAICompatChoice{{
			Message: OpenAICompatMessage{
				Role: "assistant",
				ToolCalls: []OpenAICompatToolCall{
					{ID: "a", Type: "function", Function: OpenAICompatFunctionCall{Name: "f", Arguments: `{"x":1}`}},
					{ID: "b", Type: "function", Function: OpenAICompatFunctionCall{Name: "g", Arguments: "not json"}},
				},
			},
		}},
		Usage: &OpenAICompatUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}, "p")

	require.Len(t, resp.Choices, 1)
	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 2)
	assert.JSONEq(t, `{"x":1}`, string(calls[0].Arguments))
	assert.JSONEq(t, `{}`, string(calls[1].Arguments))
	assert.Equal(t, 5, resp.Usage.TotalTokens)
	assert.Equal(t, "p", resp.Provider)
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "cfg", "fallback"))
	assert.Equal(t, "cfg", ChooseModel(&llm.ChatRequest{}, "cfg", "fallback"))
	assert.Equal(t, "fallback", ChooseModel(nil, "", "fallback"))
}

func TestLookupVendor(t *testing.T) {
	v, ok := LookupVendor("")
	require.True(t, ok)
	assert.Equal(t, "openai", v.Name)

	v, ok = LookupVendor(" DeepSeek ")
	require.True(t, ok)
	assert.Equal(t, "deepseek-chat", v.DefaultModel)

	_, ok = LookupVendor("unknown")
	assert.False(t, ok)

	names := VendorNames()
	assert.Contains(t, names, "qwen")
	assert.IsIncreasing(t, names)
}

func TestVendorResolve(t *testing.T) {
	v, _ := LookupVendor("qwen")

	baseURL, model := v.Resolve("", "")
	assert.Equal(t, "https://dashscope.aliyuncs.com/compatible-mode/v1", baseURL)
	assert.Equal(t, "qwen-plus", model)

	baseURL, model = v.Resolve("http://proxy.local", "qwen-max")
	assert.Equal(t, "http://proxy.local", baseURL)
	assert.Equal(t, "qwen-max", model)
}
