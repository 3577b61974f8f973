// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持脚本化响应（文本或工具调用）、错误注入与调用记录。
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentswarm/llm"
)

// --- MockProvider 结构 ---

// Reply 是一次脚本化的模型回复：文本、工具调用或错误三选一
type Reply struct {
	Text     string
	ToolName string
	ToolArgs any
	Err      error
}

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	response       string
	script         []Reply
	err            error
	delay          time.Duration
	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []*llm.ChatRequest
}

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider
func NewMockProvider() *MockProvider {
	return &MockProvider{response: "Mock response"}
}

// WithResponse 设置脚本耗尽后的默认文本响应
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithScript 追加按顺序消费的回复
func (m *MockProvider) WithScript(replies ...Reply) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
	return m
}

// WithToolCall 追加一次工具调用回复
func (m *MockProvider) WithToolCall(name string, args any) *MockProvider {
	return m.WithScript(Reply{ToolName: name, ToolArgs: args})
}

// WithError 设置每次调用都返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay 设置响应延迟，延迟期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// --- Provider 接口实现 ---

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	return "mock"
}

// Completion 按脚本生成响应
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay, fn, err := m.delay, m.completionFunc, m.err
	var reply *Reply
	if fn == nil && err == nil {
		if len(m.script) > 0 {
			r := m.script[0]
			m.script = m.script[1:]
			reply = &r
		} else {
			reply = &Reply{Text: m.response}
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	msg := llm.Message{Role: llm.RoleAssistant, Content: reply.Text}
	if reply.ToolName != "" {
		args, jerr := json.Marshal(reply.ToolArgs)
		if jerr != nil {
			return nil, fmt.Errorf("mock provider: marshal tool args: %w", jerr)
		}
		msg.ToolCalls = []llm.ToolCall{{
			ID:        fmt.Sprintf("call_%d", len(m.Calls())),
			Name:      reply.ToolName,
			Arguments: args,
		}}
	}

	return &llm.ChatResponse{
		ID:       "mock-response-id",
		Provider: "mock",
		Model:    req.Model,
		Choices:  []llm.ChatChoice{{Index: 0, FinishReason: "stop", Message: msg}},
		Usage:    llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

// --- 调用记录 ---

// Calls 返回所有请求的副本
func (m *MockProvider) Calls() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*llm.ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest 返回最后一次请求
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}
