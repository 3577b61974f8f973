// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentswarm 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、rag、llm、api 等
上层模块提供统一的错误契约与上下文传播工具。

# 核心类型

  - Error / ErrorCode — 结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - Condition         — 边界层暴露的固定失败条件集合
    (not_ready / invalid_input / upstream_timeout / routing_exhausted)

# 主要能力

  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable / FromContext
  - 条件映射：ConditionOf 将任意错误折叠为四种边界条件之一
  - Context 传播：WithTraceID / WithRequestID / WithConversationID
*/
package types
