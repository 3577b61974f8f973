// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供模型服务商适配的公共基础层：OpenAI 兼容协议的请求/响应结构、
消息与工具转换、HTTP 错误映射。聊天补全（openaicompat）、嵌入（embedding）
与联网搜索（tools）的 HTTP 客户端共用这里的错误语义。

# 核心类型

  - OpenAICompat* 系列 — OpenAI 兼容 API 的请求/响应/工具调用结构体

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为 types.Error（429/5xx 可重试，401/403 为认证错误）
  - TransportError — 网络错误映射为可重试的 PROVIDER_UNAVAILABLE
  - ReadErrorMessage — 从错误响应体中提取可读信息
  - BearerTokenHeaders — 设置 Authorization 与 Content-Type
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI / ToLLMChatResponse — 与 llm 包类型互转
*/
package providers
