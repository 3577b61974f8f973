// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package llm 定义 agentswarm 使用的语言模型能力接口。

# 概述

responder 只依赖一个最小契约：complete(prompt, tools) → text | tool_call。
Provider 负责 HTTP 传输，Complete 将首个 choice 归约为 Outcome，
并对只读的补全请求执行有界重试。

# 子包

  - retry：指数退避重试器
  - providers/openaicompat：OpenAI 兼容的聊天补全实现
  - embedding：向量模型接口与 OpenAI 兼容实现
  - tools：联网搜索接口与 Tavily 实现
  - tokenizer：分块使用的 token 计数
*/
package llm
