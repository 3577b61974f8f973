// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 agentswarm HTTP API 的请求处理器实现。

# 核心类型

  - ChatHandler      — POST /chat，把问题交给路由器执行并提交一整轮
  - HealthHandler    — /health、/ready（存储与集合就绪）、/healthz、/version
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码与响应大小
  - HealthCheck      — 可插拔健康检查接口，FuncCheck 为函数实现

# 错误映射

WriteError 接受任意 error：详细错误码来自 types.Error，
边界条件来自 types.ConditionOf，状态码优先使用错误上显式设置的值。
*/
package handlers
