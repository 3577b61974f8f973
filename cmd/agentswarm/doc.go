// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package main 提供 AgentSwarm 服务端与命令行入口。

# 概述

cmd/agentswarm 把检索缓存、应答者注册表、会话存储与 HTTP API 装配为
一个可执行程序。启动时先确保配置的文档已构建为检索集合，集合就绪后
才开始接受请求。

# 子命令

  - serve        启动 HTTP 服务（POST /chat、/health、/ready、/healthz、/metrics）
  - chat         终端交互对话，支持 -conversation 恢复会话
  - ingest       预构建（或复用）文档集合并打印指纹
  - collections  列出已构建集合，-json 输出 JSON
  - health       调用 /health 检查运行中的服务
  - version      打印构建注入的版本信息

# 中间件链

Recovery、RequestID、SecurityHeaders、OTelTracing、MetricsMiddleware、
RequestLogger、RateLimiter（基于 IP 的令牌桶）。

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
