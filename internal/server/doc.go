// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理对话服务 HTTP 监听的生命周期。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Run 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头与优雅关闭超时，
    可由 ConfigFrom 从应用配置的 server 段得到。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中服务。
  - 优雅关闭：Shutdown 在超时内排空进行中的请求。
  - 信号监听：Run 在 SIGINT/SIGTERM 或 ctx 结束时关闭服务。
*/
package server
