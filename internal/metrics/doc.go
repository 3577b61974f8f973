// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、LLM、
路由（轮次、跳数、转移）、会话存储提交与检索缓存五个维度。

# 概述

Collector 持有独立的 prometheus.Registry，通过 promauto.With 注册指标，
同一进程内可创建多个实例（例如测试）而不会重复注册。Handler 暴露
/metrics 端点。所有 Record 方法对 nil 接收者安全，未启用指标时组件
直接传入 nil 即可。
*/
package metrics
