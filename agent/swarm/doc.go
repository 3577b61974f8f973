// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 swarm 实现问答路由器：在多个应答者之间按有界转交次数调度问题，
并以乐观版本检查提交会话。

# 状态机

	AwaitingInput → Dispatch(responder) → Answered
	                                    → HandoffRequested(target) → Dispatch(target)
	                                    → Failed

转交次数达到 max_hops 后再次请求转交即进入 Failed（ROUTING_EXHAUSTED）。
转交到未注册的应答者或应答者返回非结构化错误时为 RESPONDER_FAILURE。

# 入口

  - Handle：加载会话、选择初始应答者、循环调度直到得到答案，
    返回未提交的 Result（答案、应答者、新轮次与提交后的会话视图）。
  - Commit：以 Handle 时读到的版本提交；版本不符返回
    CONCURRENT_MODIFICATION，绝不覆盖。
  - Run：在同一个 turn_timeout 截止时间内执行 Handle 与 Commit。

# 初始应答者

initial_policy=resume（默认）时沿用上一轮的活跃应答者，仅在首轮按关键词分类；
reclassify 时每轮分类。分类平局或置信度低于 min_confidence 时回退到
上一轮的活跃应答者，首轮回退到 default_responder。

路由器本身无状态，所有会话状态都在 persistence.ConversationStore 中。
*/
package swarm
