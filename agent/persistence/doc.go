// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供会话（Conversation）的持久化存储抽象及多后端实现。

# 概述

会话是问答路由的持久状态：有序且只追加的轮次（Turn）列表、
当前活跃的应答者（ActiveResponder）以及单调递增的版本号。
每次提交都携带调用方读取时看到的版本，只有版本一致时才会写入，
从而保证并发请求下轮次不会丢失或交错。

# 核心接口

  - Store: 所有存储的基础接口，提供 Close 和 Ping 健康检查。
  - ConversationStore: Load 读取会话（未知 ID 返回版本 0 的空会话），
    Commit 在版本匹配时追加一个轮次并更新活跃应答者，
    不匹配时返回 ErrVersionConflict 且不做任何修改。

# 核心模型

  - Conversation: 会话 ID、轮次、活跃应答者与版本号。
  - Turn: 一个问题及其完整的处理链（Step 列表），以最终答案结尾。
  - Step: 一次应答者调用，结果为 answer 或 handoff。

# 后端实现

  - Memory: 内存实现，适合开发与测试，重启后数据丢失。
  - File: 每个会话一个 JSON 文件，临时文件加重命名原子写入，适合单节点部署。
  - Redis: WATCH/MULTI 乐观事务，适合分布式部署。
  - SQL: 基于 gorm 的 conversations / conversation_turns 两张表，
    版本条件更新与轮次插入在同一事务内完成，支持 Postgres、MySQL、SQLite。

# 使用方式

	store, err := persistence.NewConversationStore(config, persistence.Dependencies{
		Redis:  redisManager,
		DB:     poolManager,
		Logger: logger,
	})
*/
package persistence
