// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 封装 go-redis 客户端，为会话存储、检索集合存储与跨进程构建锁
提供共享的 Redis 连接。

# 核心类型

  - Manager：持有 Redis 客户端，提供 Get/SetNX/Exists/Keys 等基础操作，
    以及 TryLock/Unlock 令牌锁；Client 暴露底层客户端供 WATCH 事务使用。
  - Config：地址、密码、连接池大小与健康检查间隔。

# 主要能力

  - 连接池管理：通过 PoolSize 与 MinIdleConns 控制连接复用。
  - 健康检查：后台定时 Ping，异常时通过 zap 日志告警，Close 时退出。
  - 分布式锁：SET NX PX 加锁，Lua 脚本比较令牌后删除。
  - 错误语义：ErrCacheMiss 与 ErrLockNotHeld 哨兵错误。
*/
package cache
