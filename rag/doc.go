// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 提供按文档指纹缓存的检索层：每份源文档只分块、嵌入一次，
得到的集合（Collection）持久化到 CollectionStore，之后的查询直接复用。

# 核心接口/类型

  - Cache — EnsureBuilt / EnsureDocument / Retrieve / Collections / Ready
  - CollectionStore — 集合持久化（Get / Exists / Put / List / Close），Put 对同一指纹只成功一次
  - BuildLocker — 按指纹串行化构建；LocalLocker（进程内）与 RedisLocker（跨进程，带续期）
  - DocumentChunker — 递归分块器，段落 > 行 > 句子 > 单词
  - Fingerprint — "sha256:<hex>" 内容指纹

# 存储后端

  - memory：进程内 map，测试与单机使用
  - file：每个集合一个 JSON 文件，临时文件 + link 原子发布
  - redis：SETNX 写入，SCAN 枚举
  - sql：gorm（postgres / mysql / sqlite），事务内写入集合与分块

# 构建语义

同一指纹的并发调用在进程内经 singleflight 合并，跨进程经 BuildLocker 串行；
持锁后重新检查存储，已存在则直接复用。嵌入失败时不写入任何集合，
下次调用会重新构建。

# 检索语义

Retrieve 返回余弦相似度不低于阈值的前 N 个分块，分数降序，分数相同时按文档顺序。
集合尚未构建时返回 COLLECTION_NOT_READY。
*/
package rag
