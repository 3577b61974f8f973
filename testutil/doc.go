// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 agentswarm 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / WaitFor
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockProvider（脚本化 LLM）、CountingEmbedder（确定性
    词袋嵌入器，记录调用次数）、StaticSearch（固定结果的联网搜索）
  - testutil/fixtures: 示例简历文档
*/
package testutil
