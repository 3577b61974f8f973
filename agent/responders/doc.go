// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 responders 提供路由器可调度的两种应答者实现。

# 概述

应答者是一个封闭的变体集合（Kind），都实现 handoff.Responder：

  - DocumentResponder：先从检索缓存取出与问题相关的简历片段
    （默认最多 7 条、相似度阈值 0.5），再让模型仅基于这些片段作答；
    问题超出简历范围时调用 transfer_to_search_responder 转交。
  - SearchResponder：总是先执行网络搜索（默认 Tavily，最多 5 条、
    advanced 深度、附带摘要答案），再让模型基于搜索结果作答；
    涉及简历的问题转交给 DocumentResponder。

模型与搜索调用的瞬时错误在应答者内部按退避策略有限重试，
之后以结构化错误（types.Error）向上抛出。

# 构造

	resp, err := responders.New(responders.KindDocument, deps)
	registry, err := responders.NewRegistry(deps)
*/
package responders
