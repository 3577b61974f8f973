// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 embedding 提供统一的文本嵌入（Embedding）接口与 OpenAI 兼容实现，
检索缓存通过它把文档分块与查询转换为向量。

# 核心接口

  - Provider：EmbedQuery / EmbedDocuments / Name / Model / Dimensions / MaxBatchSize
  - BaseProvider：公共基类，封装 HTTP 请求与错误映射
  - OpenAIProvider：/v1/embeddings 实现，按 MaxBatchSize 分批

# 错误语义

上游 5xx、429 与网络错误映射为可重试的 PROVIDER_UNAVAILABLE / RATE_LIMITED，
由调用方（检索缓存）决定重试次数。
*/
package embedding
