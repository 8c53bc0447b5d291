// Copyright (c) SkillFlow Authors.

/*
包 embedding 提供统一的文本嵌入接口与 OpenAI 兼容实现，
用于把技能描述、分组描述以及用户查询转换为向量。

# 核心接口

  - Provider：统一嵌入接口，定义 Embed、EmbedQuery、EmbedDocuments。
  - EmbeddingRequest / EmbeddingResponse：标准化的请求与响应模型。
  - BaseProvider：公共基类，封装 HTTP 请求、错误映射与分批辅助方法。

# 主要能力

  - OpenAI 兼容：任何暴露 /v1/embeddings 的服务都可以通过 BaseURL 接入。
  - 分批嵌入：EmbedDocuments 按 MaxBatchSize 切分，并按返回的 index 还原顺序。
  - 错误映射：HTTP 状态映射为 llm.Error，429/5xx 标记为可重试。

# 使用方式

	p := embedding.NewOpenAIProvider(embedding.OpenAIConfig{APIKey: key})
	vec, err := p.EmbedQuery(ctx, "what's the weather in Paris?")
*/
package embedding
