// 版权所有 2024 SkillFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义语言模型协作者的接入层：Provider 抽象、请求/响应模型与
Provider 层错误。

# 概述

SkillFlow 在两个环节依赖语言模型：参数绑定（结构化抽取）与最终回答
组合。两者都只需要同步补全，因此 [Provider] 只保留 Completion /
HealthCheck / Name。

# 子包

  - embedding：嵌入提供者（OpenAI 兼容 /v1/embeddings）
  - providers/openaicompat：OpenAI 兼容的聊天补全 Provider
  - retry：指数退避重试，以及 Provider / Embedder 的重试装饰器
  - tokenizer：Token 计数与截断（tiktoken / 估算器）

# 错误

[Error] 携带 HTTP 状态与 Retryable 标记，并实现 IsRetryable，
上层通过 types.WrapError 把它包装为 LANGUAGE_MODEL_UNAVAILABLE 或
EMBEDDING_UNAVAILABLE 时保留可重试语义。
*/
package llm
