// Copyright (c) SkillFlow Authors.

/*
包 providers 提供语言模型适配的公共基础层：OpenAI 兼容报文、
错误映射与消息转换。具体实现位于 openaicompat 子包。

# 核心函数

  - MapHTTPError: 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - BuildRequest / ConvertMessagesToOpenAI: 请求与消息格式转换
  - ToLLMChatResponse: OpenAI 兼容响应到 llm.ChatResponse 的转换
  - ChooseModel: 按优先级选择模型（请求 > 默认 > 兜底）
*/
package providers
