// Copyright (c) SkillFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 SkillFlow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 rag、skills、dispatch、
llm、api 等上层模块提供统一的类型契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode: 结构化错误体系（INVALID_DIMENSION、EMPTY_REGISTRY、
    DUPLICATE_SKILL_NAME、MALFORMED_MODEL_RESPONSE、EMBEDDING_UNAVAILABLE 等）
  - Message / ToolCall: 组合最终回答时发送给语言模型的对话消息
  - ToolResult: 单次技能调用结果，可转换为 tool 消息
  - JSONSchema: 技能参数的 JSON Schema 定义与构建器

# 主要能力

  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable / HTTPStatusFor
  - Context 传播：WithTraceID / WithRequestID
*/
package types
