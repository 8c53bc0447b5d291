// Copyright (c) SkillFlow Authors.

/*
Package handlers 提供 SkillFlow HTTP API 的请求处理器实现。

# 核心类型

  - AskHandler: POST /v1/ask，完整的选择 → 绑定 → 调用 → 组合流程
  - SkillsHandler: GET /v1/skills 列出注册表；POST /v1/skills/{name}/invoke 按名称直接调用
  - HealthHandler: /health、/healthz、/ready，可注册任意 HealthCheck
  - Response: 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码

# 错误映射

错误统一经 WriteError 输出，状态码来自 types.HTTPStatusFor：
参数错误 400、技能不存在 404、嵌入或语言模型不可用 503、超时 504。
非 types.Error 的错误按 500 处理，原文只写日志不返回客户端。
*/
package handlers
