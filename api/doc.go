// Package api 定义 SkillFlow HTTP API 的请求与响应类型。
//
// # API 概览
//
//   - POST /v1/ask: 自然语言请求，返回回答与调度记录
//   - GET  /v1/skills: 列出注册表中的技能与分组
//   - POST /v1/skills/{name}/invoke: 按名称直接调用技能（参数仍按 Schema 校验）
//   - GET  /health, /healthz, /ready: 健康检查
//
// 指标在独立端口的 /metrics 上暴露。
//
// 所有响应使用统一结构:
//
//	{"success": true, "data": {...}, "timestamp": "..."}
//	{"success": false, "error": {"code": "INVALID_ARGUMENT", "message": "..."}, "timestamp": "..."}
package api
