// Copyright (c) SkillFlow Authors.

// Package telemetry 初始化 OpenTelemetry SDK（OTLP gRPC 导出 trace 与 metric），
// 并注册为全局 Provider，供调度器与 HTTP 中间件打点。
// 禁用时不连接任何外部服务。
package telemetry
