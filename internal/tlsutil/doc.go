// Copyright (c) SkillFlow Authors.

// Package tlsutil 为出站 HTTP 调用（语言模型、嵌入服务、内置 webhook 技能）
// 提供统一的客户端：TLS 1.2+、AEAD 密码套件、遵循 HTTPS_PROXY 等代理环境变量。
package tlsutil
