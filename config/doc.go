// Copyright (c) SkillFlow Authors.

// Package config 提供 SkillFlow 的配置加载。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加，
// 环境变量以 SKILLFLOW 为前缀，由结构体的 env tag 推导键名，
// 例如 SKILLFLOW_DISPATCH_TOP_K。
package config
