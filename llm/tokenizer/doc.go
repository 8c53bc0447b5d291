// Package tokenizer 提供统一的 Token 计数与截断接口，
// 支持 tiktoken 精确计数与 CJK 估算器，用于把技能结果裁剪进组合提示词的预算内。
package tokenizer
