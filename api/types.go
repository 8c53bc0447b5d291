package api

import (
	"github.com/BaSui01/skillflow/dispatch"
	"github.com/BaSui01/skillflow/types"
)

// =============================================================================
// 请求处理类型
// =============================================================================

// AskRequest 是 POST /v1/ask 的请求体。
// @Description 自然语言请求
type AskRequest struct {
	// 用户的自然语言请求
	Query string `json:"query" example:"What is 17 * 23?" binding:"required"`
}

// AskResponse 是 POST /v1/ask 的响应数据。
// @Description 回答与调度记录
type AskResponse struct {
	// 最终回答
	Answer string `json:"answer"`
	// 选择、绑定、调用的完整记录
	Transcript *dispatch.Transcript `json:"transcript"`
}

// =============================================================================
// 技能类型
// =============================================================================

// SkillInfo 描述一个已注册的技能。
// @Description 技能描述
type SkillInfo struct {
	// 技能名称
	Name string `json:"name" example:"calculator"`
	// 技能说明（用于语义选择）
	Description string `json:"description"`
	// 所属分组（仅分层模式）
	Group string `json:"group,omitempty" example:"math"`
	// 参数的 JSON Schema
	Parameters *types.JSONSchema `json:"parameters"`
}

// GroupInfo 描述一个技能分组。
// @Description 分组描述
type GroupInfo struct {
	Name        string   `json:"name" example:"math"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// SkillListResponse 是 GET /v1/skills 的响应数据。
// @Description 技能列表
type SkillListResponse struct {
	// 注册表模式: flat, hierarchical
	Mode   string      `json:"mode" example:"hierarchical"`
	Skills []SkillInfo `json:"skills"`
	Groups []GroupInfo `json:"groups,omitempty"`
}

// InvokeRequest 是 POST /v1/skills/{name}/invoke 的请求体，按名称直接调用技能。
// @Description 直接调用技能
type InvokeRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// InvokeResponse 是直接调用的结果。
// @Description 技能调用结果
type InvokeResponse struct {
	Skill  string `json:"skill"`
	Result any    `json:"result"`
}
