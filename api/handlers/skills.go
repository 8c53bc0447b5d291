package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/skillflow/api"
	"github.com/BaSui01/skillflow/skills"
	"github.com/BaSui01/skillflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🧰 技能 Handler
// =============================================================================

// SkillInvoker 暴露注册表并支持按名称直接调用（*dispatch.Dispatcher 即是）
type SkillInvoker interface {
	Registry() *skills.Registry
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// SkillsHandler 处理 /v1/skills 下的请求
type SkillsHandler struct {
	invoker SkillInvoker
	logger  *zap.Logger
}

// NewSkillsHandler 创建技能处理器
func NewSkillsHandler(invoker SkillInvoker, logger *zap.Logger) *SkillsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SkillsHandler{invoker: invoker, logger: logger.With(zap.String("component", "skills_handler"))}
}

// HandleList 列出注册表中的技能与分组
// @Summary 列出技能
// @Tags 技能
// @Produce json
// @Success 200 {object} api.SkillListResponse "技能列表"
// @Router /v1/skills [get]
func (h *SkillsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, DescribeRegistry(h.invoker.Registry()))
}

// HandleInvoke 按名称直接调用技能，绕过语义选择；参数仍按 Schema 校验
// @Summary 直接调用技能
// @Tags 技能
// @Accept json
// @Produce json
// @Param name path string true "技能名称（不区分大小写）"
// @Param request body api.InvokeRequest true "参数"
// @Success 200 {object} api.InvokeResponse "调用结果"
// @Failure 400 {object} Response "参数无效"
// @Failure 404 {object} Response "技能不存在"
// @Router /v1/skills/{name}/invoke [post]
func (h *SkillsHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidArgument, "skill name is required"), h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.InvokeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.invoker.Invoke(r.Context(), name, req.Arguments)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	skill := name
	if d, ok := h.invoker.Registry().Lookup(name); ok {
		skill = d.Name
	}
	WriteSuccess(w, r, api.InvokeResponse{Skill: skill, Result: result})
}

// DescribeRegistry 把注册表渲染为 API 视图（CLI 的 skills 子命令也使用）
func DescribeRegistry(reg *skills.Registry) api.SkillListResponse {
	out := api.SkillListResponse{
		Mode:   string(reg.Mode()),
		Skills: []api.SkillInfo{},
	}
	for _, d := range reg.Skills() {
		out.Skills = append(out.Skills, api.SkillInfo{
			Name:        d.Name,
			Description: d.Description,
			Group:       reg.GroupOf(d),
			Parameters:  d.Schema(),
		})
	}
	for _, g := range reg.Groups() {
		info := api.GroupInfo{Name: g.Name, Description: g.Description, Skills: []string{}}
		for _, m := range g.Members {
			info.Skills = append(info.Skills, m.Name)
		}
		out.Groups = append(out.Groups, info)
	}
	return out
}
