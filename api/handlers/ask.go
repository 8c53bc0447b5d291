package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BaSui01/skillflow/api"
	"github.com/BaSui01/skillflow/dispatch"
	"github.com/BaSui01/skillflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 请求处理 Handler
// =============================================================================

// Asker 处理一条自然语言请求（*dispatch.Dispatcher 即是）
type Asker interface {
	HandleWithTranscript(ctx context.Context, query string) (*dispatch.Result, error)
}

// AskHandler 处理 POST /v1/ask
type AskHandler struct {
	asker  Asker
	logger *zap.Logger
}

// NewAskHandler 创建请求处理器
func NewAskHandler(asker Asker, logger *zap.Logger) *AskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskHandler{asker: asker, logger: logger.With(zap.String("component", "ask_handler"))}
}

// HandleAsk 选择技能、绑定参数、调用并组合回答
// @Summary 处理自然语言请求
// @Tags 请求
// @Accept json
// @Produce json
// @Param request body api.AskRequest true "请求"
// @Success 200 {object} api.AskResponse "回答与调度记录"
// @Failure 400 {object} Response "无效请求"
// @Failure 503 {object} Response "嵌入或语言模型不可用"
// @Failure 504 {object} Response "超时"
// @Router /v1/ask [post]
func (h *AskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, r, types.NewError(types.ErrInvalidArgument, "query is required"), h.logger)
		return
	}

	res, err := h.asker.HandleWithTranscript(r.Context(), req.Query)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, api.AskResponse{Answer: res.Answer, Transcript: res.Transcript})
}
