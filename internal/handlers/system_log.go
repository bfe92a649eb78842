package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/middleware"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService}
}

// List returns audit entries filtered by level, module, action, user and date range
// GET /api/v1/system_logs
func (h *SystemLogHandler) List(c *gin.Context) {
	if err := services.Authorize(middleware.CurrentUser(c), services.ActionIndex, services.Resource{Kind: services.KindSystemLog}); err != nil {
		response.Error(c, err)
		return
	}

	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	resp, err := h.systemLogService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
