package api

import (
	"net/http"

	"TournamentSync/internal/refresh"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RefreshHandler 后台刷新的手动触发入口
type RefreshHandler struct {
	controller *refresh.Controller
	logger     *logrus.Logger
}

// NewRefreshHandler 创建 RefreshHandler
func NewRefreshHandler(controller *refresh.Controller, logger *logrus.Logger) *RefreshHandler {
	return &RefreshHandler{controller: controller, logger: logger}
}

// RunRefresh 触发一轮刷新
// POST /api/refresh/run
func (h *RefreshHandler) RunRefresh(c *gin.Context) {
	report, err := h.controller.RunOnce(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("刷新轮次执行失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
