package api

import (
	"net/http"

	"TournamentSync/internal/consolidation"
	"TournamentSync/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EventHandler 比赛变更事件入口（归并引擎的事件边界）
type EventHandler struct {
	engine *consolidation.Engine
	logger *logrus.Logger
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(engine *consolidation.Engine, logger *logrus.Logger) *EventHandler {
	return &EventHandler{engine: engine, logger: logger}
}

type eventBatchRequest struct {
	Events []consolidation.StreamEvent `json:"events" binding:"required"`
}

type eventBatchResponse struct {
	Total     int                            `json:"total"`
	Processed int                            `json:"processed"`
	Skipped   int                            `json:"skipped"`
	Failed    int                            `json:"failed"`
	Results   []*consolidation.ProcessResult `json:"results"`
}

// validateImage 入口枚举校验：未知状态值直接拒绝，不静默兜底
func validateImage(g *model.Game) error {
	if g == nil {
		return nil
	}
	if _, err := model.ParseGameStatus(string(g.Status)); err != nil {
		return err
	}
	if g.RegistrationStatus != "" {
		if _, err := model.ParseRegistrationStatus(string(g.RegistrationStatus)); err != nil {
			return err
		}
	}
	if _, err := model.ParseConsolidationType(string(g.ConsolidationType)); err != nil {
		return err
	}
	return nil
}

// IngestGameEvents 比赛变更事件批量入口，批内顺序处理
// POST /api/events/game
func (h *EventHandler) IngestGameEvents(c *gin.Context) {
	var req eventBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := eventBatchResponse{Total: len(req.Events)}
	for _, evt := range req.Events {
		if err := validateImage(evt.NewImage); err != nil {
			h.logger.WithError(err).Warn("事件镜像字段非法")
			resp.Failed++
			resp.Results = append(resp.Results, &consolidation.ProcessResult{SkipReason: err.Error()})
			continue
		}
		res, err := h.engine.ProcessEvent(c.Request.Context(), evt)
		if err != nil {
			h.logger.WithError(err).Error("事件处理失败")
			resp.Failed++
			resp.Results = append(resp.Results, &consolidation.ProcessResult{SkipReason: err.Error()})
			continue
		}
		if res.Processed {
			resp.Processed++
		} else {
			resp.Skipped++
		}
		resp.Results = append(resp.Results, res)
	}

	c.JSON(http.StatusOK, resp)
}
