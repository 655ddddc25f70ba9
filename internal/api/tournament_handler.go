package api

import (
	"net/http"
	"strconv"

	"TournamentSync/internal/consolidation"
	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TournamentHandler 归并结果查询接口（父记录列表/详情 + 归并预览）
type TournamentHandler struct {
	games     repository.GameRepository
	players   repository.PlayerRepository
	previewer *consolidation.Previewer
	logger    *logrus.Logger
}

// NewTournamentHandler 创建 TournamentHandler
func NewTournamentHandler(games repository.GameRepository, players repository.PlayerRepository, logger *logrus.Logger) *TournamentHandler {
	return &TournamentHandler{
		games:     games,
		players:   players,
		previewer: consolidation.NewPreviewer(games, logger),
		logger:    logger,
	}
}

// ListTournaments 归并父记录列表
// GET /api/tournaments?status=FINISHED&venue_id=xxx&year_month=2026-08&page=1&page_size=20
func (h *TournamentHandler) ListTournaments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	filter := repository.ParentFilter{
		Status:    model.GameStatus(c.Query("status")),
		VenueID:   c.Query("venue_id"),
		YearMonth: c.Query("year_month"),
	}

	parents, total, err := h.games.ListParents(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("查询父记录列表失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"items":     parents,
	})
}

// GetTournamentDetail 父记录详情：含子航段与归并后的选手行
// GET /api/tournaments/:game_id
func (h *TournamentHandler) GetTournamentDetail(c *gin.Context) {
	gameID := c.Param("game_id")
	if gameID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game_id is required"})
		return
	}

	parent, err := h.games.GetByID(c.Request.Context(), gameID)
	if err != nil {
		h.logger.WithError(err).Error("查询父记录失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if parent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tournament not found"})
		return
	}

	children, err := h.games.ListChildren(c.Request.Context(), gameID)
	if err != nil {
		h.logger.WithError(err).Error("查询子航段失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	entries, err := h.players.ListEntriesByGame(c.Request.Context(), gameID)
	if err != nil {
		h.logger.WithError(err).Error("查询聚合条目失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	results, err := h.players.ListResultsByGame(c.Request.Context(), gameID)
	if err != nil {
		h.logger.WithError(err).Error("查询归并成绩失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tournament": parent,
		"children":   children,
		"entries":    entries,
		"results":    results,
	})
}

// PreviewConsolidation 归并预览（干跑，不产生写入）
// POST /api/consolidation/preview
func (h *TournamentHandler) PreviewConsolidation(c *gin.Context) {
	var req consolidation.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.previewer.Preview(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("归并预览失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
