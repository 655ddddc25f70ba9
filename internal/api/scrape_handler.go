package api

import (
	"net/http"
	"time"

	"TournamentSync/internal/consolidation"
	"TournamentSync/internal/fetch"
	"TournamentSync/internal/model"
	"TournamentSync/internal/parser"
	"TournamentSync/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ScrapeHandler 单 URL 抓取入口：经缓存层级抓取，解析入库，多日航段触发归并
type ScrapeHandler struct {
	pipeline *fetch.Pipeline
	parser   parser.GameParser
	games    repository.GameRepository
	engine   *consolidation.Engine
	logger   *logrus.Logger
}

// NewScrapeHandler 创建 ScrapeHandler
func NewScrapeHandler(
	pipeline *fetch.Pipeline,
	gp parser.GameParser,
	games repository.GameRepository,
	engine *consolidation.Engine,
	logger *logrus.Logger,
) *ScrapeHandler {
	return &ScrapeHandler{pipeline: pipeline, parser: gp, games: games, engine: engine, logger: logger}
}

type scrapeRequest struct {
	URL          string `json:"url" binding:"required"`
	HTML         string `json:"html,omitempty"` // 给出时走手工上传，不抓取上游
	ForceRefresh bool   `json:"forceRefresh,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
}

type scrapeResponse struct {
	Fetch         *fetch.FetchResult           `json:"fetch"`
	GameID        string                       `json:"gameId,omitempty"`
	IsMultiDay    bool                         `json:"isMultiDay"`
	Consolidation *consolidation.ProcessResult `json:"consolidation,omitempty"`
}

// Scrape 抓取或上传单个比赛页面
// POST /api/scrape
func (h *ScrapeHandler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		res *fetch.FetchResult
		err error
	)
	if req.HTML != "" {
		res, err = h.pipeline.Upload(c.Request.Context(), req.URL, []byte(req.HTML))
	} else {
		res, err = h.pipeline.Fetch(c.Request.Context(), req.URL, fetch.FetchOptions{
			ForceRefresh: req.ForceRefresh,
			CountryCode:  req.CountryCode,
		})
	}
	if err != nil {
		h.logger.WithError(err).WithField("url", req.URL).Error("抓取失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := scrapeResponse{Fetch: res}
	if !res.Success || res.Source == fetch.SourceNotFound || len(res.Body) == 0 {
		c.JSON(http.StatusOK, resp)
		return
	}

	game, perr := h.parser.Parse(c.Request.Context(), res.Body, req.URL)
	if perr != nil {
		h.logger.WithError(perr).WithField("url", req.URL).Warn("页面解析失败")
		c.JSON(http.StatusOK, resp)
		return
	}

	// 同一 URL 重抓复用已有行，避免每次解析都插新记录
	if existing, gerr := h.games.GetBySourceURL(c.Request.Context(), req.URL); gerr != nil {
		h.logger.WithError(gerr).WithField("url", req.URL).Warn("查询已有比赛失败")
	} else if existing != nil {
		game.ID = existing.ID
	}

	det := consolidation.DetectMultiDay(game)
	if det.IsMultiDay {
		game.IsMultiDayTournament = true
		if game.DayNumber == nil {
			game.DayNumber = det.DayNumber
		}
		if game.FlightLetter == nil {
			game.FlightLetter = det.FlightLetter
		}
		if game.FinalDay == nil && det.IsFinalDay {
			final := true
			game.FinalDay = &final
		}
	}
	game.ContentHash = res.ContentHash
	if res.Changed {
		now := time.Now()
		game.DataChangedAt = &now
	}
	if err := h.games.UpsertFromSource(c.Request.Context(), game); err != nil {
		h.logger.WithError(err).WithField("url", req.URL).Error("比赛入库失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	resp.GameID = game.ID
	resp.IsMultiDay = det.IsMultiDay

	if det.IsMultiDay && game.Status != model.GameStatusNotPublished {
		// 补偿增量只允许内容真正变化的抓取触发
		cres, cerr := h.engine.HandleMultiDayGame(c.Request.Context(), game, res.Changed)
		if cerr != nil {
			h.logger.WithError(cerr).WithField("url", req.URL).Warn("归并处理失败")
		} else {
			resp.Consolidation = cres
		}
	}

	c.JSON(http.StatusOK, resp)
}
