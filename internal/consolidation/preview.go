package consolidation

import (
	"context"
	"fmt"

	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// PreviewRequest 归并预览请求（只读，不产生任何写入）
type PreviewRequest struct {
	GameData              *model.Game `json:"gameData" binding:"required"`
	ExistingGameID        string      `json:"existingGameId,omitempty"`
	IncludeSiblingDetails bool        `json:"includeSiblingDetails,omitempty"`
}

// DetectedPattern 预览返回的多日检测详情
type DetectedPattern struct {
	IsMultiDay         bool            `json:"isMultiDay"`
	DetectionSource    DetectionSource `json:"detectionSource"`
	ParsedDayNumber    *int            `json:"parsedDayNumber,omitempty"`
	ParsedFlightLetter *string         `json:"parsedFlightLetter,omitempty"`
	IsFinalDay         bool            `json:"isFinalDay"`
	DerivedParentName  string          `json:"derivedParentName,omitempty"`
}

// SiblingSummary 同父航段摘要
type SiblingSummary struct {
	GameID       string           `json:"gameId"`
	Name         string           `json:"name"`
	DayNumber    *int             `json:"dayNumber,omitempty"`
	FlightLetter *string          `json:"flightLetter,omitempty"`
	Status       model.GameStatus `json:"status"`
	TotalEntries int64            `json:"totalEntries"`
}

// ConsolidationPreview 预览返回的归并详情
type ConsolidationPreview struct {
	ConsolidationKey string           `json:"consolidationKey"`
	KeyStrategy      KeyStrategy      `json:"keyStrategy"`
	Confidence       int              `json:"confidence"`
	ParentExists     bool             `json:"parentExists"`
	ParentGameID     string           `json:"parentGameId,omitempty"`
	ParentName       string           `json:"parentName"`
	SiblingCount     int              `json:"siblingCount"`
	Siblings         []SiblingSummary `json:"siblings,omitempty"`
	ProjectedTotals  *Totals          `json:"projectedTotals,omitempty"`
}

// PreviewResponse 归并预览响应
type PreviewResponse struct {
	WillConsolidate bool                  `json:"willConsolidate"`
	Reason          string                `json:"reason"`
	Warnings        []string              `json:"warnings,omitempty"`
	DetectedPattern DetectedPattern       `json:"detectedPattern"`
	Consolidation   *ConsolidationPreview `json:"consolidation,omitempty"`
}

// Previewer 归并预览（C6 纯逻辑的干跑投影，与真实归并共用同一套函数）
type Previewer struct {
	games  repository.GameRepository
	logger *logrus.Logger
}

// NewPreviewer 创建 Previewer
func NewPreviewer(games repository.GameRepository, logger *logrus.Logger) *Previewer {
	return &Previewer{games: games, logger: logger}
}

// Preview 预览一条比赛记录的归并走向。给定相同输入，
// 结果必须与真实归并一致（检测/键推导/聚合均为共享纯函数）。
func (p *Previewer) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	g := req.GameData
	if g == nil {
		return nil, fmt.Errorf("缺少 gameData")
	}
	if req.ExistingGameID != "" && g.ID == "" {
		g.ID = req.ExistingGameID
	}

	det := DetectMultiDay(g)
	resp := &PreviewResponse{
		DetectedPattern: DetectedPattern{
			IsMultiDay:         det.IsMultiDay,
			DetectionSource:    det.Source,
			ParsedDayNumber:    det.DayNumber,
			ParsedFlightLetter: det.FlightLetter,
			IsFinalDay:         det.IsFinalDay,
		},
	}
	if !det.IsMultiDay {
		resp.Reason = "非多日比赛，不参与归并"
		return resp, nil
	}
	resp.DetectedPattern.DerivedParentName = DeriveParentName(g)

	key := DeriveGroupingKey(g)
	if !key.Qualified() {
		resp.Reason = "归并键推导失败"
		resp.Warnings = append(resp.Warnings,
			fmt.Sprintf("缺失字段: %v，记录将被跳过", key.MissingFields))
		return resp, nil
	}

	cons := &ConsolidationPreview{
		ConsolidationKey: key.Key,
		KeyStrategy:      key.Strategy,
		Confidence:       key.Confidence,
		ParentName:       resp.DetectedPattern.DerivedParentName,
	}
	resp.WillConsolidate = true
	resp.Reason = fmt.Sprintf("多日比赛，按 %s 策略归并", key.Strategy)
	resp.Consolidation = cons

	parent, err := p.games.FindParentByKey(ctx, key.Key)
	if err != nil {
		return nil, fmt.Errorf("查询父记录失败: %w", err)
	}
	if parent == nil {
		return resp, nil
	}
	cons.ParentExists = true
	cons.ParentGameID = parent.ID
	cons.ParentName = parent.Name

	siblings, err := p.games.ListChildren(ctx, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("拉取同父航段失败: %w", err)
	}
	cons.SiblingCount = len(siblings)
	if req.IncludeSiblingDetails {
		for _, s := range siblings {
			cons.Siblings = append(cons.Siblings, SiblingSummary{
				GameID:       s.ID,
				Name:         s.Name,
				DayNumber:    s.DayNumber,
				FlightLetter: s.FlightLetter,
				Status:       s.Status,
				TotalEntries: s.TotalEntries,
			})
		}
	}

	// 投影聚合：把待保存的记录并入现有航段后干跑一次重算
	projected := make([]*model.Game, 0, len(siblings)+1)
	seen := false
	for _, s := range siblings {
		if g.ID != "" && s.ID == g.ID {
			projected = append(projected, g)
			seen = true
			continue
		}
		projected = append(projected, s)
	}
	if !seen {
		projected = append(projected, g)
	}
	totals, warnings := CalculateAggregatedTotals(projected, nil)
	cons.ProjectedTotals = totals
	resp.Warnings = append(resp.Warnings, warnings...)

	return resp, nil
}
