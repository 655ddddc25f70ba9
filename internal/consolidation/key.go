package consolidation

import (
	"fmt"
	"regexp"
	"strings"

	"TournamentSync/internal/model"
)

// KeyStrategy 归并键推导策略，置信度从高到低依次尝试
type KeyStrategy string

const (
	StrategySeriesEvent       KeyStrategy = "SERIES_EVENT"        // 置信度 100
	StrategyEntitySeriesEvent KeyStrategy = "ENTITY_SERIES_EVENT" // 置信度 95
	StrategyVenueEventDate    KeyStrategy = "VENUE_EVENT_DATE"    // 置信度 90
	StrategyVenueBuyinDate    KeyStrategy = "VENUE_BUYIN_DATE"    // 置信度 70
	StrategyNone              KeyStrategy = "NONE"
)

// KeyResult 归并键推导结果。Key 为空表示所有策略均不满足，
// MissingFields 列出全部缺失字段供诊断，该记录跳过、绝不强行分组。
type KeyResult struct {
	Key           string
	Strategy      KeyStrategy
	Confidence    int
	MissingFields []string
}

// Qualified 是否推导出可用的归并键
func (k KeyResult) Qualified() bool { return k.Key != "" }

var nonAlphaNum = regexp.MustCompile(`[^A-Z0-9]+`)

// cleanToken 大写化并去掉所有非字母数字字符。
// 清洗后 token 只含 [A-Z0-9]，与固定标签（SERIES/ENT/SER/EVT/VEN/BI/DT)
// 之间不会产生分隔符碰撞。
func cleanToken(s string) string {
	return nonAlphaNum.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "")
}

// DeriveGroupingKey 按置信度降序尝试四种策略，返回第一个满足条件的键。
// 比赛名称绝不参与键推导：后缀变体（Turbo/Deep/Day 1A/Flight B）会让名称不稳定。
func DeriveGroupingKey(g *model.Game) KeyResult {
	if g == nil {
		return KeyResult{Strategy: StrategyNone, MissingFields: []string{"gameRecord"}}
	}

	hasSeriesID := g.TournamentSeriesID != nil && *g.TournamentSeriesID != ""
	hasSeriesName := g.SeriesName != nil && strings.TrimSpace(*g.SeriesName) != ""
	hasEventNumber := g.EventNumber != nil
	hasEntity := g.EntityID != ""
	hasVenue := g.VenueID != ""
	hasBuyIn := g.BuyIn > 0
	hasDate := g.GameStartDateTime != nil && !g.GameStartDateTime.IsZero()

	// SERIES_EVENT：系列赛ID + 赛事编号，最稳定
	if hasSeriesID && hasEventNumber {
		return KeyResult{
			Key:        fmt.Sprintf("SERIES_%s_EVT_%d", cleanToken(*g.TournamentSeriesID), *g.EventNumber),
			Strategy:   StrategySeriesEvent,
			Confidence: 100,
		}
	}

	// ENTITY_SERIES_EVENT：主体 + 系列名 + 编号 + 年月
	if hasEntity && hasSeriesName && hasEventNumber && hasDate {
		return KeyResult{
			Key: fmt.Sprintf("ENT_%s_SER_%s_EVT_%d_DT_%s",
				cleanToken(g.EntityID), cleanToken(*g.SeriesName), *g.EventNumber,
				g.GameStartDateTime.Format("2006-01")),
			Strategy:   StrategyEntitySeriesEvent,
			Confidence: 95,
		}
	}

	// VENUE_EVENT_DATE：场馆 + 编号 + 买入 + 年月
	if hasVenue && hasEventNumber && hasBuyIn && hasDate {
		return KeyResult{
			Key: fmt.Sprintf("VEN_%s_EVT_%d_BI_%d_DT_%s",
				cleanToken(g.VenueID), *g.EventNumber, g.BuyIn,
				g.GameStartDateTime.Format("2006-01")),
			Strategy:   StrategyVenueEventDate,
			Confidence: 90,
		}
	}

	// VENUE_BUYIN_DATE：场馆 + 买入 + 年月，最后兜底
	if hasVenue && hasBuyIn && hasDate {
		return KeyResult{
			Key: fmt.Sprintf("VEN_%s_BI_%d_DT_%s",
				cleanToken(g.VenueID), g.BuyIn,
				g.GameStartDateTime.Format("2006-01")),
			Strategy:   StrategyVenueBuyinDate,
			Confidence: 70,
		}
	}

	// 全部不满足：列出所有缺失字段
	var missing []string
	if !hasSeriesID {
		missing = append(missing, "tournamentSeriesId")
	}
	if !hasSeriesName {
		missing = append(missing, "seriesName")
	}
	if !hasEventNumber {
		missing = append(missing, "eventNumber")
	}
	if !hasEntity {
		missing = append(missing, "entityId")
	}
	if !hasVenue {
		missing = append(missing, "venueId")
	}
	if !hasBuyIn {
		missing = append(missing, "buyIn")
	}
	if !hasDate {
		missing = append(missing, "gameStartDateTime")
	}
	return KeyResult{Strategy: StrategyNone, MissingFields: missing}
}
