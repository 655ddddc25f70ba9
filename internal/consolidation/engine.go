package consolidation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PlayerConsolidator 旅程归并器的窄接口（由 journey.Reducer 实现，避免包环）。
// 返回该父记录下真实去重选手数。
type PlayerConsolidator interface {
	ConsolidatePlayers(ctx context.Context, parent *model.Game, children []*model.Game, allowStatDeltas bool) (int64, error)
}

// Engine 归并引擎：多日检测、键推导、父记录 upsert、子记录挂接、聚合重算
type Engine struct {
	games        repository.GameRepository
	consolidator PlayerConsolidator
	logger       *logrus.Logger
}

// NewEngine 创建归并引擎
func NewEngine(games repository.GameRepository, consolidator PlayerConsolidator, logger *logrus.Logger) *Engine {
	return &Engine{games: games, consolidator: consolidator, logger: logger}
}

// ProcessResult 单个事件的处理结果
type ProcessResult struct {
	Processed    bool     `json:"processed"`
	SkipReason   string   `json:"skip_reason,omitempty"`
	ParentGameID string   `json:"parent_game_id,omitempty"`
	ParentNew    bool     `json:"parent_new,omitempty"`
	Linked       bool     `json:"linked,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// ProcessEvent 处理单个流事件：过滤 → 键推导 → 父记录 upsert → 挂接 → 重算。
// 挂接成功后聚合重算失败只记日志不回滚：挂接必须存活，下个事件会重试重算。
// MODIFY 缺 oldImage 时无法判定内容是否真的变化，增量门关闭，防止重放把补偿增量打两次。
func (e *Engine) ProcessEvent(ctx context.Context, evt StreamEvent) (*ProcessResult, error) {
	if d := FilterEvent(evt); !d.Process {
		return &ProcessResult{SkipReason: d.Reason}, nil
	}
	allowStatDeltas := evt.EventName != StreamModify || evt.OldImage != nil
	return e.HandleMultiDayGame(ctx, evt.NewImage, allowStatDeltas)
}

// HandleMultiDayGame 把一个多日航段归并到父记录。
// allowStatDeltas 仅当调用源自内容变化事件时为 true（补偿增量的单次触发门）。
func (e *Engine) HandleMultiDayGame(ctx context.Context, child *model.Game, allowStatDeltas bool) (*ProcessResult, error) {
	key := DeriveGroupingKey(child)
	if !key.Qualified() {
		e.logger.WithFields(logrus.Fields{
			"game_id": child.ID,
			"missing": key.MissingFields,
		}).Warn("归并键推导失败，跳过该记录")
		return &ProcessResult{SkipReason: fmt.Sprintf("归并键推导失败，缺失字段: %v", key.MissingFields)}, nil
	}

	parent, err := e.games.FindParentByKey(ctx, key.Key)
	if err != nil {
		return nil, fmt.Errorf("查询父记录失败: %w", err)
	}

	res := &ProcessResult{Processed: true}
	if parent == nil {
		parent = BuildParentRecord(child, key.Key)
		if err := e.games.CreateParent(ctx, parent); err != nil {
			if !errors.Is(err, repository.ErrParentKeyConflict) {
				return nil, fmt.Errorf("创建父记录失败: %w", err)
			}
			// 并发创建输家：重查采用胜者的父记录
			parent, err = e.games.FindParentByKey(ctx, key.Key)
			if err != nil {
				return nil, fmt.Errorf("冲突后重查父记录失败: %w", err)
			}
			if parent == nil {
				return nil, fmt.Errorf("归并键 %s 冲突后父记录仍不存在", key.Key)
			}
		} else {
			res.ParentNew = true
		}
	}
	res.ParentGameID = parent.ID

	// 挂接与重算解耦：挂接一旦成功即持久，后续重算失败不影响
	if child.ParentGameID == nil || *child.ParentGameID != parent.ID {
		linked, err := e.games.LinkChild(ctx, child.ID, parent.ID, key.Key)
		if err != nil {
			return nil, fmt.Errorf("挂接子记录失败: %w", err)
		}
		res.Linked = linked
		if !linked {
			e.logger.WithFields(logrus.Fields{
				"game_id": child.ID,
				"parent":  parent.ID,
			}).Warn("子记录已挂接到其他父记录，跳过挂接")
		}
	}

	if warnings, err := e.RecomputeParent(ctx, parent.ID, allowStatDeltas); err != nil {
		// 聚合重算失败：记日志吞掉，挂接保持有效
		e.logger.WithError(err).WithField("parent", parent.ID).Warn("聚合重算失败，挂接保持有效")
	} else {
		res.Warnings = warnings
	}
	return res, nil
}

// RecomputeParent 从全部子记录重算父记录聚合值，然后调用旅程归并器，
// 并把归并器给出的真实去重人数回写父记录。
func (e *Engine) RecomputeParent(ctx context.Context, parentID string, allowStatDeltas bool) ([]string, error) {
	parent, err := e.games.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("读取父记录失败: %w", err)
	}
	if parent == nil {
		return nil, fmt.Errorf("父记录 %s 不存在", parentID)
	}

	children, err := e.games.ListChildren(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("拉取子记录失败: %w", err)
	}
	totals, warnings := CalculateAggregatedTotals(children, nil)
	if totals == nil {
		// 子记录为空：no-op，不产生写入
		return nil, nil
	}

	if err := e.games.UpdateParentAggregates(ctx, parentID, totalsToFields(totals)); err != nil {
		return warnings, fmt.Errorf("写入聚合值失败: %w", err)
	}

	// 聚合写入后触发选手旅程归并；失败不回滚聚合（相对锦标赛数据非致命）
	if e.consolidator != nil {
		unique, err := e.consolidator.ConsolidatePlayers(ctx, parent, children, allowStatDeltas)
		if err != nil {
			e.logger.WithError(err).WithField("parent", parentID).Warn("选手旅程归并失败")
			return warnings, nil
		}
		if unique > 0 && unique != totals.TotalUniquePlayers {
			if err := e.games.UpdateParentAggregates(ctx, parentID, map[string]interface{}{
				"total_unique_players": unique,
			}); err != nil {
				e.logger.WithError(err).WithField("parent", parentID).Warn("回写去重人数失败")
			}
		}
	}
	return warnings, nil
}

// BuildParentRecord 从首个子记录播种父记录：
// 合成来源标识 sourceUrl=consolidated://parent/{id}、排序键占位 tournamentId=0、
// 日/航段字段一律不带。
func BuildParentRecord(child *model.Game, key string) *model.Game {
	id := uuid.NewString()
	k := key
	return &model.Game{
		ID:                   id,
		Name:                 DeriveParentName(child),
		Status:               child.Status,
		RegistrationStatus:   child.RegistrationStatus,
		GameStartDateTime:    child.GameStartDateTime,
		EntityID:             child.EntityID,
		VenueID:              child.VenueID,
		BuyIn:                child.BuyIn,
		Rake:                 child.Rake,
		TournamentSeriesID:   child.TournamentSeriesID,
		SeriesName:           child.SeriesName,
		EventNumber:          child.EventNumber,
		IsMainEvent:          child.IsMainEvent,
		ConsolidationType:    model.ConsolidationParent,
		ConsolidationKey:     &k,
		IsMultiDayTournament: true,
		SourceURL:            fmt.Sprintf("consolidated://parent/%s", id),
		TournamentID:         0,
	}
}

// totalsToFields 聚合结果转为列更新表。指针为 nil 的派生字段写 NULL，
// 不写零值占位（可选索引键的缺省语义）。
func totalsToFields(t *Totals) map[string]interface{} {
	tags, _ := json.Marshal(t.GameTags)
	fields := map[string]interface{}{
		"total_initial_entries":               t.TotalInitialEntries,
		"total_rebuys":                        t.TotalRebuys,
		"total_addons":                        t.TotalAddons,
		"total_buy_ins_collected":             t.TotalBuyInsCollected,
		"prizepool_player_contributions":      t.PrizepoolPlayerContributions,
		"projected_rake_revenue":              t.ProjectedRakeRevenue,
		"rake_revenue":                        t.RakeRevenue,
		"rake_subsidy":                        t.RakeSubsidy,
		"game_profit":                         t.GameProfit,
		"prizepool_paid":                      t.PrizepoolPaid,
		"prizepool_calculated":                t.PrizepoolCalculated,
		"full_rake_realized":                  t.FullRakeRealized,
		"total_entries":                       t.TotalEntries,
		"expected_total_entries":              t.ExpectedTotalEntries,
		"total_unique_players":                t.TotalUniquePlayers,
		"summed_unique_players_from_children": t.SummedUniquePlayersFromChildren,
		"status":                              t.Status,
		"is_partial_data":                     t.IsPartialData,
		"missing_flight_count":                t.MissingFlightCount,
		"game_tags":                           tags,
		"players_remaining":                   t.PlayersRemaining,
		"total_chips_in_play":                 t.TotalChipsInPlay,
		"average_player_stack":                t.AveragePlayerStack,
		"guarantee_overlay_cost":              t.GuaranteeOverlayCost,
		"prizepool_surplus":                   t.PrizepoolSurplus,
		"prizepool_added_value":               t.PrizepoolAddedValue,
		"game_start_date_time":                t.EarliestStart,
		"game_end_date_time":                  t.LatestEnd,
		"total_duration_seconds":              t.TotalDurationSeconds,
		"game_year_month":                     t.GameYearMonth,
		"game_day_of_week":                    t.GameDayOfWeek,
		"buy_in_tier":                         t.BuyInTier,
	}
	return fields
}
