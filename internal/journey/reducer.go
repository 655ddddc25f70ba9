package journey

import (
	"context"
	"encoding/json"
	"fmt"

	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// Options 归并器运行选项
type Options struct {
	// DryRun 干跑：产出完全相同的 Result 但不写任何数据（预览接口共用此通道）
	DryRun bool
	// AllowStatDeltas 补偿增量开关：仅当触发源头带内容变化门时为 true。
	// 门不可用时增量必须整体跳过（步骤5天然不幂等）。
	AllowStatDeltas bool
}

// JourneySummary 单个选手旅程摘要（Result 的一部分）
type JourneySummary struct {
	PlayerID          string            `json:"playerId"`
	Classifications   []model.EntryType `json:"classifications"`
	BuyInCount        int               `json:"buyInCount"`
	ContinuationCount int               `json:"continuationCount"`
	TotalAmountPaid   int64             `json:"totalAmountPaid"`
	AmountWon         int64             `json:"amountWon"`
	FinalRank         int               `json:"finalRank,omitempty"`
	NetProfitLoss     int64             `json:"netProfitLoss"`
	SurvivedToEnd     bool              `json:"survivedToEnd"`
}

// Result 归并运行结果：干跑与真实运行产出同一结构
type Result struct {
	PlayersProcessed        int              `json:"playersProcessed"`
	EntriesReclassified     int              `json:"entriesReclassified"`
	AggregateEntriesCreated int              `json:"aggregateEntriesCreated"`
	ResultsConsolidated     int              `json:"resultsConsolidated"`
	ResultsSuperseded       int              `json:"resultsSuperseded"`
	DeltasApplied           int              `json:"deltasApplied"`
	DeltasSkipped           int              `json:"deltasSkipped"`
	Journeys                []JourneySummary `json:"journeys"`
	Deltas                  []StatDelta      `json:"deltas,omitempty"`
}

// Reducer 选手旅程归并器：跨航段重建路径、生成父记录聚合条目与归并成绩、
// 回冲生涯统计的重复计数。除声明字段外不写任何数据。
type Reducer struct {
	players repository.PlayerRepository
	logger  *logrus.Logger
}

// NewReducer 创建旅程归并器
func NewReducer(players repository.PlayerRepository, logger *logrus.Logger) *Reducer {
	return &Reducer{players: players, logger: logger}
}

// ConsolidatePlayers 实现归并引擎的窄接口：真实运行并返回去重选手数
func (r *Reducer) ConsolidatePlayers(ctx context.Context, parent *model.Game, children []*model.Game, allowStatDeltas bool) (int64, error) {
	res, err := r.Consolidate(ctx, parent, children, Options{AllowStatDeltas: allowStatDeltas})
	if err != nil {
		return 0, err
	}
	return int64(res.PlayersProcessed), nil
}

// Consolidate 对一个父记录执行完整的选手归并（§写入顺序固定，各步幂等）：
// 1) 航段条目重新分类 2) 父记录聚合条目 3) 归并成绩
// 4) 子记录成绩标记 SUPERSEDED 5) 补偿增量。
func (r *Reducer) Consolidate(ctx context.Context, parent *model.Game, children []*model.Game, opts Options) (*Result, error) {
	if parent == nil {
		return nil, fmt.Errorf("缺少父记录")
	}

	entriesByGame := make(map[string][]*model.PlayerEntry, len(children))
	resultsByGame := make(map[string][]*model.PlayerResult, len(children))
	for _, c := range children {
		entries, err := r.players.ListEntriesByGame(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("拉取航段 %s 参赛条目失败: %w", c.ID, err)
		}
		entriesByGame[c.ID] = entries
		results, err := r.players.ListResultsByGame(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("拉取航段 %s 成绩失败: %w", c.ID, err)
		}
		resultsByGame[c.ID] = results
	}

	journeys := BuildJourneys(children, entriesByGame)
	AttachFinalResults(journeys, children, resultsByGame)

	res := &Result{PlayersProcessed: len(journeys)}

	for _, j := range journeys {
		summary := JourneySummary{
			PlayerID:          j.PlayerID,
			BuyInCount:        j.BuyInCount,
			ContinuationCount: j.ContinuationCount,
			TotalAmountPaid:   j.TotalAmountPaid,
			AmountWon:         j.AmountWon,
			FinalRank:         j.FinalRank,
			NetProfitLoss:     j.AmountWon - j.TotalAmountPaid,
			SurvivedToEnd:     j.SurvivedToEnd,
		}
		for _, e := range j.Entries {
			summary.Classifications = append(summary.Classifications, e.Classification)
		}
		res.Journeys = append(res.Journeys, summary)

		// 步骤1：分类与库内不一致的条目改写
		for _, e := range j.Entries {
			if e.Record.EntryType == e.Classification {
				continue
			}
			res.EntriesReclassified++
			if opts.DryRun {
				continue
			}
			if err := r.players.UpdateEntryClassification(ctx, e.Record.ID, e.Classification); err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"player": j.PlayerID, "entry": e.Record.ID,
				}).Warn("条目重分类失败")
			}
		}

		// 步骤2：父记录聚合条目（must-not-exist，冲突静默）
		childIDs := make([]string, 0, len(j.Entries))
		for _, e := range j.Entries {
			childIDs = append(childIDs, e.Game.ID)
		}
		if opts.DryRun {
			res.AggregateEntriesCreated++
		} else {
			sourceIDs, _ := json.Marshal(childIDs)
			created, err := r.players.CreateAggregateEntry(ctx, &model.PlayerEntry{
				PlayerID:             j.PlayerID,
				GameID:               parent.ID,
				Status:               aggregateStatus(j),
				EntryType:            model.EntryAggregateListing,
				RecordType:           model.RecordConsolidated,
				NumberOfReEntries:    maxInt(0, j.BuyInCount-1),
				TotalFlightsPlayed:   len(j.Entries),
				SourceChildGameIDs:   sourceIDs,
				IsMultiDayTournament: true,
			})
			if err != nil {
				r.logger.WithError(err).WithField("player", j.PlayerID).Warn("创建聚合条目失败")
			} else if created {
				res.AggregateEntriesCreated++
			}
		}

		// 步骤3：归并成绩（must-not-exist）
		if opts.DryRun {
			res.ResultsConsolidated++
		} else {
			created, err := r.players.CreateConsolidatedResult(ctx, &model.PlayerResult{
				PlayerID:             j.PlayerID,
				GameID:               parent.ID,
				FinishingPlace:       j.FinalRank,
				AmountWon:            j.AmountWon,
				IsConsolidatedRecord: true,
				RecordType:           model.RecordConsolidated,
				NetProfitLoss:        j.AmountWon - j.TotalAmountPaid,
				SourceEntryCount:     len(j.Entries),
				SourceBuyInCount:     j.BuyInCount,
				TotalBuyInsPaid:      j.TotalAmountPaid,
			})
			if err != nil {
				r.logger.WithError(err).WithField("player", j.PlayerID).Warn("创建归并成绩失败")
			} else if created {
				res.ResultsConsolidated++
			}
		}

		// 步骤4：选手触及的子记录成绩标记 SUPERSEDED（must-exist，缺行忽略）
		for _, e := range j.Entries {
			if opts.DryRun {
				if hasResult(resultsByGame[e.Game.ID], j.PlayerID) {
					res.ResultsSuperseded++
				}
				continue
			}
			updated, err := r.players.SupersedeResult(ctx, e.Game.ID, j.PlayerID, parent.ID)
			if err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"player": j.PlayerID, "game": e.Game.ID,
				}).Warn("标记 SUPERSEDED 失败")
			} else if updated {
				res.ResultsSuperseded++
			}
		}

		// 步骤5：补偿增量（非幂等，必须由内容变化门托底）
		delta, ok := ComputeDelta(j)
		if !ok {
			continue
		}
		res.Deltas = append(res.Deltas, delta)
		if !opts.AllowStatDeltas {
			res.DeltasSkipped++
			continue
		}
		if opts.DryRun {
			res.DeltasApplied++
			continue
		}
		applied, err := r.players.ApplyLifetimeDelta(ctx, j.PlayerID, delta.LifetimeDelta())
		if err != nil {
			r.logger.WithError(err).WithField("player", j.PlayerID).Warn("生涯统计回冲失败")
		} else if applied {
			res.DeltasApplied++
		} else {
			res.DeltasSkipped++
		}
		if parent.VenueID != "" {
			if _, err := r.players.ApplyVenueDelta(ctx, j.PlayerID, parent.VenueID, delta.VenueDelta()); err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"player": j.PlayerID, "venue": parent.VenueID,
				}).Warn("场馆统计回冲失败")
			}
		}
	}

	return res, nil
}

// aggregateStatus 聚合条目状态：走到最后给 COMPLETED，否则取淘汰态
func aggregateStatus(j *PlayerJourney) model.EntryStatus {
	if j.SurvivedToEnd {
		return model.EntryStatusCompleted
	}
	return model.EntryStatusEliminated
}

func hasResult(results []*model.PlayerResult, playerID string) bool {
	for _, r := range results {
		if r.PlayerID == playerID {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
