package journey

import (
	"TournamentSync/internal/consolidation"
	"TournamentSync/internal/model"
)

// Entry 旅程中的单个航段参与
type Entry struct {
	Record         *model.PlayerEntry
	Game           *model.Game
	Classification model.EntryType
	IsBuyIn        bool
	Survived       bool
	BuyInAmount    int64
}

// PlayerJourney 单个选手在一个父记录下的完整路径（按航段时间有序）
type PlayerJourney struct {
	PlayerID          string
	Entries           []*Entry
	BuyInCount        int
	ContinuationCount int
	TotalAmountPaid   int64

	// 决赛日成绩（attach 后填充）
	AmountWon      int64
	FinalRank      int
	SurvivedToEnd  bool
	HasFinalResult bool
}

// survived 航段存活判定：COMPLETED、显式晋级标记、
// 或未被淘汰且仍有码量。
func survived(e *model.PlayerEntry) bool {
	if e.Status == model.EntryStatusCompleted {
		return true
	}
	if e.IsMultiDayQualification {
		return true
	}
	return e.Status != model.EntryStatusEliminated && e.LastKnownStackSize > 0
}

// BuildJourneys 按时间顺序遍历子记录及其参赛条目，重建每个选手的旅程。
// children 必须已按开赛时间升序；聚合条目（AGGREGATE_LISTING）不参与。
// 返回切片按选手首次出现顺序稳定排列。
func BuildJourneys(children []*model.Game, entriesByGame map[string][]*model.PlayerEntry) []*PlayerJourney {
	byPlayer := make(map[string]*PlayerJourney)
	var ordered []*PlayerJourney

	for _, child := range children {
		for _, rec := range entriesByGame[child.ID] {
			if rec.EntryType == model.EntryAggregateListing {
				continue
			}
			j, seen := byPlayer[rec.PlayerID]
			if !seen {
				j = &PlayerJourney{PlayerID: rec.PlayerID}
				byPlayer[rec.PlayerID] = j
				ordered = append(ordered, j)
			}

			e := &Entry{Record: rec, Game: child, Survived: survived(rec)}
			if len(j.Entries) == 0 {
				// 首次出现：Day2+ 且无航段字母视为直接买入，否则首次报名
				if child.DayNumber != nil && *child.DayNumber > 1 && child.FlightLetter == nil {
					e.Classification = model.EntryDirectBuyin
				} else {
					e.Classification = model.EntryInitial
				}
				e.IsBuyIn = true
			} else {
				prev := j.Entries[len(j.Entries)-1]
				if prev.Survived {
					e.Classification = model.EntryQualifiedContinuation
					e.IsBuyIn = false
				} else {
					e.Classification = model.EntryReentry
					e.IsBuyIn = true
				}
			}
			if e.IsBuyIn {
				e.BuyInAmount = child.BuyIn + child.Rake
				j.BuyInCount++
			} else {
				j.ContinuationCount++
			}
			j.TotalAmountPaid += e.BuyInAmount
			j.Entries = append(j.Entries, e)
		}
	}
	return ordered
}

// AttachFinalResults 把决赛日子记录上的成绩挂到对应旅程。
// 决赛日选取规则与聚合重算一致（SelectFinalDayChild）。
func AttachFinalResults(journeys []*PlayerJourney, children []*model.Game, resultsByGame map[string][]*model.PlayerResult) *model.Game {
	final := consolidation.SelectFinalDayChild(children)
	if final == nil {
		return nil
	}
	byPlayer := make(map[string]*PlayerJourney, len(journeys))
	for _, j := range journeys {
		byPlayer[j.PlayerID] = j
	}
	for _, r := range resultsByGame[final.ID] {
		j, ok := byPlayer[r.PlayerID]
		if !ok {
			continue
		}
		j.AmountWon = r.AmountWon
		j.FinalRank = r.FinishingPlace
		j.HasFinalResult = true
		lastQualified := len(j.Entries) > 0 && j.Entries[len(j.Entries)-1].Record.IsMultiDayQualification
		j.SurvivedToEnd = r.AmountWon > 0 || lastQualified
	}
	return final
}
