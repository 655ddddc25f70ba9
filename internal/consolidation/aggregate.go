package consolidation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"TournamentSync/internal/model"
)

// 奖池推算报名数与子记录求和差距过大时的告警阈值
const entriesMismatchWarnRatio = 1.5

// 疑似缺航段判定：实际报名数低于预期的比例
const partialDataEntriesRatio = 0.9

// Totals 父记录聚合结果（全部派生字段，不含任何人工录入值）
type Totals struct {
	// 求和项
	TotalInitialEntries          int64
	TotalRebuys                  int64
	TotalAddons                  int64
	TotalBuyInsCollected         int64
	PrizepoolPlayerContributions int64
	ProjectedRakeRevenue         int64
	RakeRevenue                  int64
	RakeSubsidy                  int64
	GameProfit                   int64

	// 最大值项（通常来自决赛日）
	PrizepoolPaid       int64
	PrizepoolCalculated int64

	// 决赛日快照
	PlayersRemaining     *int
	TotalChipsInPlay     *int64
	AveragePlayerStack   *int64
	GuaranteeOverlayCost *int64
	PrizepoolSurplus     *int64
	PrizepoolAddedValue  *int64

	GameTags         []string
	FullRakeRealized bool

	// 时间包络
	EarliestStart        *time.Time
	LatestEnd            *time.Time
	TotalDurationSeconds *int64

	// 派生字段
	GameYearMonth *string
	GameDayOfWeek *string
	BuyInTier     *string

	// 报名数：子记录求和经奖池推算修正
	TotalEntries         int64
	ExpectedTotalEntries int64

	// 去重人数：调用方（旅程归并器）提供真实去重值，简单求和仅作诊断
	TotalUniquePlayers              int64
	SummedUniquePlayersFromChildren int64

	Status             model.GameStatus
	IsPartialData      bool
	MissingFlightCount int
}

// SelectFinalDayChild 选出权威决赛日子记录。
// 顺序：finalDay=true（多个时取 dayNumber 最大者）→ FINISHED 中 dayNumber 最高者 → 首个 FINISHED。
func SelectFinalDayChild(children []*model.Game) *model.Game {
	var best *model.Game
	for _, c := range children {
		if !c.IsFinalDayFlag() {
			continue
		}
		if best == nil || dayOf(c) > dayOf(best) {
			best = c
		}
	}
	if best != nil {
		return best
	}
	for _, c := range children {
		if c.Status != model.GameStatusFinished {
			continue
		}
		if best == nil || dayOf(c) > dayOf(best) {
			best = c
		}
	}
	return best
}

func dayOf(g *model.Game) int {
	if g.DayNumber == nil {
		return 0
	}
	return *g.DayNumber
}

// CalculateAggregatedTotals 从全部子记录重算父记录聚合值。
// 纯函数：内部按开赛时间升序（空值排尾）排序副本，入参顺序不影响结果。
// 子记录为空时返回 (nil, nil)：重算是 no-op，不产生任何写入。
// dedupedUniquePlayers 非 nil 时作为真实去重人数，否则退化为子记录求和。
func CalculateAggregatedTotals(children []*model.Game, dedupedUniquePlayers *int64) (*Totals, []string) {
	if len(children) == 0 {
		return nil, nil
	}

	sorted := make([]*model.Game, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].GameStartDateTime, sorted[j].GameStartDateTime
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return si.Before(*sj)
	})

	var warnings []string
	t := &Totals{FullRakeRealized: true}

	tagSeen := make(map[string]struct{})
	daysPresent := make(map[int]struct{})
	maxDay := 0

	for _, c := range sorted {
		t.TotalInitialEntries += c.TotalInitialEntries
		t.TotalRebuys += c.TotalRebuys
		t.TotalAddons += c.TotalAddons
		t.TotalBuyInsCollected += c.TotalBuyInsCollected
		t.PrizepoolPlayerContributions += c.PrizepoolPlayerContributions
		t.ProjectedRakeRevenue += c.ProjectedRakeRevenue
		t.RakeRevenue += c.RakeRevenue
		t.RakeSubsidy += c.RakeSubsidy
		t.GameProfit += c.GameProfit
		t.TotalEntries += c.TotalEntries
		t.SummedUniquePlayersFromChildren += c.TotalUniquePlayers

		if c.PrizepoolPaid > t.PrizepoolPaid {
			t.PrizepoolPaid = c.PrizepoolPaid
		}
		if c.PrizepoolCalculated > t.PrizepoolCalculated {
			t.PrizepoolCalculated = c.PrizepoolCalculated
		}

		t.FullRakeRealized = t.FullRakeRealized && c.FullRakeRealized

		// 标签按首次出现顺序去重合并
		for _, tag := range decodeTags(c.GameTags) {
			if _, ok := tagSeen[tag]; !ok {
				tagSeen[tag] = struct{}{}
				t.GameTags = append(t.GameTags, tag)
			}
		}

		if c.GameStartDateTime != nil {
			if t.EarliestStart == nil || c.GameStartDateTime.Before(*t.EarliestStart) {
				start := *c.GameStartDateTime
				t.EarliestStart = &start
			}
		}
		if c.GameEndDateTime != nil {
			if t.LatestEnd == nil || c.GameEndDateTime.After(*t.LatestEnd) {
				end := *c.GameEndDateTime
				t.LatestEnd = &end
			}
		}

		if c.DayNumber != nil {
			daysPresent[*c.DayNumber] = struct{}{}
			if *c.DayNumber > maxDay {
				maxDay = *c.DayNumber
			}
		}
	}

	if t.EarliestStart != nil && t.LatestEnd != nil {
		dur := int64(t.LatestEnd.Sub(*t.EarliestStart) / time.Second)
		t.TotalDurationSeconds = &dur
	}
	if t.EarliestStart != nil {
		ym := t.EarliestStart.Format("2006-01")
		t.GameYearMonth = &ym
		dow := t.EarliestStart.Weekday().String()
		t.GameDayOfWeek = &dow
	}

	// 决赛日子记录：现场快照与保底/溢价字段的唯一可信来源
	final := SelectFinalDayChild(sorted)
	if final != nil {
		t.PlayersRemaining = copyIntPtr(final.PlayersRemaining)
		t.TotalChipsInPlay = copyInt64Ptr(final.TotalChipsInPlay)
		t.AveragePlayerStack = copyInt64Ptr(final.AveragePlayerStack)
		t.GuaranteeOverlayCost = copyInt64Ptr(final.GuaranteeOverlayCost)
		t.PrizepoolSurplus = copyInt64Ptr(final.PrizepoolSurplus)
		t.PrizepoolAddedValue = copyInt64Ptr(final.PrizepoolAddedValue)
	}

	// 报名数修正：决赛日买入有效且奖池已付时用奖池反推，
	// 推算值大于求和（或求和为 0）时采用推算值
	childSum := t.TotalEntries
	if final != nil && final.BuyIn > 0 && final.Rake >= 0 && t.PrizepoolPaid > 0 {
		net := final.BuyIn - final.Rake
		if net > 0 {
			calc := int64(math.Round(float64(t.PrizepoolPaid) / float64(net)))
			t.ExpectedTotalEntries = calc
			if calc > childSum || childSum == 0 {
				if childSum > 0 && float64(calc) > entriesMismatchWarnRatio*float64(childSum) {
					warnings = append(warnings, fmt.Sprintf(
						"奖池推算报名数 %d 远大于子记录求和 %d，按推算值采用", calc, childSum))
				}
				t.TotalEntries = calc
			}
		}
	}

	// 去重人数：调用方提供则采用，否则退化为简单求和
	if dedupedUniquePlayers != nil {
		t.TotalUniquePlayers = *dedupedUniquePlayers
	} else {
		t.TotalUniquePlayers = t.SummedUniquePlayersFromChildren
	}

	t.Status = deriveParentStatus(sorted, final)
	t.IsPartialData, t.MissingFlightCount = detectPartialData(daysPresent, maxDay, childSum, t.ExpectedTotalEntries)

	if final != nil {
		tier := buyInTier(final.BuyIn)
		t.BuyInTier = &tier
	} else if len(sorted) > 0 {
		tier := buyInTier(sorted[0].BuyIn)
		t.BuyInTier = &tier
	}

	return t, warnings
}

// deriveParentStatus 父记录状态：决赛日 FINISHED 则完赛；
// 全部子记录仍在排期阶段则 SCHEDULED；否则进行中。
func deriveParentStatus(children []*model.Game, final *model.Game) model.GameStatus {
	if final != nil && final.Status == model.GameStatusFinished {
		return model.GameStatusFinished
	}
	allScheduled := true
	for _, c := range children {
		if c.Status != model.GameStatusScheduled && c.Status != model.GameStatusInitiating {
			allScheduled = false
			break
		}
	}
	if allScheduled {
		return model.GameStatusScheduled
	}
	return model.GameStatusRunning
}

// detectPartialData 疑似缺航段：出现 Day2+ 却缺更早的比赛日，
// 或实际报名数明显低于奖池推算的预期值。
func detectPartialData(daysPresent map[int]struct{}, maxDay int, childSum, expected int64) (bool, int) {
	missing := 0
	if maxDay >= 2 {
		for d := 1; d < maxDay; d++ {
			if _, ok := daysPresent[d]; !ok {
				missing++
			}
		}
	}
	if missing > 0 {
		return true, missing
	}
	if expected > 0 && float64(childSum) < partialDataEntriesRatio*float64(expected) {
		return true, 0
	}
	return false, 0
}

// buyInTier 按买入金额（分）分档
func buyInTier(buyIn int64) string {
	switch {
	case buyIn <= 0:
		return "FREEROLL"
	case buyIn < 5_000:
		return "MICRO"
	case buyIn < 20_000:
		return "LOW"
	case buyIn < 100_000:
		return "MID"
	case buyIn < 500_000:
		return "HIGH"
	default:
		return "PREMIUM"
	}
}

func decodeTags(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
