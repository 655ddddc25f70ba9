package consolidation

import (
	"testing"
	"time"

	"TournamentSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flight(id string, day int, letter string, status model.GameStatus) *model.Game {
	g := &model.Game{
		ID:        id,
		Name:      "Summer Classic",
		Status:    status,
		DayNumber: intPtr(day),
	}
	if letter != "" {
		g.FlightLetter = strPtr(letter)
	}
	return g
}

func TestSelectFinalDayChild_FinalDayFlagWins(t *testing.T) {
	a := flight("a", 1, "A", model.GameStatusFinished)
	b := flight("b", 2, "", model.GameStatusFinished)
	fd := flight("fd", 3, "", model.GameStatusRunning)
	fd.FinalDay = boolPtr(true)

	assert.Equal(t, "fd", SelectFinalDayChild([]*model.Game{a, b, fd}).ID)
}

func TestSelectFinalDayChild_TwoFinalDays_HigherDayWins(t *testing.T) {
	d2 := flight("d2", 2, "", model.GameStatusFinished)
	d2.FinalDay = boolPtr(true)
	d3 := flight("d3", 3, "", model.GameStatusRunning)
	d3.FinalDay = boolPtr(true)

	assert.Equal(t, "d3", SelectFinalDayChild([]*model.Game{d2, d3}).ID)
	assert.Equal(t, "d3", SelectFinalDayChild([]*model.Game{d3, d2}).ID)
}

func TestSelectFinalDayChild_FallbackToFinished(t *testing.T) {
	a := flight("a", 1, "A", model.GameStatusFinished)
	b := flight("b", 2, "", model.GameStatusFinished)
	c := flight("c", 1, "B", model.GameStatusRunning)

	assert.Equal(t, "b", SelectFinalDayChild([]*model.Game{a, b, c}).ID)
	assert.Nil(t, SelectFinalDayChild([]*model.Game{c}))
}

func TestCalculateAggregatedTotals_EmptyChildren(t *testing.T) {
	totals, warnings := CalculateAggregatedTotals(nil, nil)
	assert.Nil(t, totals)
	assert.Nil(t, warnings)
}

func TestCalculateAggregatedTotals_Sums(t *testing.T) {
	start1 := time.Date(2026, 8, 14, 18, 0, 0, 0, time.UTC)
	end1 := start1.Add(6 * time.Hour)
	start2 := start1.Add(24 * time.Hour)
	endF := start2.Add(30 * time.Hour)

	f1 := flight("f1", 1, "A", model.GameStatusFinished)
	f1.GameStartDateTime = &start1
	f1.GameEndDateTime = &end1
	f1.TotalInitialEntries = 40
	f1.TotalEntries = 50
	f1.TotalRebuys = 8
	f1.TotalUniquePlayers = 40
	f1.TotalBuyInsCollected = 500_000
	f1.FullRakeRealized = true
	f1.GameTags = []byte(`["bounty","turbo"]`)

	f2 := flight("f2", 1, "B", model.GameStatusFinished)
	f2.GameStartDateTime = &start2
	f2.TotalInitialEntries = 30
	f2.TotalEntries = 35
	f2.TotalUniquePlayers = 30
	f2.TotalBuyInsCollected = 350_000
	f2.FullRakeRealized = false
	f2.GameTags = []byte(`["turbo","deepstack"]`)

	fd := flight("fd", 2, "", model.GameStatusFinished)
	fd.FinalDay = boolPtr(true)
	startF := start2.Add(24 * time.Hour)
	fd.GameStartDateTime = &startF
	fd.GameEndDateTime = &endF
	fd.PrizepoolPaid = 800_000
	fd.PlayersRemaining = intPtr(0)
	fd.GuaranteeOverlayCost = int64Ptr(20_000)
	fd.BuyIn = 0 // 决赛日不可直接买入

	totals, warnings := CalculateAggregatedTotals([]*model.Game{fd, f2, f1}, nil)
	require.NotNil(t, totals)
	assert.Empty(t, warnings)

	assert.EqualValues(t, 70, totals.TotalInitialEntries)
	assert.EqualValues(t, 85, totals.TotalEntries)
	assert.EqualValues(t, 8, totals.TotalRebuys)
	assert.EqualValues(t, 850_000, totals.TotalBuyInsCollected)
	assert.EqualValues(t, 800_000, totals.PrizepoolPaid)
	assert.False(t, totals.FullRakeRealized)

	// 去重人数未提供时退化为求和，诊断字段保留求和值
	assert.EqualValues(t, 70, totals.TotalUniquePlayers)
	assert.EqualValues(t, 70, totals.SummedUniquePlayersFromChildren)

	// 标签按首次出现顺序去重（入参乱序，内部按开赛时间重排）
	assert.Equal(t, []string{"bounty", "turbo", "deepstack"}, totals.GameTags)

	// 时间包络与派生字段
	require.NotNil(t, totals.EarliestStart)
	assert.True(t, totals.EarliestStart.Equal(start1))
	require.NotNil(t, totals.LatestEnd)
	assert.True(t, totals.LatestEnd.Equal(endF))
	require.NotNil(t, totals.TotalDurationSeconds)
	assert.EqualValues(t, int64(endF.Sub(start1)/time.Second), *totals.TotalDurationSeconds)
	require.NotNil(t, totals.GameYearMonth)
	assert.Equal(t, "2026-08", *totals.GameYearMonth)
	require.NotNil(t, totals.GameDayOfWeek)
	assert.Equal(t, "Friday", *totals.GameDayOfWeek)

	// 决赛日快照
	require.NotNil(t, totals.PlayersRemaining)
	assert.Equal(t, 0, *totals.PlayersRemaining)
	require.NotNil(t, totals.GuaranteeOverlayCost)
	assert.EqualValues(t, 20_000, *totals.GuaranteeOverlayCost)

	assert.Equal(t, model.GameStatusFinished, totals.Status)
	assert.False(t, totals.IsPartialData)
	assert.Equal(t, 0, totals.MissingFlightCount)

	// 决赛日 buyIn=0 时买入档位为 FREEROLL 档（取决赛日买入）
	require.NotNil(t, totals.BuyInTier)
	assert.Equal(t, "FREEROLL", *totals.BuyInTier)
}

func TestCalculateAggregatedTotals_DedupedUniquePlayers(t *testing.T) {
	f1 := flight("f1", 1, "A", model.GameStatusFinished)
	f1.TotalUniquePlayers = 40
	f2 := flight("f2", 1, "B", model.GameStatusFinished)
	f2.TotalUniquePlayers = 30

	deduped := int64(55)
	totals, _ := CalculateAggregatedTotals([]*model.Game{f1, f2}, &deduped)
	require.NotNil(t, totals)
	assert.EqualValues(t, 55, totals.TotalUniquePlayers)
	assert.EqualValues(t, 70, totals.SummedUniquePlayersFromChildren)
}

func TestCalculateAggregatedTotals_EntriesRefinement(t *testing.T) {
	// 奖池反推报名数大于子记录求和时采用推算值；差距超过 1.5 倍要出告警
	fd := flight("fd", 2, "", model.GameStatusFinished)
	fd.FinalDay = boolPtr(true)
	fd.BuyIn = 10_000
	fd.Rake = 1_000
	fd.PrizepoolPaid = 180_000 // 180000/9000 = 20

	f1 := flight("f1", 1, "A", model.GameStatusFinished)
	f1.TotalEntries = 10

	totals, warnings := CalculateAggregatedTotals([]*model.Game{f1, fd}, nil)
	require.NotNil(t, totals)
	assert.EqualValues(t, 20, totals.TotalEntries)
	assert.EqualValues(t, 20, totals.ExpectedTotalEntries)
	assert.Len(t, warnings, 1)

	// childSum 10 < 0.9*20：疑似缺数据，但比赛日连续不算缺航段
	assert.True(t, totals.IsPartialData)
	assert.Equal(t, 0, totals.MissingFlightCount)
}

func TestCalculateAggregatedTotals_MissingDayDetection(t *testing.T) {
	f1 := flight("f1", 1, "A", model.GameStatusRunning)
	f3 := flight("f3", 3, "", model.GameStatusRunning)

	totals, _ := CalculateAggregatedTotals([]*model.Game{f1, f3}, nil)
	require.NotNil(t, totals)
	assert.True(t, totals.IsPartialData)
	assert.Equal(t, 1, totals.MissingFlightCount) // 缺 Day 2
	assert.Equal(t, model.GameStatusRunning, totals.Status)
}

func TestCalculateAggregatedTotals_AllScheduled(t *testing.T) {
	f1 := flight("f1", 1, "A", model.GameStatusScheduled)
	f2 := flight("f2", 1, "B", model.GameStatusInitiating)

	totals, _ := CalculateAggregatedTotals([]*model.Game{f1, f2}, nil)
	require.NotNil(t, totals)
	assert.Equal(t, model.GameStatusScheduled, totals.Status)
}

func TestCalculateAggregatedTotals_OrderIndependent(t *testing.T) {
	// 入参顺序不影响结果：内部按开赛时间排序
	start := time.Date(2026, 8, 14, 18, 0, 0, 0, time.UTC)

	f1 := flight("f1", 1, "A", model.GameStatusFinished)
	f1.GameStartDateTime = &start
	f1.TotalEntries = 50
	f1.GameTags = []byte(`["bounty","turbo"]`)

	f2 := flight("f2", 1, "B", model.GameStatusFinished)
	start2 := start.Add(24 * time.Hour)
	f2.GameStartDateTime = &start2
	f2.TotalEntries = 35
	f2.GameTags = []byte(`["deepstack"]`)

	fd := flight("fd", 2, "", model.GameStatusRunning)
	startF := start.Add(48 * time.Hour)
	fd.GameStartDateTime = &startF
	fd.PrizepoolPaid = 765_000
	fd.BuyIn = 10_000
	fd.Rake = 1_000

	forward, _ := CalculateAggregatedTotals([]*model.Game{f1, f2, fd}, nil)
	reversed, _ := CalculateAggregatedTotals([]*model.Game{fd, f2, f1}, nil)
	require.NotNil(t, forward)
	assert.Equal(t, forward, reversed)
	assert.Equal(t, []string{"bounty", "turbo", "deepstack"}, forward.GameTags)
}

func TestCalculateAggregatedTotals_LoneDayTwoChild(t *testing.T) {
	// 只发现了 Day 2：Day 1 缺失，整体标记为不完整数据
	d2 := flight("d2", 2, "", model.GameStatusRunning)
	d2.TotalEntries = 18

	totals, _ := CalculateAggregatedTotals([]*model.Game{d2}, nil)
	require.NotNil(t, totals)
	assert.True(t, totals.IsPartialData)
	assert.Equal(t, 1, totals.MissingFlightCount)
	assert.Equal(t, model.GameStatusRunning, totals.Status)
	assert.EqualValues(t, 18, totals.TotalEntries)
}

func TestCalculateAggregatedTotals_SingleFinalDayChild(t *testing.T) {
	end := time.Date(2026, 8, 16, 4, 0, 0, 0, time.UTC)
	start := end.Add(-10 * time.Hour)

	fd := flight("fd", 1, "", model.GameStatusFinished)
	fd.FinalDay = boolPtr(true)
	fd.GameStartDateTime = &start
	fd.GameEndDateTime = &end
	fd.TotalEntries = 12
	fd.TotalUniquePlayers = 12
	fd.PrizepoolPaid = 120_000
	fd.PlayersRemaining = intPtr(0)
	fd.BuyIn = 50_000

	totals, warnings := CalculateAggregatedTotals([]*model.Game{fd}, nil)
	require.NotNil(t, totals)
	assert.Empty(t, warnings)

	// 父记录完全镜像唯一的决赛日子记录
	assert.Equal(t, model.GameStatusFinished, totals.Status)
	assert.EqualValues(t, 12, totals.TotalEntries)
	assert.EqualValues(t, 120_000, totals.PrizepoolPaid)
	require.NotNil(t, totals.PlayersRemaining)
	assert.Equal(t, 0, *totals.PlayersRemaining)
	require.NotNil(t, totals.BuyInTier)
	assert.Equal(t, "MID", *totals.BuyInTier)
	assert.False(t, totals.IsPartialData)
	assert.Equal(t, 0, totals.MissingFlightCount)
}

func TestBuyInTier(t *testing.T) {
	cases := map[int64]string{
		0:         "FREEROLL",
		4_999:     "MICRO",
		5_000:     "LOW",
		19_999:    "LOW",
		20_000:    "MID",
		99_999:    "MID",
		100_000:   "HIGH",
		499_999:   "HIGH",
		500_000:   "PREMIUM",
		2_000_000: "PREMIUM",
	}
	for buyIn, want := range cases {
		assert.Equal(t, want, buyInTier(buyIn), buyIn)
	}
}
