package journey

import (
	"context"
	"testing"

	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayerRepo struct {
	entriesByGame map[string][]*model.PlayerEntry
	resultsByGame map[string][]*model.PlayerResult
	statsExist    bool

	reclassified     []uint64
	aggregateEntries []*model.PlayerEntry
	consolidated     []*model.PlayerResult
	superseded       []string
	lifetimeDeltas   []repository.LifetimeDelta
	venueDeltas      []repository.VenueDelta
}

func (f *fakePlayerRepo) ListEntriesByGame(_ context.Context, gameID string) ([]*model.PlayerEntry, error) {
	return f.entriesByGame[gameID], nil
}

func (f *fakePlayerRepo) UpdateEntryClassification(_ context.Context, entryID uint64, _ model.EntryType) error {
	f.reclassified = append(f.reclassified, entryID)
	return nil
}

func (f *fakePlayerRepo) CreateAggregateEntry(_ context.Context, e *model.PlayerEntry) (bool, error) {
	for _, prev := range f.aggregateEntries {
		if prev.GameID == e.GameID && prev.PlayerID == e.PlayerID {
			return false, nil
		}
	}
	f.aggregateEntries = append(f.aggregateEntries, e)
	return true, nil
}

func (f *fakePlayerRepo) ListResultsByGame(_ context.Context, gameID string) ([]*model.PlayerResult, error) {
	return f.resultsByGame[gameID], nil
}

func (f *fakePlayerRepo) CreateConsolidatedResult(_ context.Context, r *model.PlayerResult) (bool, error) {
	for _, prev := range f.consolidated {
		if prev.GameID == r.GameID && prev.PlayerID == r.PlayerID {
			return false, nil
		}
	}
	f.consolidated = append(f.consolidated, r)
	return true, nil
}

func (f *fakePlayerRepo) SupersedeResult(_ context.Context, gameID, playerID, _ string) (bool, error) {
	for _, r := range f.resultsByGame[gameID] {
		if r.PlayerID == playerID && r.RecordType != model.RecordSuperseded {
			r.RecordType = model.RecordSuperseded
			f.superseded = append(f.superseded, gameID+"/"+playerID)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePlayerRepo) ApplyLifetimeDelta(_ context.Context, _ string, d repository.LifetimeDelta) (bool, error) {
	if !f.statsExist {
		return false, nil
	}
	f.lifetimeDeltas = append(f.lifetimeDeltas, d)
	return true, nil
}

func (f *fakePlayerRepo) ApplyVenueDelta(_ context.Context, _, _ string, d repository.VenueDelta) (bool, error) {
	if !f.statsExist {
		return false, nil
	}
	f.venueDeltas = append(f.venueDeltas, d)
	return true, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func reducerFixture() (*fakePlayerRepo, *model.Game, []*model.Game) {
	children, entries := threeFlightFixture()
	for _, es := range entries {
		for i, e := range es {
			e.ID = uint64(i + 1)
		}
	}
	// 库内 ID 全局唯一
	entries["f1b"][0].ID = 3
	entries["fd"][0].ID = 4
	entries["fd"][1].ID = 5
	for gid, es := range entries {
		for _, e := range es {
			e.GameID = gid
		}
	}

	repo := &fakePlayerRepo{
		entriesByGame: entries,
		resultsByGame: map[string][]*model.PlayerResult{
			"f1a": {{PlayerID: "p1", FinishingPlace: 41, AmountWon: 0, RecordType: model.RecordOriginal}},
			"fd": {
				{PlayerID: "p1", FinishingPlace: 1, AmountWon: 30_000, RecordType: model.RecordOriginal},
				{PlayerID: "p2", FinishingPlace: 9, AmountWon: 0, RecordType: model.RecordOriginal},
			},
		},
		statsExist: true,
	}
	parent := &model.Game{ID: "parent-1", VenueID: "venue-1"}
	return repo, parent, children
}

func TestConsolidate_FiveOrderedWrites(t *testing.T) {
	repo, parent, children := reducerFixture()
	r := NewReducer(repo, testLogger())

	res, err := r.Consolidate(context.Background(), parent, children, Options{AllowStatDeltas: true})
	require.NoError(t, err)

	assert.Equal(t, 2, res.PlayersProcessed)
	// p1 的 f1b 航段被重判为 REENTRY、fd 为晋级续打；p2 的 fd 为晋级续打
	assert.Equal(t, 3, res.EntriesReclassified)
	assert.Len(t, repo.reclassified, 3)

	require.Len(t, repo.aggregateEntries, 2)
	agg := repo.aggregateEntries[0]
	assert.Equal(t, "parent-1", agg.GameID)
	assert.Equal(t, model.EntryAggregateListing, agg.EntryType)
	assert.Equal(t, model.RecordConsolidated, agg.RecordType)
	assert.Equal(t, 1, agg.NumberOfReEntries)
	assert.Equal(t, 3, agg.TotalFlightsPlayed)
	assert.Equal(t, model.EntryStatusCompleted, agg.Status)
	assert.JSONEq(t, `["f1a","f1b","fd"]`, string(agg.SourceChildGameIDs))

	require.Len(t, repo.consolidated, 2)
	final := repo.consolidated[0]
	assert.EqualValues(t, 30_000, final.AmountWon)
	assert.Equal(t, 1, final.FinishingPlace)
	assert.EqualValues(t, 30_000-22_000, final.NetProfitLoss)
	assert.Equal(t, 3, final.SourceEntryCount)
	assert.Equal(t, 2, final.SourceBuyInCount)
	assert.EqualValues(t, 22_000, final.TotalBuyInsPaid)
	assert.True(t, final.IsConsolidatedRecord)

	// p1 在 f1a 与 fd 各有一行原始成绩，p2 仅 fd 有
	assert.Equal(t, 3, res.ResultsSuperseded)
	assert.ElementsMatch(t, []string{"f1a/p1", "fd/p1", "fd/p2"}, repo.superseded)

	// 仅 p1 为多航段旅程，有补偿增量
	assert.Equal(t, 2, res.DeltasApplied) // p1 与 p2 各有续打航段
	require.Len(t, repo.lifetimeDeltas, 2)
	assert.EqualValues(t, -2, repo.lifetimeDeltas[0].TournamentsPlayed)
	assert.EqualValues(t, -11_000, repo.lifetimeDeltas[0].TotalBuyIns)
	require.Len(t, repo.venueDeltas, 2)
	assert.EqualValues(t, 11_000, repo.venueDeltas[0].NetProfit)
}

func TestConsolidate_Idempotent(t *testing.T) {
	repo, parent, children := reducerFixture()
	r := NewReducer(repo, testLogger())

	first, err := r.Consolidate(context.Background(), parent, children, Options{AllowStatDeltas: true})
	require.NoError(t, err)
	require.Equal(t, 2, first.AggregateEntriesCreated)

	// 二次运行（重放无变化时引擎会关掉增量门）
	second, err := r.Consolidate(context.Background(), parent, children, Options{AllowStatDeltas: false})
	require.NoError(t, err)
	assert.Equal(t, 0, second.AggregateEntriesCreated)
	assert.Equal(t, 0, second.ResultsConsolidated)
	assert.Equal(t, 0, second.ResultsSuperseded)
	assert.Equal(t, 0, second.DeltasApplied)
	assert.Equal(t, 2, second.DeltasSkipped)
	// 步骤5被门拦住，不再触碰统计行
	assert.Len(t, repo.lifetimeDeltas, 2)
	assert.Len(t, repo.aggregateEntries, 2)
}

func TestConsolidate_DryRunWritesNothing(t *testing.T) {
	repo, parent, children := reducerFixture()
	r := NewReducer(repo, testLogger())

	res, err := r.Consolidate(context.Background(), parent, children, Options{DryRun: true, AllowStatDeltas: true})
	require.NoError(t, err)

	// 干跑产出与真实运行相同的计数
	assert.Equal(t, 2, res.PlayersProcessed)
	assert.Equal(t, 3, res.EntriesReclassified)
	assert.Equal(t, 2, res.AggregateEntriesCreated)
	assert.Equal(t, 2, res.ResultsConsolidated)
	assert.Equal(t, 3, res.ResultsSuperseded)
	assert.Equal(t, 2, res.DeltasApplied)
	require.Len(t, res.Journeys, 2)
	assert.Equal(t, []model.EntryType{
		model.EntryInitial, model.EntryReentry, model.EntryQualifiedContinuation,
	}, res.Journeys[0].Classifications)
	assert.EqualValues(t, 8_000, res.Journeys[0].NetProfitLoss)
	require.Len(t, res.Deltas, 2)

	// 任何仓储写入都不发生
	assert.Empty(t, repo.reclassified)
	assert.Empty(t, repo.aggregateEntries)
	assert.Empty(t, repo.consolidated)
	assert.Empty(t, repo.superseded)
	assert.Empty(t, repo.lifetimeDeltas)
	assert.Empty(t, repo.venueDeltas)
}

func TestConsolidate_MissingStatsRowSkipsDelta(t *testing.T) {
	repo, parent, children := reducerFixture()
	repo.statsExist = false
	r := NewReducer(repo, testLogger())

	res, err := r.Consolidate(context.Background(), parent, children, Options{AllowStatDeltas: true})
	require.NoError(t, err)
	assert.Equal(t, 0, res.DeltasApplied)
	assert.Equal(t, 2, res.DeltasSkipped)
	assert.Empty(t, repo.lifetimeDeltas)
}

func TestConsolidate_NilParent(t *testing.T) {
	r := NewReducer(&fakePlayerRepo{}, testLogger())
	_, err := r.Consolidate(context.Background(), nil, nil, Options{})
	assert.Error(t, err)
}

func TestConsolidatePlayers_ReturnsDedupedCount(t *testing.T) {
	repo, parent, children := reducerFixture()
	r := NewReducer(repo, testLogger())

	n, err := r.ConsolidatePlayers(context.Background(), parent, children, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
