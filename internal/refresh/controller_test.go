package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"TournamentSync/internal/config"
	"TournamentSync/internal/fetch"
	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGameRepo struct {
	byStatus map[model.GameStatus][]*model.Game
}

func (f *fakeGameRepo) GetByID(context.Context, string) (*model.Game, error)         { return nil, nil }
func (f *fakeGameRepo) GetBySourceURL(context.Context, string) (*model.Game, error)  { return nil, nil }
func (f *fakeGameRepo) FindParentByKey(context.Context, string) (*model.Game, error) { return nil, nil }
func (f *fakeGameRepo) CreateParent(context.Context, *model.Game) error              { return nil }
func (f *fakeGameRepo) LinkChild(context.Context, string, string, string) (bool, error) {
	return false, nil
}
func (f *fakeGameRepo) ListChildren(context.Context, string) ([]*model.Game, error) { return nil, nil }
func (f *fakeGameRepo) UpdateParentAggregates(context.Context, string, map[string]interface{}) error {
	return nil
}
func (f *fakeGameRepo) UpsertFromSource(context.Context, *model.Game) error { return nil }
func (f *fakeGameRepo) ListParents(context.Context, repository.ParentFilter, int, int) ([]*model.Game, int64, error) {
	return nil, 0, nil
}

func (f *fakeGameRepo) ListByStatuses(_ context.Context, statuses []model.GameStatus, _ int) ([]*model.Game, error) {
	var out []*model.Game
	for _, s := range statuses {
		out = append(out, f.byStatus[s]...)
	}
	return out, nil
}

type fakeTrackerRepo struct {
	mu        sync.Mutex
	byURL     map[string]*model.URLTracker
	refreshed []string
}

func (f *fakeTrackerRepo) GetOrCreate(context.Context, string) (*model.URLTracker, error) {
	return nil, nil
}

func (f *fakeTrackerRepo) GetByURL(_ context.Context, url string) (*model.URLTracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byURL[url], nil
}

func (f *fakeTrackerRepo) IncrementScraped(context.Context, string) error { return nil }
func (f *fakeTrackerRepo) RecordCacheHit(context.Context, string) error   { return nil }
func (f *fakeTrackerRepo) RecordSuccess(context.Context, string, repository.SuccessUpdate) error {
	return nil
}
func (f *fakeTrackerRepo) RecordFailure(context.Context, string, string) error { return nil }

func (f *fakeTrackerRepo) TouchRefreshed(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, url)
	return nil
}

type fakeSettingsRepo struct {
	settings *model.ScraperSettings
}

func (f *fakeSettingsRepo) Get(context.Context) (*model.ScraperSettings, error) {
	if f.settings == nil {
		return model.DefaultScraperSettings(), nil
	}
	return f.settings, nil
}

type fakeFetcher struct {
	mu   sync.Mutex
	urls []string
	opts []fetch.FetchOptions
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, opts fetch.FetchOptions) (*fetch.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.opts = append(f.opts, opts)
	return &fetch.FetchResult{Success: true, Source: fetch.SourceUpstream}, nil
}

type controllerFixture struct {
	games    *fakeGameRepo
	trackers *fakeTrackerRepo
	settings *fakeSettingsRepo
	fetcher  *fakeFetcher
	ctrl     *Controller
	now      time.Time
	slept    []time.Duration
}

func newControllerFixture(cfg *config.RefreshConfig) *controllerFixture {
	if cfg == nil {
		cfg = &config.RefreshConfig{Enabled: true, MaxPerCycle: 50, BatchSize: 10}
	}
	f := &controllerFixture{
		games:    &fakeGameRepo{byStatus: map[model.GameStatus][]*model.Game{}},
		trackers: &fakeTrackerRepo{byURL: map[string]*model.URLTracker{}},
		settings: &fakeSettingsRepo{},
		fetcher:  &fakeFetcher{},
		now:      time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	f.ctrl = NewController(f.games, f.trackers, f.settings, f.fetcher, cfg, logger)
	f.ctrl.now = func() time.Time { return f.now }
	f.ctrl.sleep = func(d time.Duration) { f.slept = append(f.slept, d) }
	return f
}

// addGame 注册候选比赛，staleAge 为距上次刷新的时长
func (f *controllerFixture) addGame(id string, status model.GameStatus, startIn time.Duration, staleAge time.Duration) *model.Game {
	url := "https://tournaments.example.com/t/" + id
	g := &model.Game{ID: id, SourceURL: url, Status: status, CreatedAt: f.now.Add(-staleAge)}
	if startIn != 0 {
		start := f.now.Add(startIn)
		g.GameStartDateTime = &start
	}
	refreshedAt := f.now.Add(-staleAge)
	f.trackers.byURL[url] = &model.URLTracker{URL: url, LastRefreshedAt: &refreshedAt}
	f.games.byStatus[status] = append(f.games.byStatus[status], g)
	return g
}

func TestRunOnce_DisabledByConfig(t *testing.T) {
	f := newControllerFixture(&config.RefreshConfig{Enabled: false})
	report, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh disabled by config", report.Skipped)
	assert.Empty(t, f.fetcher.urls)
}

func TestRunOnce_DisabledBySettings(t *testing.T) {
	f := newControllerFixture(nil)
	f.settings.settings = &model.ScraperSettings{AutoRefreshEnabled: false}
	f.addGame("g1", model.GameStatusRunning, 0, 2*time.Hour)

	report, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auto refresh disabled by settings", report.Skipped)
	assert.Empty(t, f.fetcher.urls)
}

func TestRunOnce_ThresholdFiltering(t *testing.T) {
	f := newControllerFixture(nil)
	// 进行中阈值 30 分钟：25 分钟的新鲜，35 分钟的过期
	f.addGame("fresh", model.GameStatusRunning, 0, 25*time.Minute)
	f.addGame("stale", model.GameStatusRunning, 0, 35*time.Minute)
	// 即将开赛阈值 60 分钟
	f.addGame("soon-fresh", model.GameStatusRegistering, 2*time.Hour, 45*time.Minute)
	f.addGame("soon-stale", model.GameStatusScheduled, 2*time.Hour, 90*time.Minute)
	// 未来比赛阈值 720 分钟
	f.addGame("up-fresh", model.GameStatusScheduled, 72*time.Hour, 6*time.Hour)
	f.addGame("up-stale", model.GameStatusScheduled, 72*time.Hour, 13*time.Hour)

	report, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Considered)
	assert.Equal(t, 3, report.Selected)
	assert.Equal(t, 3, report.Dispatched)
	assert.ElementsMatch(t, []string{
		"https://tournaments.example.com/t/stale",
		"https://tournaments.example.com/t/soon-stale",
		"https://tournaments.example.com/t/up-stale",
	}, f.fetcher.urls)
	// 派发必须强制重抓
	for _, opts := range f.fetcher.opts {
		assert.True(t, opts.ForceRefresh)
	}
	assert.ElementsMatch(t, f.fetcher.urls, f.trackers.refreshed)
}

func TestRunOnce_PriorityOrdering(t *testing.T) {
	f := newControllerFixture(&config.RefreshConfig{Enabled: true, MaxPerCycle: 50, BatchSize: 1})
	// 全部过期；分类优先级 RUNNING → STARTING_SOON → UPCOMING，同类按过期程度降序
	f.addGame("up", model.GameStatusScheduled, 72*time.Hour, 20*time.Hour)
	f.addGame("soon", model.GameStatusRegistering, 2*time.Hour, 3*time.Hour)
	f.addGame("run-old", model.GameStatusRunning, 0, 4*time.Hour)
	f.addGame("run-new", model.GameStatusClockStopped, 0, 1*time.Hour)

	_, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	// BatchSize=1 时派发顺序即排序结果
	assert.Equal(t, []string{
		"https://tournaments.example.com/t/run-old",
		"https://tournaments.example.com/t/run-new",
		"https://tournaments.example.com/t/soon",
		"https://tournaments.example.com/t/up",
	}, f.fetcher.urls)
}

func TestRunOnce_MaxPerCycleCap(t *testing.T) {
	f := newControllerFixture(&config.RefreshConfig{Enabled: true, MaxPerCycle: 2, BatchSize: 10})
	f.addGame("g1", model.GameStatusRunning, 0, 5*time.Hour)
	f.addGame("g2", model.GameStatusRunning, 0, 4*time.Hour)
	f.addGame("g3", model.GameStatusRunning, 0, 3*time.Hour)

	report, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Selected)
	assert.Equal(t, 2, report.Dispatched)
	assert.ElementsMatch(t, []string{
		"https://tournaments.example.com/t/g1",
		"https://tournaments.example.com/t/g2",
	}, f.fetcher.urls)
}

func TestRunOnce_BatchPause(t *testing.T) {
	f := newControllerFixture(&config.RefreshConfig{Enabled: true, MaxPerCycle: 50, BatchSize: 2, BatchPauseSec: 3})
	for _, id := range []string{"g1", "g2", "g3", "g4", "g5"} {
		f.addGame(id, model.GameStatusRunning, 0, 2*time.Hour)
	}

	report, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Dispatched)
	// 3 个批次，批间停 2 次
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, f.slept)
}

func TestRunOnce_SettingsOverrideThresholds(t *testing.T) {
	f := newControllerFixture(nil)
	f.settings.settings = &model.ScraperSettings{
		AutoRefreshEnabled:                 true,
		RunningRefreshIntervalMinutes:      5,
		StartingSoonRefreshIntervalMinutes: 60,
		UpcomingRefreshIntervalMinutes:     720,
	}
	// 默认阈值下 10 分钟是新鲜的，覆盖到 5 分钟后过期
	f.addGame("g1", model.GameStatusRunning, 0, 10*time.Minute)

	report, err := f.ctrl.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dispatched)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newControllerFixture(&config.RefreshConfig{Enabled: true, TickInterval: 3600})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		f.ctrl.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("刷新循环未随 ctx 取消退出")
	}
	assert.Empty(t, f.fetcher.urls)
}

func TestStaleness_FallbackChain(t *testing.T) {
	f := newControllerFixture(nil)
	now := f.now

	// 无跟踪行 → 比赛创建时间
	g := &model.Game{SourceURL: "https://x/none", CreatedAt: now.Add(-3 * time.Hour)}
	assert.Equal(t, 3*time.Hour, f.ctrl.staleness(context.Background(), g, now))

	// 跟踪行无时间戳 → 跟踪行创建时间
	f.trackers.byURL["https://x/created"] = &model.URLTracker{CreatedAt: now.Add(-2 * time.Hour)}
	g = &model.Game{SourceURL: "https://x/created", CreatedAt: now.Add(-9 * time.Hour)}
	assert.Equal(t, 2*time.Hour, f.ctrl.staleness(context.Background(), g, now))

	// activated_at 优先于创建时间
	activated := now.Add(-90 * time.Minute)
	f.trackers.byURL["https://x/act"] = &model.URLTracker{CreatedAt: now.Add(-9 * time.Hour), ActivatedAt: &activated}
	g = &model.Game{SourceURL: "https://x/act"}
	assert.Equal(t, 90*time.Minute, f.ctrl.staleness(context.Background(), g, now))

	// last_refreshed_at 最优先
	refreshed := now.Add(-10 * time.Minute)
	f.trackers.byURL["https://x/ref"] = &model.URLTracker{ActivatedAt: &activated, LastRefreshedAt: &refreshed}
	g = &model.Game{SourceURL: "https://x/ref"}
	assert.Equal(t, 10*time.Minute, f.ctrl.staleness(context.Background(), g, now))
}
