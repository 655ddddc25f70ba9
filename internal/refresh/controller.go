package refresh

import (
	"context"
	"sort"
	"sync"
	"time"

	"TournamentSync/internal/config"
	"TournamentSync/internal/fetch"
	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// Category 刷新分类（数值即优先级，越小越先刷）
type Category int

const (
	CategoryRunning      Category = iota // 进行中（含停钟）
	CategoryStartingSoon                 // 24小时内开赛
	CategoryUpcoming                     // 24小时后开赛
)

func (c Category) String() string {
	switch c {
	case CategoryRunning:
		return "RUNNING"
	case CategoryStartingSoon:
		return "STARTING_SOON"
	default:
		return "UPCOMING"
	}
}

// startingSoonWindow 即将开赛的判定窗口
const startingSoonWindow = 24 * time.Hour

// Fetcher 刷新派发的抓取端窄接口
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.FetchOptions) (*fetch.FetchResult, error)
}

// RunReport 单轮刷新结果
type RunReport struct {
	Considered int    `json:"considered"` // 候选比赛总数
	Selected   int    `json:"selected"`   // 过期入选数（截断前）
	Dispatched int    `json:"dispatched"` // 实际派发数
	Skipped    string `json:"skipped,omitempty"`
}

type candidate struct {
	game      *model.Game
	category  Category
	staleness time.Duration
}

// Controller 后台刷新控制器：挑选过期比赛并强制重抓。
// 派发即完结，不等待下游归并；每轮有硬性数量上限。
type Controller struct {
	games    repository.GameRepository
	trackers repository.TrackerRepository
	settings repository.SettingsRepository
	fetcher  Fetcher
	cfg      *config.RefreshConfig
	logger   *logrus.Logger

	// 测试注入点
	now   func() time.Time
	sleep func(time.Duration)
}

// NewController 创建刷新控制器
func NewController(
	games repository.GameRepository,
	trackers repository.TrackerRepository,
	settings repository.SettingsRepository,
	fetcher Fetcher,
	cfg *config.RefreshConfig,
	logger *logrus.Logger,
) *Controller {
	return &Controller{
		games:    games,
		trackers: trackers,
		settings: settings,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Run 后台刷新循环：按配置的轮询间隔反复执行 RunOnce，直到 ctx 取消。
// 单轮报错只记日志，不中断循环。
func (c *Controller) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.TickInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c.logger.WithField("interval", interval.String()).Info("后台刷新循环启动")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("后台刷新循环退出")
			return
		case <-ticker.C:
			if _, err := c.RunOnce(ctx); err != nil {
				c.logger.WithError(err).Warn("刷新轮次失败")
			}
		}
	}
}

// RunOnce 执行一轮刷新：选候选 → 过滤过期 → 排序 → 截断 → 分批派发
func (c *Controller) RunOnce(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}

	if !c.cfg.Enabled {
		report.Skipped = "refresh disabled by config"
		return report, nil
	}
	settings, err := c.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.AutoRefreshEnabled {
		report.Skipped = "auto refresh disabled by settings"
		c.logger.Info("自动刷新已被全局配置停用，本轮跳过")
		return report, nil
	}

	candidates, err := c.collect(ctx, settings)
	if err != nil {
		return nil, err
	}
	report.Considered = len(candidates)

	stale := make([]candidate, 0, len(candidates))
	for _, cand := range candidates {
		threshold := c.threshold(cand.category, settings)
		if cand.staleness >= threshold {
			stale = append(stale, cand)
		}
	}
	report.Selected = len(stale)

	// 分类优先级在前，同类按过期程度降序
	sort.SliceStable(stale, func(i, j int) bool {
		if stale[i].category != stale[j].category {
			return stale[i].category < stale[j].category
		}
		return stale[i].staleness > stale[j].staleness
	})

	maxPerCycle := c.cfg.MaxPerCycle
	if maxPerCycle <= 0 {
		maxPerCycle = 50
	}
	if len(stale) > maxPerCycle {
		stale = stale[:maxPerCycle]
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	for i := 0; i < len(stale); i += batchSize {
		end := i + batchSize
		if end > len(stale) {
			end = len(stale)
		}
		var wg sync.WaitGroup
		for _, cand := range stale[i:end] {
			wg.Add(1)
			go func(cand candidate) {
				defer wg.Done()
				c.dispatch(ctx, cand)
			}(cand)
		}
		wg.Wait()
		report.Dispatched = end
		if end < len(stale) && c.cfg.BatchPauseSec > 0 {
			c.sleep(time.Duration(c.cfg.BatchPauseSec) * time.Second)
		}
	}
	c.logger.WithFields(logrus.Fields{
		"considered": report.Considered,
		"selected":   report.Selected,
		"dispatched": report.Dispatched,
	}).Info("刷新轮次完成")
	return report, nil
}

// collect 按状态拉取候选并计算分类与过期时长
func (c *Controller) collect(ctx context.Context, settings *model.ScraperSettings) ([]candidate, error) {
	now := c.now()
	var out []candidate

	running, err := c.games.ListByStatuses(ctx, []model.GameStatus{
		model.GameStatusRunning, model.GameStatusClockStopped,
	}, 0)
	if err != nil {
		return nil, err
	}
	for _, g := range running {
		out = append(out, candidate{game: g, category: CategoryRunning, staleness: c.staleness(ctx, g, now)})
	}

	pending, err := c.games.ListByStatuses(ctx, []model.GameStatus{
		model.GameStatusScheduled, model.GameStatusInitiating, model.GameStatusRegistering,
	}, 0)
	if err != nil {
		return nil, err
	}
	for _, g := range pending {
		cat := CategoryUpcoming
		if g.GameStartDateTime != nil && g.GameStartDateTime.Sub(now) <= startingSoonWindow {
			cat = CategoryStartingSoon
		}
		out = append(out, candidate{game: g, category: cat, staleness: c.staleness(ctx, g, now)})
	}
	return out, nil
}

// staleness 过期时长基准：lastRefreshedAt → activatedAt → 跟踪行创建时间 → 比赛创建时间
func (c *Controller) staleness(ctx context.Context, g *model.Game, now time.Time) time.Duration {
	base := g.CreatedAt
	tracker, err := c.trackers.GetByURL(ctx, g.SourceURL)
	if err != nil {
		c.logger.WithError(err).WithField("url", g.SourceURL).Warn("查询跟踪行失败")
	}
	if tracker != nil {
		switch {
		case tracker.LastRefreshedAt != nil:
			base = *tracker.LastRefreshedAt
		case tracker.ActivatedAt != nil:
			base = *tracker.ActivatedAt
		default:
			base = tracker.CreatedAt
		}
	}
	return now.Sub(base)
}

func (c *Controller) threshold(cat Category, settings *model.ScraperSettings) time.Duration {
	switch cat {
	case CategoryRunning:
		return time.Duration(settings.RunningRefreshIntervalMinutes) * time.Minute
	case CategoryStartingSoon:
		return time.Duration(settings.StartingSoonRefreshIntervalMinutes) * time.Minute
	default:
		return time.Duration(settings.UpcomingRefreshIntervalMinutes) * time.Minute
	}
}

// dispatch 派发单个刷新：强制重抓，随后更新 last_refreshed_at。
// 下游归并由内容变化事件驱动，这里不等待。
func (c *Controller) dispatch(ctx context.Context, cand candidate) {
	res, err := c.fetcher.Fetch(ctx, cand.game.SourceURL, fetch.FetchOptions{ForceRefresh: true})
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"url": cand.game.SourceURL, "category": cand.category.String(),
		}).Warn("刷新派发失败")
		return
	}
	if !res.Success {
		c.logger.WithFields(logrus.Fields{
			"url": cand.game.SourceURL, "error": res.Error,
		}).Warn("刷新抓取失败")
	}
	if err := c.trackers.TouchRefreshed(ctx, cand.game.SourceURL); err != nil {
		c.logger.WithError(err).WithField("url", cand.game.SourceURL).Warn("刷新时间更新失败")
	}
}
