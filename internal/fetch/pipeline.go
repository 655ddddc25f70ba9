package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"TournamentSync/internal/blobstore"
	"TournamentSync/internal/config"
	"TournamentSync/internal/model"
	"TournamentSync/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Source 抓取结果来源层级
type Source string

const (
	SourceBlob        Source = "BLOB"        // 一级：本地快照命中
	SourceRevalidated Source = "REVALIDATED" // 二级：条件请求 304 再验证
	SourceUpstream    Source = "UPSTREAM"    // 三级：完整上游抓取
	SourceNotFound    Source = "NOT_FOUND"   // 上游返回"未找到"页面
	SourceError       Source = "ERROR"       // 重试耗尽，本次抓取失败
)

// 重试参数：基数1秒、倍数2、最多3次
const (
	retryBaseDelay = time.Second
	retryFactor    = 2
)

// 代理 key 兜底常量（显式配置和环境变量都缺失时使用）
const bakedProxyAPIKey = "tsync-default-proxy-key"

// FetchOptions 单次抓取选项
type FetchOptions struct {
	// ForceRefresh 跳过一二级缓存，强制上游抓取
	ForceRefresh bool
	// CountryCode 代理出口国家码
	CountryCode string
	// DisableStorage 不读写快照库（诊断用）
	DisableStorage bool
}

// FetchStats 单次抓取统计
type FetchStats struct {
	Attempts   int   `json:"attempts"`
	DurationMS int64 `json:"durationMs"`
	BodyBytes  int   `json:"bodyBytes"`
	HTTPStatus int   `json:"httpStatus"`
}

// FetchResult 抓取结果
type FetchResult struct {
	Success         bool       `json:"success"`
	Source          Source     `json:"source"`
	UsedCache       bool       `json:"usedCache"`
	Changed         bool       `json:"changed"`
	ContentHash     string     `json:"contentHash,omitempty"`
	StorageRecordID string     `json:"storageRecordId,omitempty"`
	Body            []byte     `json:"-"`
	Error           string     `json:"error,omitempty"`
	Stats           FetchStats `json:"stats"`
}

// StatusFn 从页面正文嗅探比赛/报名状态（由解析器提供，可为 nil）
type StatusFn func(body []byte) (model.GameStatus, model.RegistrationStatus)

// Pipeline 三级抓取管线：快照 → 条件再验证 → 代理上游抓取。
// 写入面限定为快照库、存储记录和 URL 跟踪行。
type Pipeline struct {
	storage  repository.StorageRepository
	trackers repository.TrackerRepository
	blobs    *blobstore.Store
	client   *http.Client
	head     *http.Client
	cfg      *config.ScraperConfig
	statusFn StatusFn
	logger   *logrus.Logger

	// 测试注入点：默认 time.Sleep
	sleep func(time.Duration)
}

// NewPipeline 创建抓取管线
func NewPipeline(
	storage repository.StorageRepository,
	trackers repository.TrackerRepository,
	blobs *blobstore.Store,
	client *http.Client,
	cfg *config.ScraperConfig,
	statusFn StatusFn,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		storage:  storage,
		trackers: trackers,
		blobs:    blobs,
		client:   client,
		head:     &http.Client{Timeout: time.Duration(cfg.HeadTimeout) * time.Second, Transport: client.Transport},
		cfg:      cfg,
		statusFn: statusFn,
		logger:   logger,
		sleep:    time.Sleep,
	}
}

// Fetch 抓取单个 URL，按缓存层级返回结果。失败路径写跟踪行后返回 (result, nil)，
// 只有仓储类错误才返回非 nil error。
func (p *Pipeline) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*FetchResult, error) {
	start := time.Now()
	tracker, err := p.trackers.GetOrCreate(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("初始化 URL 跟踪行失败: %w", err)
	}
	if err := p.trackers.IncrementScraped(ctx, rawURL); err != nil {
		p.logger.WithError(err).WithField("url", rawURL).Warn("抓取计数更新失败")
	}

	latest, err := p.storage.GetLatestByURL(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("查询存储记录失败: %w", err)
	}

	// 一级：本地快照
	var cachedBody []byte
	if !opts.ForceRefresh && !opts.DisableStorage && p.blobs != nil {
		key := blobKeyFor(tracker, latest)
		if key != "" {
			body, err := p.blobs.Get(key)
			if err != nil && err != blobstore.ErrNotFound {
				p.logger.WithError(err).WithField("key", key).Warn("读取快照失败")
			}
			if err == nil && blobstore.ValidHTML(body, 0) {
				cachedBody = body
				if err := p.trackers.RecordCacheHit(ctx, rawURL); err != nil {
					p.logger.WithError(err).WithField("url", rawURL).Warn("缓存命中计数更新失败")
				}
				res := &FetchResult{
					Success:   true,
					Source:    SourceBlob,
					UsedCache: true,
					Body:      body,
					Stats:     FetchStats{DurationMS: time.Since(start).Milliseconds(), BodyBytes: len(body)},
				}
				if latest != nil {
					res.StorageRecordID = latest.ID
					if latest.ContentHash != nil {
						res.ContentHash = *latest.ContentHash
					}
				}
				if res.ContentHash == "" {
					res.ContentHash = blobstore.Key(normalizeBody(body))
				}
				return res, nil
			}
			cachedBody = body // 残缺快照留给二级兜底
		}
	}

	// 二级：条件 HEAD 再验证
	if !opts.ForceRefresh && tracker != nil && (tracker.Etag != nil || tracker.LastModified != nil) {
		notModified, status := p.revalidate(ctx, rawURL, tracker)
		if notModified {
			if err := p.trackers.RecordCacheHit(ctx, rawURL); err != nil {
				p.logger.WithError(err).WithField("url", rawURL).Warn("缓存命中计数更新失败")
			}
			res := &FetchResult{
				Success:   true,
				Source:    SourceRevalidated,
				UsedCache: true,
				Body:      cachedBody,
				Stats: FetchStats{
					DurationMS: time.Since(start).Milliseconds(),
					BodyBytes:  len(cachedBody),
					HTTPStatus: status,
				},
			}
			if latest != nil {
				res.StorageRecordID = latest.ID
				if latest.ContentHash != nil {
					res.ContentHash = *latest.ContentHash
				}
			}
			return res, nil
		}
	}

	// 三级：代理上游抓取（指数退避重试）
	body, httpStatus, attempts, etag, lastModified, fetchErr := p.fetchUpstream(ctx, rawURL, opts)
	stats := FetchStats{
		Attempts:   attempts,
		DurationMS: time.Since(start).Milliseconds(),
		BodyBytes:  len(body),
		HTTPStatus: httpStatus,
	}
	if fetchErr != nil {
		if err := p.trackers.RecordFailure(ctx, rawURL, fetchErr.Error()); err != nil {
			p.logger.WithError(err).WithField("url", rawURL).Warn("失败跟踪更新失败")
		}
		return &FetchResult{Success: false, Source: SourceError, Error: fetchErr.Error(), Stats: stats}, nil
	}

	// "未找到"页面：不落快照，只更新交互类型
	if IsNotFoundPage(body) {
		if err := p.trackers.RecordSuccess(ctx, rawURL, repository.SuccessUpdate{
			InteractionType: model.InteractionScrapedNotInUse,
			GameStatus:      model.GameStatusNotFound,
		}); err != nil {
			p.logger.WithError(err).WithField("url", rawURL).Warn("跟踪行更新失败")
		}
		return &FetchResult{Success: true, Source: SourceNotFound, Body: body, Stats: stats}, nil
	}

	normalized := normalizeBody(body)
	contentHash := blobstore.Key(normalized)
	gameStatus, regStatus := model.GameStatusUnknown, model.RegistrationUnknown
	if p.statusFn != nil {
		gameStatus, regStatus = p.statusFn(body)
	}

	res := &FetchResult{
		Success:     true,
		Source:      SourceUpstream,
		ContentHash: contentHash,
		Body:        body,
		Stats:       stats,
	}

	if opts.DisableStorage || p.blobs == nil {
		return res, nil
	}

	recordID, changed, err := p.persist(ctx, rawURL, latest, normalized, contentHash, etag, lastModified, gameStatus, regStatus)
	if err != nil {
		return nil, err
	}
	res.StorageRecordID = recordID
	res.Changed = changed

	blobKey := blobstore.Key(normalized)
	if err := p.trackers.RecordSuccess(ctx, rawURL, repository.SuccessUpdate{
		InteractionType:       model.InteractionScrapedWithHTML,
		GameStatus:            gameStatus,
		Etag:                  etag,
		LastModified:          lastModified,
		LatestStorageRecordID: &recordID,
		LatestBlobKey:         &blobKey,
	}); err != nil {
		p.logger.WithError(err).WithField("url", rawURL).Warn("跟踪行更新失败")
	}
	return res, nil
}

// Upload 手工上传页面正文：走与抓取相同的落库比较，交互类型记 MANUAL_UPLOAD
func (p *Pipeline) Upload(ctx context.Context, rawURL string, body []byte) (*FetchResult, error) {
	start := time.Now()
	if _, err := p.trackers.GetOrCreate(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("初始化 URL 跟踪行失败: %w", err)
	}
	latest, err := p.storage.GetLatestByURL(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("查询存储记录失败: %w", err)
	}

	normalized := normalizeBody(body)
	contentHash := blobstore.Key(normalized)
	gameStatus, regStatus := model.GameStatusUnknown, model.RegistrationUnknown
	if p.statusFn != nil {
		gameStatus, regStatus = p.statusFn(body)
	}

	recordID, changed, err := p.persist(ctx, rawURL, latest, normalized, contentHash, nil, nil, gameStatus, regStatus)
	if err != nil {
		return nil, err
	}
	blobKey := blobstore.Key(normalized)
	if err := p.trackers.RecordSuccess(ctx, rawURL, repository.SuccessUpdate{
		InteractionType:       model.InteractionManualUpload,
		GameStatus:            gameStatus,
		LatestStorageRecordID: &recordID,
		LatestBlobKey:         &blobKey,
	}); err != nil {
		p.logger.WithError(err).WithField("url", rawURL).Warn("跟踪行更新失败")
	}
	return &FetchResult{
		Success:         true,
		Source:          SourceUpstream,
		Changed:         changed,
		ContentHash:     contentHash,
		StorageRecordID: recordID,
		Body:            body,
		Stats:           FetchStats{DurationMS: time.Since(start).Milliseconds(), BodyBytes: len(body)},
	}, nil
}

// blobKeyFor 解析当前快照键：跟踪行指针优先，退回存储记录
func blobKeyFor(tracker *model.URLTracker, latest *model.StorageRecord) string {
	if tracker != nil && tracker.LatestBlobKey != nil && *tracker.LatestBlobKey != "" {
		return *tracker.LatestBlobKey
	}
	if latest != nil {
		return latest.CurrentBlobKey
	}
	return ""
}

// revalidate 条件 HEAD 探测；返回是否 304 与 HTTP 状态码
func (p *Pipeline) revalidate(ctx context.Context, rawURL string, tracker *model.URLTracker) (bool, int) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.proxyURL(rawURL, ""), nil)
	if err != nil {
		return false, 0
	}
	if tracker.Etag != nil {
		req.Header.Set("If-None-Match", *tracker.Etag)
	}
	if tracker.LastModified != nil {
		req.Header.Set("If-Modified-Since", *tracker.LastModified)
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	resp, err := p.head.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("url", rawURL).Debug("条件 HEAD 探测失败，转完整抓取")
		return false, 0
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusNotModified, resp.StatusCode
}

// fetchUpstream 经代理抓取上游，指数退避重试
func (p *Pipeline) fetchUpstream(ctx context.Context, rawURL string, opts FetchOptions) (body []byte, status, attempts int, etag, lastModified *string, err error) {
	maxAttempts := p.cfg.RetryCount
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	delay := retryBaseDelay
	for attempts = 1; attempts <= maxAttempts; attempts++ {
		body, status, etag, lastModified, err = p.doGet(ctx, rawURL, opts)
		if err == nil {
			return body, status, attempts, etag, lastModified, nil
		}
		p.logger.WithError(err).WithFields(logrus.Fields{
			"url": rawURL, "attempt": attempts,
		}).Warn("上游抓取失败")
		if attempts < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, status, attempts, nil, nil, ctx.Err()
			default:
			}
			p.sleep(delay)
			delay *= retryFactor
		}
	}
	return nil, status, maxAttempts, nil, nil, err
}

func (p *Pipeline) doGet(ctx context.Context, rawURL string, opts FetchOptions) ([]byte, int, *string, *string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.proxyURL(rawURL, opts.CountryCode), nil)
	if err != nil {
		return nil, 0, nil, nil, fmt.Errorf("构造请求失败: %w", err)
	}
	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, nil, nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, nil, nil, fmt.Errorf("上游返回非2xx状态码: %d", resp.StatusCode)
	}

	maxBytes := p.cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, nil, nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, resp.StatusCode, nil, nil, fmt.Errorf("响应体超过大小上限 %d 字节", maxBytes)
	}

	var etag, lastModified *string
	if v := resp.Header.Get("ETag"); v != "" {
		etag = &v
	}
	if v := resp.Header.Get("Last-Modified"); v != "" {
		lastModified = &v
	}
	return body, resp.StatusCode, etag, lastModified, nil
}

// proxyURL 组装代理抓取地址；未配置代理服务时直连目标
func (p *Pipeline) proxyURL(target, countryCode string) string {
	if p.cfg.ProxyBaseURL == "" {
		return target
	}
	q := url.Values{}
	q.Set("api_key", p.resolveProxyKey())
	q.Set("url", target)
	if countryCode != "" {
		q.Set("country_code", countryCode)
	}
	return p.cfg.ProxyBaseURL + "?" + q.Encode()
}

// resolveProxyKey 代理 key 解析顺序：显式配置 → 环境变量 → 兜底常量
func (p *Pipeline) resolveProxyKey() string {
	if p.cfg.ProxyAPIKey != "" {
		return p.cfg.ProxyAPIKey
	}
	if v := os.Getenv("SCRAPER_PROXY_API_KEY"); v != "" {
		return v
	}
	return bakedProxyAPIKey
}

// persist 三路比较后落库：同 blob 键/同哈希为 no-op，不同则写新快照并推进版本
func (p *Pipeline) persist(
	ctx context.Context,
	rawURL string,
	latest *model.StorageRecord,
	normalized []byte,
	contentHash string,
	etag, lastModified *string,
	gameStatus model.GameStatus,
	regStatus model.RegistrationStatus,
) (recordID string, changed bool, err error) {
	newKey := blobstore.Key(normalized)

	if latest != nil {
		// 同 blob 键：内容完全未变
		if latest.CurrentBlobKey == newKey {
			if err := p.storage.UpdateConditionalHeaders(ctx, latest.ID, etag, lastModified); err != nil {
				p.logger.WithError(err).WithField("url", rawURL).Warn("更新条件请求头失败")
			}
			return latest.ID, false, nil
		}
		// 同哈希，或旧数据无哈希但大小一致：视为未变
		sameHash := latest.ContentHash != nil && *latest.ContentHash == contentHash
		legacySameSize := latest.ContentHash == nil && latest.ContentSize == int64(len(normalized))
		if sameHash || legacySameSize {
			return latest.ID, false, nil
		}

		// 内容变化：新快照 + 版本推进
		if _, err := p.blobs.Put(normalized); err != nil {
			return "", false, fmt.Errorf("写入快照失败: %w", err)
		}
		advanced, err := p.storage.AdvanceVersion(ctx, latest, repository.VersionUpdate{
			BlobKey:            newKey,
			ContentHash:        contentHash,
			ContentSize:        int64(len(normalized)),
			HTTPEtag:           etag,
			HTTPLastModified:   lastModified,
			GameStatus:         gameStatus,
			RegistrationStatus: regStatus,
			ScrapedAt:          time.Now(),
		})
		if err != nil {
			return "", false, fmt.Errorf("推进存储版本失败: %w", err)
		}
		if !advanced {
			// 并发推进输家：对方已写入更新版本，按未变处理
			p.logger.WithField("url", rawURL).Info("版本已被并发推进，跳过本次写入")
			return latest.ID, false, nil
		}
		return latest.ID, true, nil
	}

	// 首个版本
	if _, err := p.blobs.Put(normalized); err != nil {
		return "", false, fmt.Errorf("写入快照失败: %w", err)
	}
	rec := &model.StorageRecord{
		ID:                 uuid.New().String(),
		URL:                rawURL,
		CurrentBlobKey:     newKey,
		ContentHash:        &contentHash,
		ContentSize:        int64(len(normalized)),
		HTTPEtag:           etag,
		HTTPLastModified:   lastModified,
		GameStatus:         gameStatus,
		RegistrationStatus: regStatus,
		ScrapedAt:          time.Now(),
	}
	if err := p.storage.Create(ctx, rec); err != nil {
		return "", false, fmt.Errorf("创建存储记录失败: %w", err)
	}
	return rec.ID, true, nil
}
