package repository

import (
	"context"
	"time"

	"TournamentSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 错误信息入库前截断长度
const maxTrackerErrorLen = 500

// TrackerRepository URL 跟踪仓储（抓取管线专用写入方）
type TrackerRepository interface {
	// GetOrCreate 取 URL 跟踪行，不存在则以 NEVER_CHECKED 初始化
	GetOrCreate(ctx context.Context, url string) (*model.URLTracker, error)
	// GetByURL 按 URL 查跟踪行，不存在返回 (nil, nil)
	GetByURL(ctx context.Context, url string) (*model.URLTracker, error)
	// IncrementScraped 抓取尝试计数 +1
	IncrementScraped(ctx context.Context, url string) error
	// RecordCacheHit 缓存命中计数 +1
	RecordCacheHit(ctx context.Context, url string) error
	// RecordSuccess 成功路径：成功计数+1、连续失败清零、更新交互类型与最新记录指针
	RecordSuccess(ctx context.Context, url string, upd SuccessUpdate) error
	// RecordFailure 失败路径：失败计数+1、连续失败+1、错误信息截断入库、标记 SCRAPED_ERROR
	RecordFailure(ctx context.Context, url string, errMsg string) error
	// TouchRefreshed 刷新控制器派发后更新 last_refreshed_at
	TouchRefreshed(ctx context.Context, url string) error
}

// SuccessUpdate 成功抓取后的跟踪行更新内容
type SuccessUpdate struct {
	InteractionType       model.InteractionType
	GameStatus            model.GameStatus
	Etag                  *string
	LastModified          *string
	LatestStorageRecordID *string
	LatestBlobKey         *string
}

type trackerRepository struct {
	db *gorm.DB
}

// NewTrackerRepository 创建 TrackerRepository 实例
func NewTrackerRepository(db *gorm.DB) TrackerRepository {
	return &trackerRepository{db: db}
}

func (r *trackerRepository) GetOrCreate(ctx context.Context, url string) (*model.URLTracker, error) {
	t := &model.URLTracker{
		URL:                 url,
		LastInteractionType: model.InteractionNeverChecked,
		Status:              "ACTIVE",
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoNothing: true,
	}).Create(t).Error; err != nil {
		return nil, err
	}
	var cur model.URLTracker
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&cur).Error; err != nil {
		return nil, err
	}
	return &cur, nil
}

func (r *trackerRepository) GetByURL(ctx context.Context, url string) (*model.URLTracker, error) {
	var t model.URLTracker
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *trackerRepository) IncrementScraped(ctx context.Context, url string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.URLTracker{}).
		Where("url = ?", url).
		Updates(map[string]interface{}{
			"times_scraped":   gorm.Expr("times_scraped + 1"),
			"last_scraped_at": now,
			"updated_at":      now,
		}).Error
}

func (r *trackerRepository) RecordCacheHit(ctx context.Context, url string) error {
	return r.db.WithContext(ctx).Model(&model.URLTracker{}).
		Where("url = ?", url).
		Updates(map[string]interface{}{
			"cache_hits": gorm.Expr("cache_hits + 1"),
			"updated_at": time.Now(),
		}).Error
}

func (r *trackerRepository) RecordSuccess(ctx context.Context, url string, upd SuccessUpdate) error {
	fields := map[string]interface{}{
		"times_successful":      gorm.Expr("times_successful + 1"),
		"consecutive_failures":  0,
		"last_interaction_type": upd.InteractionType,
		"status":                "ACTIVE",
		"last_error":            nil,
		"updated_at":            time.Now(),
	}
	if upd.GameStatus != "" {
		fields["game_status"] = upd.GameStatus
	}
	if upd.Etag != nil {
		fields["etag"] = upd.Etag
	}
	if upd.LastModified != nil {
		fields["last_modified"] = upd.LastModified
	}
	if upd.LatestStorageRecordID != nil {
		fields["latest_storage_record_id"] = upd.LatestStorageRecordID
	}
	if upd.LatestBlobKey != nil {
		fields["latest_blob_key"] = upd.LatestBlobKey
	}
	return r.db.WithContext(ctx).Model(&model.URLTracker{}).
		Where("url = ?", url).Updates(fields).Error
}

func (r *trackerRepository) RecordFailure(ctx context.Context, url string, errMsg string) error {
	if len(errMsg) > maxTrackerErrorLen {
		errMsg = errMsg[:maxTrackerErrorLen]
	}
	return r.db.WithContext(ctx).Model(&model.URLTracker{}).
		Where("url = ?", url).
		Updates(map[string]interface{}{
			"times_failed":          gorm.Expr("times_failed + 1"),
			"consecutive_failures":  gorm.Expr("consecutive_failures + 1"),
			"last_error":            errMsg,
			"last_interaction_type": model.InteractionScrapedError,
			"status":                "ERROR",
			"updated_at":            time.Now(),
		}).Error
}

func (r *trackerRepository) TouchRefreshed(ctx context.Context, url string) error {
	return r.db.WithContext(ctx).Model(&model.URLTracker{}).
		Where("url = ?", url).
		Updates(map[string]interface{}{
			"last_refreshed_at": time.Now(),
			"updated_at":        time.Now(),
		}).Error
}
