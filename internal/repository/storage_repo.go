package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TournamentSync/internal/model"

	"gorm.io/gorm"
)

// StorageRepository 版本化存储记录仓储（抓取管线专用写入方）
type StorageRepository interface {
	// GetLatestByURL 按 URL 查当前存储记录，不存在返回 (nil, nil)
	GetLatestByURL(ctx context.Context, url string) (*model.StorageRecord, error)
	// Create 新建首个版本（version_number=1，previous_versions 为空数组）
	Create(ctx context.Context, rec *model.StorageRecord) error
	// AdvanceVersion 内容变化时推进版本：当前版本快照压入历史，version_number+1。
	// 带乐观并发保护：version_number 已被他人推进时返回 false。
	AdvanceVersion(ctx context.Context, rec *model.StorageRecord, next VersionUpdate) (bool, error)
	// UpdateConditionalHeaders 仅更新 ETag/Last-Modified（304 再验证路径）
	UpdateConditionalHeaders(ctx context.Context, id string, etag, lastModified *string) error
}

// VersionUpdate 新版本的当前字段
type VersionUpdate struct {
	BlobKey            string
	ContentHash        string
	ContentSize        int64
	HTTPEtag           *string
	HTTPLastModified   *string
	GameStatus         model.GameStatus
	RegistrationStatus model.RegistrationStatus
	ScrapedAt          time.Time
}

type storageRepository struct {
	db *gorm.DB
}

// NewStorageRepository 创建 StorageRepository 实例
func NewStorageRepository(db *gorm.DB) StorageRepository {
	return &storageRepository{db: db}
}

func (r *storageRepository) GetLatestByURL(ctx context.Context, url string) (*model.StorageRecord, error) {
	var rec model.StorageRecord
	if err := r.db.WithContext(ctx).Where("url = ?", url).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *storageRepository) Create(ctx context.Context, rec *model.StorageRecord) error {
	if rec.VersionNumber == 0 {
		rec.VersionNumber = 1
	}
	if len(rec.PreviousVersions) == 0 {
		rec.PreviousVersions = []byte("[]")
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *storageRepository) AdvanceVersion(ctx context.Context, rec *model.StorageRecord, next VersionUpdate) (bool, error) {
	// 当前版本压入历史快照
	var history []model.StorageVersion
	if len(rec.PreviousVersions) > 0 {
		if err := json.Unmarshal(rec.PreviousVersions, &history); err != nil {
			return false, fmt.Errorf("解析历史版本失败: %w", err)
		}
	}
	history = append(history, model.StorageVersion{
		BlobKey:            rec.CurrentBlobKey,
		ScrapedAt:          rec.ScrapedAt,
		ContentHash:        rec.ContentHash,
		ContentSize:        rec.ContentSize,
		GameStatus:         rec.GameStatus,
		RegistrationStatus: rec.RegistrationStatus,
	})
	raw, err := json.Marshal(history)
	if err != nil {
		return false, fmt.Errorf("序列化历史版本失败: %w", err)
	}

	res := r.db.WithContext(ctx).Model(&model.StorageRecord{}).
		Where("id = ? AND version_number = ?", rec.ID, rec.VersionNumber).
		Updates(map[string]interface{}{
			"current_blob_key":    next.BlobKey,
			"content_hash":        next.ContentHash,
			"content_size":        next.ContentSize,
			"http_etag":           next.HTTPEtag,
			"http_last_modified":  next.HTTPLastModified,
			"game_status":         next.GameStatus,
			"registration_status": next.RegistrationStatus,
			"version_number":      gorm.Expr("version_number + 1"),
			"previous_versions":   raw,
			"scraped_at":          next.ScrapedAt,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *storageRepository) UpdateConditionalHeaders(ctx context.Context, id string, etag, lastModified *string) error {
	return r.db.WithContext(ctx).Model(&model.StorageRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"http_etag":          etag,
			"http_last_modified": lastModified,
			"updated_at":         time.Now(),
		}).Error
}
