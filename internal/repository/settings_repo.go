package repository

import (
	"context"
	"errors"

	"TournamentSync/internal/model"

	"gorm.io/gorm"
)

// SettingsRepository 全局抓取配置仓储
type SettingsRepository interface {
	// Get 读取全局配置，行不存在时返回默认值（自动刷新启用、默认阈值）
	Get(ctx context.Context) (*model.ScraperSettings, error)
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository 创建 SettingsRepository 实例
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*model.ScraperSettings, error) {
	var s model.ScraperSettings
	err := r.db.WithContext(ctx).
		Where("id = ?", model.GlobalScraperSettingsKey).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DefaultScraperSettings(), nil
		}
		return nil, err
	}
	// 阈值为 0 的历史行按默认值处理，避免除零式的"永远过期"
	if s.RunningRefreshIntervalMinutes <= 0 {
		s.RunningRefreshIntervalMinutes = model.DefaultRunningRefreshMinutes
	}
	if s.StartingSoonRefreshIntervalMinutes <= 0 {
		s.StartingSoonRefreshIntervalMinutes = model.DefaultStartingSoonRefreshMinutes
	}
	if s.UpcomingRefreshIntervalMinutes <= 0 {
		s.UpcomingRefreshIntervalMinutes = model.DefaultUpcomingRefreshMinutes
	}
	return &s, nil
}
