package model

import "time"

// GlobalScraperSettingsKey 全局抓取配置的固定主键
const GlobalScraperSettingsKey = "GLOBAL_SCRAPER_SETTINGS"

// 刷新间隔默认值（分钟），配置行缺省时生效
const (
	DefaultRunningRefreshMinutes      = 30
	DefaultStartingSoonRefreshMinutes = 60
	DefaultUpcomingRefreshMinutes     = 720
)

// ScraperSettings 全局抓取配置（单行表，主键恒为 GLOBAL_SCRAPER_SETTINGS）。
// 行不存在时视为启用自动刷新并采用默认阈值。
type ScraperSettings struct {
	ID                                 string    `gorm:"primaryKey;column:id;type:varchar(64);comment:固定主键"`
	AutoRefreshEnabled                 bool      `gorm:"column:auto_refresh_enabled;type:boolean;default:true;comment:自动刷新总开关"`
	RunningRefreshIntervalMinutes      int       `gorm:"column:running_refresh_interval_minutes;type:int;default:30;comment:进行中比赛刷新间隔"`
	StartingSoonRefreshIntervalMinutes int       `gorm:"column:starting_soon_refresh_interval_minutes;type:int;default:60;comment:即将开赛刷新间隔"`
	UpcomingRefreshIntervalMinutes     int       `gorm:"column:upcoming_refresh_interval_minutes;type:int;default:720;comment:未来比赛刷新间隔"`
	DisabledReason                     *string   `gorm:"column:disabled_reason;type:varchar(256);comment:停用原因"`
	UpdatedAt                          time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (ScraperSettings) TableName() string { return "scraper_settings" }

// DefaultScraperSettings 配置行缺省时的默认值
func DefaultScraperSettings() *ScraperSettings {
	return &ScraperSettings{
		ID:                                 GlobalScraperSettingsKey,
		AutoRefreshEnabled:                 true,
		RunningRefreshIntervalMinutes:      DefaultRunningRefreshMinutes,
		StartingSoonRefreshIntervalMinutes: DefaultStartingSoonRefreshMinutes,
		UpcomingRefreshIntervalMinutes:     DefaultUpcomingRefreshMinutes,
	}
}
