package model

import (
	"time"

	"gorm.io/datatypes"
)

// StorageVersion 历史版本快照（previous_versions jsonb 数组的元素）
type StorageVersion struct {
	BlobKey            string             `json:"blob_key"`
	ScrapedAt          time.Time          `json:"scraped_at"`
	ContentHash        *string            `json:"content_hash,omitempty"`
	ContentSize        int64              `json:"content_size"`
	GameStatus         GameStatus         `json:"game_status,omitempty"`
	RegistrationStatus RegistrationStatus `json:"registration_status,omitempty"`
}

// StorageRecord 按 URL 维护的版本化存储元数据：当前 blob + 历史版本链。
// 每次内容变化把当前版本快照压入 previous_versions，version_number 加 1。
type StorageRecord struct {
	ID  string `gorm:"primaryKey;column:id;type:varchar(64);comment:全局唯一ID"`
	URL string `gorm:"column:url;type:varchar(512);uniqueIndex;not null;comment:来源URL"`

	CurrentBlobKey string  `gorm:"column:current_blob_key;type:varchar(64);not null;comment:当前内容blob键(sha256)"`
	ContentHash    *string `gorm:"column:content_hash;type:varchar(64);comment:当前内容哈希(旧数据可为空)"`
	ContentSize    int64   `gorm:"column:content_size;type:bigint;default:0;comment:当前内容大小(字节)"`

	HTTPEtag         *string `gorm:"column:http_etag;type:varchar(128);comment:上游ETag"`
	HTTPLastModified *string `gorm:"column:http_last_modified;type:varchar(64);comment:上游Last-Modified"`

	GameStatus         GameStatus         `gorm:"column:game_status;type:varchar(32);comment:解析出的比赛状态"`
	RegistrationStatus RegistrationStatus `gorm:"column:registration_status;type:varchar(32);comment:解析出的报名状态"`

	VersionNumber    int64          `gorm:"column:version_number;type:bigint;default:1;comment:版本号(历史数+1)"`
	PreviousVersions datatypes.JSON `gorm:"column:previous_versions;type:jsonb;comment:历史版本快照数组"`

	ScrapedAt time.Time `gorm:"column:scraped_at;type:timestamp;default:now();comment:本版本抓取时间"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (StorageRecord) TableName() string { return "storage_records" }

// URLTracker 按 URL 维护的抓取状态：条件请求头、计数器、最近交互类型。
type URLTracker struct {
	URL string `gorm:"primaryKey;column:url;type:varchar(512);comment:来源URL"`

	LastInteractionType InteractionType `gorm:"column:last_interaction_type;type:varchar(32);not null;default:NEVER_CHECKED;comment:最近交互类型"`
	Status              string          `gorm:"column:status;type:varchar(16);not null;default:ACTIVE;comment:跟踪状态 ACTIVE/ERROR/DISABLED"`

	Etag         *string `gorm:"column:etag;type:varchar(128);comment:条件请求ETag"`
	LastModified *string `gorm:"column:last_modified;type:varchar(64);comment:条件请求Last-Modified"`

	TimesScraped        int64 `gorm:"column:times_scraped;type:bigint;default:0;comment:抓取总次数"`
	TimesSuccessful     int64 `gorm:"column:times_successful;type:bigint;default:0;comment:成功次数"`
	TimesFailed         int64 `gorm:"column:times_failed;type:bigint;default:0;comment:失败次数"`
	CacheHits           int64 `gorm:"column:cache_hits;type:bigint;default:0;comment:缓存命中次数"`
	ConsecutiveFailures int64 `gorm:"column:consecutive_failures;type:bigint;default:0;comment:连续失败次数"`

	LastError *string `gorm:"column:last_error;type:varchar(512);comment:最近错误(截断到500字符)"`

	LatestStorageRecordID *string `gorm:"column:latest_storage_record_id;type:varchar(64);comment:最新存储记录ID"`
	LatestBlobKey         *string `gorm:"column:latest_blob_key;type:varchar(64);comment:最新blob键"`

	GameStatus  GameStatus `gorm:"column:game_status;type:varchar(32);comment:最近解析的比赛状态"`
	ActivatedAt *time.Time `gorm:"column:activated_at;type:timestamp;comment:启用时间"`

	LastScrapedAt   *time.Time `gorm:"column:last_scraped_at;type:timestamp;comment:最近抓取时间"`
	LastRefreshedAt *time.Time `gorm:"column:last_refreshed_at;type:timestamp;comment:最近强制刷新时间"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (URLTracker) TableName() string { return "url_trackers" }
