package model

import "fmt"

// GameStatus 比赛状态枚举（来自抓取页面解析结果，入库前必须校验）
type GameStatus string

const (
	GameStatusNotPublished GameStatus = "NOT_PUBLISHED"
	GameStatusScheduled    GameStatus = "SCHEDULED"
	GameStatusInitiating   GameStatus = "INITIATING"
	GameStatusRegistering  GameStatus = "REGISTERING"
	GameStatusRunning      GameStatus = "RUNNING"
	GameStatusClockStopped GameStatus = "CLOCK_STOPPED"
	GameStatusFinished     GameStatus = "FINISHED"
	GameStatusCancelled    GameStatus = "CANCELLED"
	GameStatusNotFound     GameStatus = "NOT_FOUND"
	GameStatusUnknown      GameStatus = "UNKNOWN"
)

var validGameStatuses = map[GameStatus]struct{}{
	GameStatusNotPublished: {}, GameStatusScheduled: {}, GameStatusInitiating: {},
	GameStatusRegistering: {}, GameStatusRunning: {}, GameStatusClockStopped: {},
	GameStatusFinished: {}, GameStatusCancelled: {}, GameStatusNotFound: {},
	GameStatusUnknown: {},
}

// ParseGameStatus 校验并返回比赛状态，未知值直接报错（不做静默兜底）
func ParseGameStatus(s string) (GameStatus, error) {
	gs := GameStatus(s)
	if _, ok := validGameStatuses[gs]; !ok {
		return "", fmt.Errorf("未知的比赛状态: %q", s)
	}
	return gs, nil
}

// RegistrationStatus 报名状态枚举
type RegistrationStatus string

const (
	RegistrationOpen    RegistrationStatus = "OPEN"
	RegistrationLate    RegistrationStatus = "LATE_REGISTRATION"
	RegistrationClosed  RegistrationStatus = "CLOSED"
	RegistrationUnknown RegistrationStatus = "UNKNOWN"
)

// ParseRegistrationStatus 校验报名状态
func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	switch rs := RegistrationStatus(s); rs {
	case RegistrationOpen, RegistrationLate, RegistrationClosed, RegistrationUnknown:
		return rs, nil
	default:
		return "", fmt.Errorf("未知的报名状态: %q", s)
	}
}

// ConsolidationType 归并类型：父记录 / 子航段，空串表示未参与归并
type ConsolidationType string

const (
	ConsolidationParent ConsolidationType = "PARENT"
	ConsolidationChild  ConsolidationType = "CHILD"
	ConsolidationNone   ConsolidationType = ""
)

// ParseConsolidationType 校验归并类型（空串合法，表示普通单日比赛）
func ParseConsolidationType(s string) (ConsolidationType, error) {
	switch ct := ConsolidationType(s); ct {
	case ConsolidationParent, ConsolidationChild, ConsolidationNone:
		return ct, nil
	default:
		return "", fmt.Errorf("未知的归并类型: %q", s)
	}
}

// EntryType 报名分类：首次报名 / 重入 / 晋级续打 / Day2直接买入 / 父记录聚合条目
type EntryType string

const (
	EntryInitial               EntryType = "INITIAL"
	EntryReentry               EntryType = "REENTRY"
	EntryQualifiedContinuation EntryType = "QUALIFIED_CONTINUATION"
	EntryDirectBuyin           EntryType = "DIRECT_BUYIN"
	EntryAggregateListing      EntryType = "AGGREGATE_LISTING"
)

// EntryStatus 选手在单个航段内的状态
type EntryStatus string

const (
	EntryStatusRegistered EntryStatus = "REGISTERED"
	EntryStatusPlaying    EntryStatus = "PLAYING"
	EntryStatusEliminated EntryStatus = "ELIMINATED"
	EntryStatusCompleted  EntryStatus = "COMPLETED"
)

// ResultRecordType 成绩记录类型：原始 / 归并后 / 已被归并覆盖
type ResultRecordType string

const (
	RecordOriginal     ResultRecordType = "ORIGINAL"
	RecordConsolidated ResultRecordType = "CONSOLIDATED"
	RecordSuperseded   ResultRecordType = "SUPERSEDED"
)

// InteractionType URL 最近一次交互类型
type InteractionType string

const (
	InteractionNeverChecked        InteractionType = "NEVER_CHECKED"
	InteractionScrapedWithHTML     InteractionType = "SCRAPED_WITH_HTML"
	InteractionScrapedNotPublished InteractionType = "SCRAPED_NOT_PUBLISHED"
	InteractionScrapedNotInUse     InteractionType = "SCRAPED_NOT_IN_USE"
	InteractionScrapedError        InteractionType = "SCRAPED_ERROR"
	InteractionManualUpload        InteractionType = "MANUAL_UPLOAD"
)
