package model

import (
	"time"

	"gorm.io/datatypes"
)

// PlayerEntry 选手参赛记录：一行对应 (选手, 比赛) 一次参与。
// 父记录上的聚合条目 entry_type=AGGREGATE_LISTING，由旅程归并器创建。
type PlayerEntry struct {
	ID       uint64      `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID string      `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:uk_game_player;comment:选手ID"`
	GameID   string      `gorm:"column:game_id;type:varchar(64);not null;uniqueIndex:uk_game_player,priority:1;index;comment:比赛ID"`
	Status   EntryStatus `gorm:"column:status;type:varchar(16);not null;comment:参赛状态"`

	EntryType  EntryType        `gorm:"column:entry_type;type:varchar(32);not null;default:INITIAL;comment:报名分类"`
	RecordType ResultRecordType `gorm:"column:record_type;type:varchar(16);not null;default:ORIGINAL;comment:记录类型"`

	LastKnownStackSize      int64 `gorm:"column:last_known_stack_size;type:bigint;default:0;comment:最后已知码量"`
	IsMultiDayQualification bool  `gorm:"column:is_multi_day_qualification;type:boolean;default:false;comment:是否晋级下一日"`
	IsMultiDayTournament    bool  `gorm:"column:is_multi_day_tournament;type:boolean;default:false;comment:所属比赛是否多日赛"`

	// 聚合条目专属字段（由旅程归并器写入）
	NumberOfReEntries  int            `gorm:"column:number_of_re_entries;type:int;default:0;comment:重入次数"`
	TotalFlightsPlayed int            `gorm:"column:total_flights_played;type:int;default:0;comment:参与航段数"`
	SourceChildGameIDs datatypes.JSON `gorm:"column:source_child_game_ids;type:jsonb;comment:来源子比赛ID列表"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (PlayerEntry) TableName() string { return "player_entries" }

// PlayerResult 选手成绩记录：一行对应 (选手, 比赛) 的最终名次。
type PlayerResult struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID string `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:uk_result_game_player;comment:选手ID"`
	GameID   string `gorm:"column:game_id;type:varchar(64);not null;uniqueIndex:uk_result_game_player,priority:1;index;comment:比赛ID"`

	FinishingPlace int   `gorm:"column:finishing_place;type:int;default:0;comment:最终名次"`
	AmountWon      int64 `gorm:"column:amount_won;type:bigint;default:0;comment:奖金(分)"`
	PointsEarned   int64 `gorm:"column:points_earned;type:bigint;default:0;comment:积分"`

	IsConsolidatedRecord   bool             `gorm:"column:is_consolidated_record;type:boolean;default:false;comment:是否归并生成"`
	RecordType             ResultRecordType `gorm:"column:record_type;type:varchar(16);not null;default:ORIGINAL;comment:记录类型"`
	ConsolidatedIntoGameID *string          `gorm:"column:consolidated_into_game_id;type:varchar(64);index;comment:被归并到的父比赛ID"`

	// 归并成绩专属字段
	NetProfitLoss    int64 `gorm:"column:net_profit_loss;type:bigint;default:0;comment:净盈亏(分)"`
	SourceEntryCount int   `gorm:"column:source_entry_count;type:int;default:0;comment:来源参赛条目数"`
	SourceBuyInCount int   `gorm:"column:source_buy_in_count;type:int;default:0;comment:来源买入次数"`
	TotalBuyInsPaid  int64 `gorm:"column:total_buy_ins_paid;type:bigint;default:0;comment:买入总支出(分)"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (PlayerResult) TableName() string { return "player_results" }

// PlayerLifetimeStats 选手生涯累计统计（补偿增量的目标行，按子记录入库时累加、归并后再回冲）
type PlayerLifetimeStats struct {
	PlayerID          string    `gorm:"primaryKey;column:player_id;type:varchar(64);comment:选手ID"`
	TournamentsPlayed int64     `gorm:"column:tournaments_played;type:bigint;default:0;comment:参赛锦标赛数"`
	SessionsPlayed    int64     `gorm:"column:sessions_played;type:bigint;default:0;comment:参赛场次数"`
	TotalBuyIns       int64     `gorm:"column:total_buy_ins;type:bigint;default:0;comment:买入总额(分)"`
	TournamentBuyIns  int64     `gorm:"column:tournament_buy_ins;type:bigint;default:0;comment:锦标赛买入总额(分)"`
	NetBalance        int64     `gorm:"column:net_balance;type:bigint;default:0;comment:净结余(分)"`
	UpdatedAt         time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (PlayerLifetimeStats) TableName() string { return "player_lifetime_stats" }

// PlayerVenueStats 选手在单个场馆的累计统计
type PlayerVenueStats struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID         string    `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:uk_player_venue;comment:选手ID"`
	VenueID          string    `gorm:"column:venue_id;type:varchar(64);not null;uniqueIndex:uk_player_venue;comment:场馆ID"`
	TotalGamesPlayed int64     `gorm:"column:total_games_played;type:bigint;default:0;comment:参赛总场次"`
	TotalBuyIns      int64     `gorm:"column:total_buy_ins;type:bigint;default:0;comment:买入总额(分)"`
	NetProfit        int64     `gorm:"column:net_profit;type:bigint;default:0;comment:净利润(分)"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (PlayerVenueStats) TableName() string { return "player_venue_stats" }
