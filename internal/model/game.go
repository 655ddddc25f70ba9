package model

import (
	"time"

	"gorm.io/datatypes"
)

// Game 比赛主表（单日比赛、多日航段子记录与归并父记录共用一张表）
// 可选字段全部用指针：nil 即"缺省"，落库为 NULL，代码中禁止写入零值占位。
// 金额字段统一为最小货币单位（分）的非负整数。
type Game struct {
	ID     string     `gorm:"primaryKey;column:id;type:varchar(64);comment:全局唯一ID"`
	Name   string     `gorm:"column:name;type:varchar(256);not null;comment:比赛名称"`
	Status GameStatus `gorm:"column:status;type:varchar(32);not null;index;comment:比赛状态"`

	RegistrationStatus RegistrationStatus `gorm:"column:registration_status;type:varchar(32);comment:报名状态"`

	GameStartDateTime *time.Time `gorm:"column:game_start_date_time;type:timestamp;index;comment:开赛时间"`
	GameEndDateTime   *time.Time `gorm:"column:game_end_date_time;type:timestamp;comment:结束时间"`

	EntityID string `gorm:"column:entity_id;type:varchar(64);index;comment:运营主体ID"`
	VenueID  string `gorm:"column:venue_id;type:varchar(64);index;comment:场馆ID"`

	BuyIn int64 `gorm:"column:buy_in;type:bigint;default:0;comment:买入金额(分)"`
	Rake  int64 `gorm:"column:rake;type:bigint;default:0;comment:抽水金额(分)"`

	// 系列赛信号
	TournamentSeriesID *string `gorm:"column:tournament_series_id;type:varchar(64);index;comment:系列赛ID"`
	SeriesName         *string `gorm:"column:series_name;type:varchar(128);comment:系列赛名称"`
	EventNumber        *int    `gorm:"column:event_number;type:int;comment:赛事编号"`
	IsMainEvent        bool    `gorm:"column:is_main_event;type:boolean;default:false;comment:是否主赛事"`

	// 多日信号
	DayNumber    *int    `gorm:"column:day_number;type:int;comment:比赛日编号"`
	FlightLetter *string `gorm:"column:flight_letter;type:varchar(4);comment:航段字母"`
	FinalDay     *bool   `gorm:"column:final_day;type:boolean;comment:是否决赛日"`

	// 累计指标
	TotalInitialEntries          int64 `gorm:"column:total_initial_entries;type:bigint;default:0;comment:首次报名总数"`
	TotalEntries                 int64 `gorm:"column:total_entries;type:bigint;default:0;comment:报名总数(含重入)"`
	TotalRebuys                  int64 `gorm:"column:total_rebuys;type:bigint;default:0;comment:重购总数"`
	TotalAddons                  int64 `gorm:"column:total_addons;type:bigint;default:0;comment:增购总数"`
	TotalUniquePlayers           int64 `gorm:"column:total_unique_players;type:bigint;default:0;comment:去重选手总数"`
	TotalBuyInsCollected         int64 `gorm:"column:total_buy_ins_collected;type:bigint;default:0;comment:买入总额(分)"`
	PrizepoolPaid                int64 `gorm:"column:prizepool_paid;type:bigint;default:0;comment:实付奖池(分)"`
	PrizepoolCalculated          int64 `gorm:"column:prizepool_calculated;type:bigint;default:0;comment:计算奖池(分)"`
	PrizepoolPlayerContributions int64 `gorm:"column:prizepool_player_contributions;type:bigint;default:0;comment:选手贡献奖池(分)"`
	ProjectedRakeRevenue         int64 `gorm:"column:projected_rake_revenue;type:bigint;default:0;comment:预计抽水收入(分)"`
	RakeRevenue                  int64 `gorm:"column:rake_revenue;type:bigint;default:0;comment:抽水收入(分)"`
	RakeSubsidy                  int64 `gorm:"column:rake_subsidy;type:bigint;default:0;comment:抽水补贴(分)"`
	GameProfit                   int64 `gorm:"column:game_profit;type:bigint;default:0;comment:比赛利润(分)"`
	FullRakeRealized             bool  `gorm:"column:full_rake_realized;type:boolean;default:false;comment:抽水是否足额"`

	// 保底与溢价（仅决赛日子记录可信，父记录从决赛日取值）
	GuaranteeOverlayCost *int64 `gorm:"column:guarantee_overlay_cost;type:bigint;comment:保底垫付成本(分)"`
	PrizepoolSurplus     *int64 `gorm:"column:prizepool_surplus;type:bigint;comment:奖池盈余(分)"`
	PrizepoolAddedValue  *int64 `gorm:"column:prizepool_added_value;type:bigint;comment:奖池附加价值(分)"`

	// 现场快照
	PlayersRemaining   *int   `gorm:"column:players_remaining;type:int;comment:剩余人数"`
	TotalChipsInPlay   *int64 `gorm:"column:total_chips_in_play;type:bigint;comment:场上总筹码"`
	AveragePlayerStack *int64 `gorm:"column:average_player_stack;type:bigint;comment:平均码量"`

	GameTags datatypes.JSON `gorm:"column:game_tags;type:jsonb;comment:比赛标签"`

	// 归并标记（仅归并引擎写入）
	ConsolidationType ConsolidationType `gorm:"column:consolidation_type;type:varchar(16);index;comment:归并类型"`
	ConsolidationKey  *string           `gorm:"column:consolidation_key;type:varchar(128);index;index:uq_parent_key,unique,where:consolidation_type = 'PARENT';comment:归并分组键"`
	ParentGameID      *string           `gorm:"column:parent_game_id;type:varchar(64);index;comment:父记录ID"`

	// 父记录派生字段（子记录上为空）
	IsPartialData                   bool    `gorm:"column:is_partial_data;type:boolean;default:false;comment:疑似缺航段"`
	MissingFlightCount              int     `gorm:"column:missing_flight_count;type:int;default:0;comment:疑似缺失航段数"`
	SummedUniquePlayersFromChildren int64   `gorm:"column:summed_unique_players_from_children;type:bigint;default:0;comment:子记录去重人数简单求和(诊断用)"`
	ExpectedTotalEntries            int64   `gorm:"column:expected_total_entries;type:bigint;default:0;comment:预期报名总数"`
	GameYearMonth                   *string `gorm:"column:game_year_month;type:varchar(8);index;comment:开赛年月 YYYY-MM"`
	GameDayOfWeek                   *string `gorm:"column:game_day_of_week;type:varchar(16);comment:开赛星期"`
	BuyInTier                       *string `gorm:"column:buy_in_tier;type:varchar(32);comment:买入档位"`
	TotalDurationSeconds            *int64  `gorm:"column:total_duration_seconds;type:bigint;comment:总时长(秒)"`

	IsMultiDayTournament bool `gorm:"column:is_multi_day_tournament;type:boolean;default:false;comment:是否多日赛"`

	// 来源与变更标记
	SourceURL     string     `gorm:"column:source_url;type:varchar(512);not null;comment:来源URL(父记录为合成标识)"`
	TournamentID  int64      `gorm:"column:tournament_id;type:bigint;default:0;comment:排序键占位(父记录恒为0)"`
	ContentHash   string     `gorm:"column:content_hash;type:varchar(64);comment:来源内容哈希"`
	DataChangedAt *time.Time `gorm:"column:data_changed_at;type:timestamp;comment:内容变更时间"`
	Version       int64      `gorm:"column:version;type:bigint;default:0;comment:单调版本号"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:now();comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:now();comment:更新时间"`
}

func (Game) TableName() string { return "games" }

// IsParent 是否归并父记录
func (g *Game) IsParent() bool { return g.ConsolidationType == ConsolidationParent }

// IsChild 是否已挂接到父记录的子航段
func (g *Game) IsChild() bool { return g.ConsolidationType == ConsolidationChild }

// IsFinalDayFlag 决赛日标记的安全取值
func (g *Game) IsFinalDayFlag() bool { return g.FinalDay != nil && *g.FinalDay }
