package repository

import (
	"context"
	"time"

	"TournamentSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LifetimeDelta 生涯统计补偿增量（有符号，负数表示回冲重复计数）
type LifetimeDelta struct {
	TournamentsPlayed int64
	SessionsPlayed    int64
	TotalBuyIns       int64
	TournamentBuyIns  int64
	NetBalance        int64
}

// VenueDelta 场馆统计补偿增量
type VenueDelta struct {
	TotalGamesPlayed int64
	TotalBuyIns      int64
	NetProfit        int64
}

// PlayerRepository 选手参赛/成绩仓储接口（旅程归并器专用写入方）
type PlayerRepository interface {
	// ListEntriesByGame 拉取单场比赛全部参赛记录
	ListEntriesByGame(ctx context.Context, gameID string) ([]*model.PlayerEntry, error)
	// UpdateEntryClassification 改写报名分类并打上多日赛标记
	UpdateEntryClassification(ctx context.Context, entryID uint64, entryType model.EntryType) error
	// CreateAggregateEntry 创建父记录聚合参赛条目；(game_id, player_id) 已存在时静默跳过，返回是否新建
	CreateAggregateEntry(ctx context.Context, e *model.PlayerEntry) (bool, error)
	// ListResultsByGame 拉取单场比赛全部成绩
	ListResultsByGame(ctx context.Context, gameID string) ([]*model.PlayerResult, error)
	// CreateConsolidatedResult 创建归并成绩；已存在时静默跳过，返回是否新建
	CreateConsolidatedResult(ctx context.Context, r *model.PlayerResult) (bool, error)
	// SupersedeResult 把子比赛成绩标记为 SUPERSEDED；行不存在或已标记返回 false（不视为错误）
	SupersedeResult(ctx context.Context, gameID, playerID, parentGameID string) (bool, error)
	// ApplyLifetimeDelta 对生涯统计行做算术增量；目标行不存在返回 false，不创建
	ApplyLifetimeDelta(ctx context.Context, playerID string, d LifetimeDelta) (bool, error)
	// ApplyVenueDelta 对场馆统计行做算术增量；目标行不存在返回 false，不创建
	ApplyVenueDelta(ctx context.Context, playerID, venueID string, d VenueDelta) (bool, error)
}

type playerRepository struct {
	db *gorm.DB
}

// NewPlayerRepository 创建 PlayerRepository 实例
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) ListEntriesByGame(ctx context.Context, gameID string) ([]*model.PlayerEntry, error) {
	var entries []*model.PlayerEntry
	if err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *playerRepository) UpdateEntryClassification(ctx context.Context, entryID uint64, entryType model.EntryType) error {
	return r.db.WithContext(ctx).Model(&model.PlayerEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"entry_type":              entryType,
			"is_multi_day_tournament": true,
			"updated_at":              time.Now(),
		}).Error
}

func (r *playerRepository) CreateAggregateEntry(ctx context.Context, e *model.PlayerEntry) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
		DoNothing: true,
	}).Create(e)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *playerRepository) ListResultsByGame(ctx context.Context, gameID string) ([]*model.PlayerResult, error) {
	var results []*model.PlayerResult
	if err := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("finishing_place ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *playerRepository) CreateConsolidatedResult(ctx context.Context, pr *model.PlayerResult) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "player_id"}},
		DoNothing: true,
	}).Create(pr)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *playerRepository) SupersedeResult(ctx context.Context, gameID, playerID, parentGameID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PlayerResult{}).
		Where("game_id = ? AND player_id = ? AND record_type <> ?", gameID, playerID, model.RecordSuperseded).
		Updates(map[string]interface{}{
			"record_type":               model.RecordSuperseded,
			"consolidated_into_game_id": parentGameID,
			"updated_at":                time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *playerRepository) ApplyLifetimeDelta(ctx context.Context, playerID string, d LifetimeDelta) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PlayerLifetimeStats{}).
		Where("player_id = ?", playerID).
		Updates(map[string]interface{}{
			"tournaments_played": gorm.Expr("tournaments_played + ?", d.TournamentsPlayed),
			"sessions_played":    gorm.Expr("sessions_played + ?", d.SessionsPlayed),
			"total_buy_ins":      gorm.Expr("total_buy_ins + ?", d.TotalBuyIns),
			"tournament_buy_ins": gorm.Expr("tournament_buy_ins + ?", d.TournamentBuyIns),
			"net_balance":        gorm.Expr("net_balance + ?", d.NetBalance),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *playerRepository) ApplyVenueDelta(ctx context.Context, playerID, venueID string, d VenueDelta) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PlayerVenueStats{}).
		Where("player_id = ? AND venue_id = ?", playerID, venueID).
		Updates(map[string]interface{}{
			"total_games_played": gorm.Expr("total_games_played + ?", d.TotalGamesPlayed),
			"total_buy_ins":      gorm.Expr("total_buy_ins + ?", d.TotalBuyIns),
			"net_profit":         gorm.Expr("net_profit + ?", d.NetProfit),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
