package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"TournamentSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrParentKeyConflict 父记录创建时撞上唯一键：另一个 worker 已抢先创建
var ErrParentKeyConflict = errors.New("父记录归并键冲突")

// GameRepository 比赛仓储接口（归并引擎与刷新控制器共用）
type GameRepository interface {
	// GetByID 按 ID 查比赛，不存在返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*model.Game, error)
	// GetBySourceURL 按来源 URL 查比赛（重抓时复用已有行），不存在返回 (nil, nil)
	GetBySourceURL(ctx context.Context, url string) (*model.Game, error)
	// FindParentByKey 按归并键查 PARENT 记录，不存在返回 (nil, nil)
	FindParentByKey(ctx context.Context, key string) (*model.Game, error)
	// CreateParent 创建父记录；唯一键冲突返回 ErrParentKeyConflict（调用方重查后采用已有父记录）
	CreateParent(ctx context.Context, parent *model.Game) error
	// LinkChild 原子挂接子记录：仅当未挂接或已挂到同一父记录时生效，并使版本号+1
	LinkChild(ctx context.Context, childID, parentID, key string) (bool, error)
	// ListChildren 按 parent_game_id 拉取全部子记录，开赛时间升序、空值排尾
	ListChildren(ctx context.Context, parentID string) ([]*model.Game, error)
	// UpdateParentAggregates 写入父记录派生字段并使版本号+1
	UpdateParentAggregates(ctx context.Context, parentID string, fields map[string]interface{}) error
	// UpsertFromSource 抓取解析结果入库（按 ID 冲突则更新内容字段）
	UpsertFromSource(ctx context.Context, g *model.Game) error
	// ListByStatuses 按状态集合拉取比赛（刷新控制器选取候选用）
	ListByStatuses(ctx context.Context, statuses []model.GameStatus, limit int) ([]*model.Game, error)
	// ListParents 分页查父记录（读接口用）
	ListParents(ctx context.Context, filter ParentFilter, page, pageSize int) ([]*model.Game, int64, error)
}

// ParentFilter 父记录列表筛选
type ParentFilter struct {
	Status    model.GameStatus
	VenueID   string
	YearMonth string // YYYY-MM
}

type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository 创建 GameRepository 实例
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepository{db: db}
}

func (r *gameRepository) GetByID(ctx context.Context, id string) (*model.Game, error) {
	var g model.Game
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *gameRepository) GetBySourceURL(ctx context.Context, url string) (*model.Game, error) {
	var g model.Game
	if err := r.db.WithContext(ctx).
		Where("source_url = ?", url).
		Order("created_at DESC").
		First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *gameRepository) FindParentByKey(ctx context.Context, key string) (*model.Game, error) {
	var g model.Game
	err := r.db.WithContext(ctx).
		Where("consolidation_type = ? AND consolidation_key = ?", model.ConsolidationParent, key).
		First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &g, nil
}

func (r *gameRepository) CreateParent(ctx context.Context, parent *model.Game) error {
	if err := r.db.WithContext(ctx).Create(parent).Error; err != nil {
		// 并发创建同键父记录时撞 uq_parent_key，由调用方重查采用胜者
		if strings.Contains(err.Error(), "uq_parent_key") || strings.Contains(err.Error(), "duplicate key") {
			return ErrParentKeyConflict
		}
		return err
	}
	return nil
}

func (r *gameRepository) LinkChild(ctx context.Context, childID, parentID, key string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ? AND (parent_game_id IS NULL OR parent_game_id = ?)", childID, parentID).
		Updates(map[string]interface{}{
			"parent_game_id":     parentID,
			"consolidation_type": model.ConsolidationChild,
			"consolidation_key":  key,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gameRepository) ListChildren(ctx context.Context, parentID string) ([]*model.Game, error) {
	var children []*model.Game
	if err := r.db.WithContext(ctx).
		Where("parent_game_id = ?", parentID).
		Order(clause.OrderBy{Expression: clause.Expr{SQL: "game_start_date_time ASC NULLS LAST"}}).
		Find(&children).Error; err != nil {
		return nil, err
	}
	return children, nil
}

func (r *gameRepository) UpdateParentAggregates(ctx context.Context, parentID string, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ? AND consolidation_type = ?", parentID, model.ConsolidationParent).
		Updates(fields).Error
}

func (r *gameRepository) UpsertFromSource(ctx context.Context, g *model.Game) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "status", "registration_status", "game_start_date_time", "game_end_date_time",
			"buy_in", "rake", "day_number", "flight_letter", "final_day",
			"total_initial_entries", "total_entries", "total_rebuys", "total_addons",
			"total_unique_players", "prizepool_paid", "prizepool_calculated",
			"rake_revenue", "game_profit", "full_rake_realized",
			"players_remaining", "total_chips_in_play", "average_player_stack",
			"content_hash", "data_changed_at", "updated_at",
		}),
	}).Create(g).Error
}

func (r *gameRepository) ListByStatuses(ctx context.Context, statuses []model.GameStatus, limit int) ([]*model.Game, error) {
	if limit <= 0 {
		limit = 500
	}
	var games []*model.Game
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND consolidation_type <> ?", statuses, model.ConsolidationParent).
		Limit(limit).Find(&games).Error; err != nil {
		return nil, err
	}
	return games, nil
}

func (r *gameRepository) ListParents(ctx context.Context, filter ParentFilter, page, pageSize int) ([]*model.Game, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.Game{}).
		Where("consolidation_type = ?", model.ConsolidationParent)
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.VenueID != "" {
		db = db.Where("venue_id = ?", filter.VenueID)
	}
	if filter.YearMonth != "" {
		db = db.Where("game_year_month = ?", filter.YearMonth)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Game
	if err := db.Order(clause.OrderBy{Expression: clause.Expr{SQL: "game_start_date_time ASC NULLS LAST"}}).
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
