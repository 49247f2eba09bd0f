package repository

import (
	"context"
	"time"

	"github.com/wfunc/rally-scorer/internal/models"
	"gorm.io/gorm"
)

// MatchRepository 比赛仓储接口
type MatchRepository interface {
	BaseRepository
	Create(ctx context.Context, match *models.Match) error
	Update(ctx context.Context, match *models.Match) error
	FindByID(ctx context.Context, id uint) (*models.Match, error)
	FindByMatchID(ctx context.Context, matchID string) (*models.Match, error)
	List(ctx context.Context, status string, p *Pagination) ([]*models.Match, error)
	UpdateStatus(ctx context.Context, matchID, status string) error
	UpdateResult(ctx context.Context, matchID string, result *MatchOutcome) error
	FindStale(ctx context.Context, before time.Time) ([]*models.Match, error)
	Delete(ctx context.Context, matchID string) error
}

// MatchOutcome 比赛结束时写回比赛表的字段
type MatchOutcome struct {
	Status      string
	Winner      string
	GamesWonA   int
	GamesWonB   int
	EndReason   string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// matchRepo 比赛仓储实现
type matchRepo struct {
	*BaseRepo
}

// NewMatchRepository 创建比赛仓储
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// WithTx 使用事务
func (r *matchRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchRepo{BaseRepo: r.BaseRepo.WithTx(tx)}
}

// Create 创建比赛
func (r *matchRepo) Create(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

// Update 更新比赛
func (r *matchRepo) Update(ctx context.Context, match *models.Match) error {
	return r.db.WithContext(ctx).Save(match).Error
}

// FindByID 根据ID查找
func (r *matchRepo) FindByID(ctx context.Context, id uint) (*models.Match, error) {
	var match models.Match
	if err := r.db.WithContext(ctx).First(&match, id).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

// FindByMatchID 根据比赛ID查找
func (r *matchRepo) FindByMatchID(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		First(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// List 按状态分页查询，status 为空时查询全部
func (r *matchRepo) List(ctx context.Context, status string, p *Pagination) ([]*models.Match, error) {
	var matches []*models.Match

	byStatus := func(db *gorm.DB) *gorm.DB {
		if status != "" {
			return db.Where("status = ?", status)
		}
		return db
	}

	// 查询总数
	if err := r.db.WithContext(ctx).Model(&models.Match{}).Scopes(byStatus).Count(&p.Total).Error; err != nil {
		return nil, err
	}

	// 查询数据
	err := r.db.WithContext(ctx).
		Scopes(byStatus).
		Order("created_at desc").
		Order("id desc").
		Scopes(Paginate(p)).
		Find(&matches).Error

	return matches, err
}

// UpdateStatus 更新比赛状态
func (r *matchRepo) UpdateStatus(ctx context.Context, matchID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("match_id = ?", matchID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateResult 写回比赛结果
func (r *matchRepo) UpdateResult(ctx context.Context, matchID string, result *MatchOutcome) error {
	updates := map[string]interface{}{
		"status":       result.Status,
		"winner":       result.Winner,
		"games_won_a":  result.GamesWonA,
		"games_won_b":  result.GamesWonB,
		"end_reason":   result.EndReason,
		"started_at":   result.StartedAt,
		"completed_at": result.CompletedAt,
	}
	res := r.db.WithContext(ctx).
		Model(&models.Match{}).
		Where("match_id = ?", matchID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindStale 查找长时间未更新且未结束的比赛
func (r *matchRepo) FindStale(ctx context.Context, before time.Time) ([]*models.Match, error) {
	var matches []*models.Match
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{models.MatchStatusCompleted, models.MatchStatusCancelled}).
		Where("updated_at < ?", before).
		Find(&matches).Error
	return matches, err
}

// Delete 软删除比赛
func (r *matchRepo) Delete(ctx context.Context, matchID string) error {
	return r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Delete(&models.Match{}).Error
}
