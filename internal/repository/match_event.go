package repository

import (
	"context"

	"github.com/wfunc/rally-scorer/internal/models"
	"gorm.io/gorm"
)

// MatchEventRepository 比赛审计日志仓储接口
type MatchEventRepository interface {
	BaseRepository
	Append(ctx context.Context, events ...*models.MatchEvent) error
	ListByMatch(ctx context.Context, matchID string, p *Pagination, types ...string) ([]*models.MatchEvent, error)
}

// matchEventRepo 审计日志仓储实现
type matchEventRepo struct {
	*BaseRepo
}

// NewMatchEventRepository 创建审计日志仓储
func NewMatchEventRepository(db *gorm.DB) MatchEventRepository {
	return &matchEventRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// WithTx 使用事务
func (r *matchEventRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchEventRepo{BaseRepo: r.BaseRepo.WithTx(tx)}
}

// Append 追加日志，多条时在同一事务内写入
func (r *matchEventRepo) Append(ctx context.Context, events ...*models.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&events).Error
}

// ListByMatch 按时间顺序分页查询比赛日志，types 非空时只返回这些类型
func (r *matchEventRepo) ListByMatch(ctx context.Context, matchID string, p *Pagination, types ...string) ([]*models.MatchEvent, error) {
	var events []*models.MatchEvent

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("match_id = ?", matchID)
		if len(types) > 0 {
			db = db.Where("type IN ?", types)
		}
		return db
	}

	err := r.db.WithContext(ctx).
		Model(&models.MatchEvent{}).
		Scopes(scope).
		Count(&p.Total).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Scopes(scope, Paginate(p)).
		Order("id asc").
		Find(&events).Error
	return events, err
}
