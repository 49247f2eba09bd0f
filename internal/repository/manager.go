package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 仓储实例（使用懒加载）
	matchOnce sync.Once
	match     MatchRepository

	matchEventOnce sync.Once
	matchEvent     MatchEventRepository

	matchResultOnce sync.Once
	matchResult     MatchResultRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Match 获取比赛仓储
func (m *Manager) Match() MatchRepository {
	m.matchOnce.Do(func() {
		m.match = NewMatchRepository(m.db)
	})
	return m.match
}

// MatchEvent 获取比赛审计日志仓储
func (m *Manager) MatchEvent() MatchEventRepository {
	m.matchEventOnce.Do(func() {
		m.matchEvent = NewMatchEventRepository(m.db)
	})
	return m.matchEvent
}

// MatchResult 获取比赛结果仓储
func (m *Manager) MatchResult() MatchResultRepository {
	m.matchResultOnce.Do(func() {
		m.matchResult = NewMatchResultRepository(m.db)
	})
	return m.matchResult
}

// WithTransaction 在事务中执行，回调拿到绑定事务的仓储管理器
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Manager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewManager(tx))
	})
}
