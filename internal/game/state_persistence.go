package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/models"
	"gorm.io/gorm"
)

// ErrStateNotFound 持久化存储中没有该比赛
var ErrStateNotFound = errors.New("比赛状态不存在")

// StatePersister 比赛状态持久化接口
type StatePersister interface {
	Save(ctx context.Context, matchID string, state *scoring.MatchState) error
	Load(ctx context.Context, matchID string) (*scoring.MatchState, error)
	Delete(ctx context.Context, matchID string) error
}

// MemoryStatePersister 内存状态持久化（用于测试与单机运行）
type MemoryStatePersister struct {
	mu     sync.RWMutex
	states map[string]scoring.MatchState
}

// NewMemoryStatePersister 创建内存持久化器
func NewMemoryStatePersister() *MemoryStatePersister {
	return &MemoryStatePersister{
		states: make(map[string]scoring.MatchState),
	}
}

// Save 保存状态
func (p *MemoryStatePersister) Save(ctx context.Context, matchID string, state *scoring.MatchState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states[matchID] = state.Clone()
	return nil
}

// Load 加载状态
func (p *MemoryStatePersister) Load(ctx context.Context, matchID string) (*scoring.MatchState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, exists := p.states[matchID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, matchID)
	}

	out := state.Clone()
	return &out, nil
}

// Delete 删除状态
func (p *MemoryStatePersister) Delete(ctx context.Context, matchID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.states, matchID)
	return nil
}

// DatabaseStatePersister 数据库状态持久化
type DatabaseStatePersister struct {
	db *gorm.DB
}

// NewDatabaseStatePersister 创建数据库持久化器
func NewDatabaseStatePersister(db *gorm.DB) *DatabaseStatePersister {
	return &DatabaseStatePersister{
		db: db,
	}
}

// Save 保存状态到数据库
func (p *DatabaseStatePersister) Save(ctx context.Context, matchID string, state *scoring.MatchState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化状态失败: %w", err)
	}

	row := &models.MatchState{
		MatchID:   matchID,
		Status:    string(state.Status),
		Seq:       state.Seq(),
		StateData: string(stateJSON),
	}

	// 存在则更新，不存在则插入
	result := p.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Assign(map[string]interface{}{
			"status":     row.Status,
			"seq":        row.Seq,
			"state_data": row.StateData,
			"updated_at": time.Now(),
		}).
		FirstOrCreate(row)

	if result.Error != nil {
		return fmt.Errorf("保存状态失败: %w", result.Error)
	}

	return nil
}

// Load 从数据库加载状态
func (p *DatabaseStatePersister) Load(ctx context.Context, matchID string) (*scoring.MatchState, error) {
	var row models.MatchState

	result := p.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		First(&row)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, matchID)
		}
		return nil, fmt.Errorf("查询状态失败: %w", result.Error)
	}

	var state scoring.MatchState
	if err := json.Unmarshal([]byte(row.StateData), &state); err != nil {
		return nil, fmt.Errorf("反序列化状态失败: %w", err)
	}

	return &state, nil
}

// Delete 从数据库删除状态
func (p *DatabaseStatePersister) Delete(ctx context.Context, matchID string) error {
	result := p.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Delete(&models.MatchState{})

	if result.Error != nil {
		return fmt.Errorf("删除状态失败: %w", result.Error)
	}

	return nil
}

// RedisClient 状态缓存所需的Redis命令
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStatePersister Redis状态持久化
type RedisStatePersister struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisStatePersister 创建Redis持久化器
func NewRedisStatePersister(client RedisClient, prefix string, ttl time.Duration) *RedisStatePersister {
	return &RedisStatePersister{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (p *RedisStatePersister) key(matchID string) string {
	return p.prefix + matchID
}

// Save 保存状态到Redis
func (p *RedisStatePersister) Save(ctx context.Context, matchID string, state *scoring.MatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化状态失败: %w", err)
	}

	if err := p.client.Set(ctx, p.key(matchID), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("写入Redis失败: %w", err)
	}
	return nil
}

// Load 从Redis加载状态
func (p *RedisStatePersister) Load(ctx context.Context, matchID string) (*scoring.MatchState, error) {
	data, err := p.client.Get(ctx, p.key(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrStateNotFound, matchID)
		}
		return nil, fmt.Errorf("读取Redis失败: %w", err)
	}

	var state scoring.MatchState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("反序列化状态失败: %w", err)
	}
	return &state, nil
}

// Delete 从Redis删除状态
func (p *RedisStatePersister) Delete(ctx context.Context, matchID string) error {
	if err := p.client.Del(ctx, p.key(matchID)).Err(); err != nil {
		return fmt.Errorf("删除Redis状态失败: %w", err)
	}
	return nil
}

// CacheStatePersister 带缓存的持久化器（装饰器模式）
type CacheStatePersister struct {
	cache   StatePersister // 缓存层（如Redis）
	storage StatePersister // 存储层（如数据库）
}

// NewCacheStatePersister 创建带缓存的持久化器
func NewCacheStatePersister(cache, storage StatePersister) *CacheStatePersister {
	return &CacheStatePersister{
		cache:   cache,
		storage: storage,
	}
}

// Save 保存状态（同时保存到缓存和存储）
func (p *CacheStatePersister) Save(ctx context.Context, matchID string, state *scoring.MatchState) error {
	if err := p.storage.Save(ctx, matchID, state); err != nil {
		return err
	}

	// 缓存失败时删除旧值，避免读到过期状态
	if err := p.cache.Save(ctx, matchID, state); err != nil {
		_ = p.cache.Delete(ctx, matchID)
	}

	return nil
}

// Load 加载状态（优先从缓存加载）
func (p *CacheStatePersister) Load(ctx context.Context, matchID string) (*scoring.MatchState, error) {
	if state, err := p.cache.Load(ctx, matchID); err == nil {
		return state, nil
	}

	state, err := p.storage.Load(ctx, matchID)
	if err != nil {
		return nil, err
	}

	// 回填缓存
	_ = p.cache.Save(ctx, matchID, state)

	return state, nil
}

// Delete 删除状态（同时删除缓存和存储）
func (p *CacheStatePersister) Delete(ctx context.Context, matchID string) error {
	_ = p.cache.Delete(ctx, matchID)

	return p.storage.Delete(ctx, matchID)
}
