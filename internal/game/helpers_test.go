package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/repository"
)

var baseTime = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// stepClock 每次调用前进 10 秒
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: baseTime}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(10 * time.Second)
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureBroadcaster 记录推送的更新
type captureBroadcaster struct {
	mu      sync.Mutex
	updates []*MatchUpdate
	err     error
}

func (b *captureBroadcaster) Publish(_ context.Context, _ string, update *MatchUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, update)
	return b.err
}

func (b *captureBroadcaster) Actions() []Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Action, 0, len(b.updates))
	for _, u := range b.updates {
		out = append(out, u.Action)
	}
	return out
}

// failingPersister 保存总是失败
type failingPersister struct {
	*MemoryStatePersister
	fail bool
}

func (p *failingPersister) Save(ctx context.Context, matchID string, state *scoring.MatchState) error {
	if p.fail {
		return errors.New("磁盘已满")
	}
	return p.MemoryStatePersister.Save(ctx, matchID, state)
}

// fakeRedis 内存实现的 RedisClient
type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttl     map[string]time.Duration
	failSet bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return redis.NewStatusResult("", errors.New("连接被拒绝"))
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func doublesRequest(matchID string) *CreateMatchRequest {
	return &CreateMatchRequest{
		MatchID:  matchID,
		Title:    "周末联赛",
		Venue:    "体育馆",
		Court:    "1号场",
		Settings: scoring.DefaultSettings(),
		TeamA:    scoring.Team{Name: "红队", PlayerIDs: []string{"a1", "a2"}},
		TeamB:    scoring.Team{Name: "蓝队", PlayerIDs: []string{"b1", "b2"}},
	}
}

// singlesRequest 单打每球得分一局定胜负
func singlesRequest(matchID string) *CreateMatchRequest {
	return &CreateMatchRequest{
		MatchID: matchID,
		Settings: scoring.Settings{
			PlayType:      scoring.PlaySingles,
			PointsPerGame: 11,
			WinBy:         2,
			BestOf:        1,
		},
		TeamA:     scoring.Team{Name: "甲", PlayerIDs: []string{"a1"}},
		TeamB:     scoring.Team{Name: "乙", PlayerIDs: []string{"b1"}},
		ScorerID:  "scorer-1",
		CreatedBy: "organizer-1",
	}
}

type testEnv struct {
	manager     *MatchManager
	repos       *repository.Manager
	journal     *Journal
	broadcaster *captureBroadcaster
	persister   *failingPersister
	clock       *stepClock
}

// newTestEnv 创建使用内存数据库的会话管理器
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := repository.TestDB(t)
	repos := repository.NewManager(db)

	env := &testEnv{
		repos:       repos,
		journal:     NewJournal(repos.MatchEvent()),
		broadcaster: &captureBroadcaster{},
		persister:   &failingPersister{MemoryStatePersister: NewMemoryStatePersister()},
		clock:       newStepClock(),
	}
	env.manager = NewMatchManager(&ManagerConfig{
		Persister:      env.persister,
		Journal:        env.journal,
		Broadcaster:    env.broadcaster,
		Recorder:       NewRepositoryRecorder(repos),
		SessionTimeout: time.Hour,
		IdlePauseAfter: 15 * time.Minute,
		MaxSessions:    3,
		Clock:          env.clock.Now,
	})
	return env
}

// startedMatch 创建并开始比赛
func (e *testEnv) startedMatch(t *testing.T, req *CreateMatchRequest) scoring.MatchState {
	t.Helper()
	ctx := context.Background()
	_, err := e.manager.CreateMatch(ctx, req)
	require.NoError(t, err)
	res, err := e.manager.Start(ctx, req.MatchID, Command{ActorID: "scorer-1"})
	require.NoError(t, err)
	return res.State
}

// rallies 依次记录回合，winners 形如 "AAB"
func (e *testEnv) rallies(t *testing.T, matchID, winners string) scoring.MatchState {
	t.Helper()
	var state scoring.MatchState
	for _, w := range winners {
		res, err := e.manager.Rally(context.Background(), matchID, scoring.Side(string(w)), Command{ActorID: "scorer-1"})
		require.NoError(t, err)
		state = res.State
	}
	return state
}

func intPtr(n int) *int {
	return &n
}
