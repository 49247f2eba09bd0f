package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/models"
	"go.uber.org/zap"
)

// MatchManager 比赛会话管理器
type MatchManager struct {
	mu             sync.RWMutex
	sessions       map[string]*MatchSession
	logger         *zap.Logger
	persister      StatePersister
	recovery       *RecoveryManager
	journal        *Journal
	broadcaster    Broadcaster
	recorder       ResultRecorder
	sessionTimeout time.Duration
	maxSessions    int
	now            func() time.Time
}

// MatchSession 单场比赛会话，所有写操作在会话锁内串行执行
type MatchSession struct {
	mu           sync.Mutex
	state        scoring.MatchState
	lastActivity time.Time
	closed       bool // 已保存并移出内存，持有者需重新获取会话
}

// ManagerConfig 会话管理器配置
type ManagerConfig struct {
	Logger         *zap.Logger
	Persister      StatePersister
	Journal        *Journal
	Broadcaster    Broadcaster
	Recorder       ResultRecorder
	SessionTimeout time.Duration
	IdlePauseAfter time.Duration
	MaxSessions    int
	Clock          func() time.Time
}

// NewMatchManager 创建会话管理器
func NewMatchManager(config *ManagerConfig) *MatchManager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	persister := config.Persister
	if persister == nil {
		persister = NewMemoryStatePersister()
	}
	var broadcaster Broadcaster = nopBroadcaster{}
	if config.Broadcaster != nil {
		broadcaster = config.Broadcaster
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	recovery := NewRecoveryManager(logger, persister, config.IdlePauseAfter)
	recovery.now = clock

	return &MatchManager{
		sessions:       make(map[string]*MatchSession),
		logger:         logger,
		persister:      persister,
		recovery:       recovery,
		journal:        config.Journal,
		broadcaster:    broadcaster,
		recorder:       config.Recorder,
		sessionTimeout: config.SessionTimeout,
		maxSessions:    config.MaxSessions,
		now:            clock,
	}
}

// CreateMatch 创建比赛
func (m *MatchManager) CreateMatch(ctx context.Context, req *CreateMatchRequest) (*Result, error) {
	matchID := req.MatchID
	if matchID == "" {
		matchID = uuid.NewString()
	}

	state, err := scoring.NewMatch(matchID, req.Settings, req.TeamA, req.TeamB,
		scoring.MatchOptions{FirstServer: req.FirstServer})
	if err != nil {
		return nil, apperrors.FromScoring(err)
	}

	m.mu.Lock()
	if _, exists := m.sessions[matchID]; exists {
		m.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrMatchAlreadyExists, matchID)
	}
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, apperrors.Newf(apperrors.ErrTooManyMatches, "上限 %d", m.maxSessions)
	}
	if _, err := m.persister.Load(ctx, matchID); err == nil {
		m.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrMatchAlreadyExists, matchID)
	}
	if err := m.persister.Save(ctx, matchID, &state); err != nil {
		m.mu.Unlock()
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存比赛状态失败")
	}

	at := m.now()
	session := &MatchSession{state: state, lastActivity: at}
	m.sessions[matchID] = session
	m.mu.Unlock()

	session.mu.Lock()
	defer session.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordMatch(ctx, req, state); err != nil {
			m.logger.Error("记录比赛信息失败",
				zap.String("match_id", matchID),
				zap.Error(err))
		}
	}
	m.publish(ctx, ActionCreate, state, state, nil, Command{ActorID: req.CreatedBy}, at)

	m.logger.Info("创建比赛",
		zap.String("match_id", matchID),
		zap.String("play_type", string(state.Settings.PlayType)),
		zap.String("team_a", state.TeamA.Name),
		zap.String("team_b", state.TeamB.Name))

	return &Result{State: state}, nil
}

// GetMatch 获取比赛当前状态，内存中不存在时从持久化存储恢复
func (m *MatchManager) GetMatch(ctx context.Context, matchID string) (scoring.MatchState, error) {
	session, err := m.lockSession(ctx, matchID)
	if err != nil {
		return scoring.MatchState{}, err
	}
	defer session.mu.Unlock()
	session.lastActivity = m.now()
	return session.state, nil
}

// session 获取会话，必要时恢复
func (m *MatchManager) session(ctx context.Context, matchID string) (*MatchSession, error) {
	m.mu.RLock()
	session, exists := m.sessions[matchID]
	m.mu.RUnlock()
	if exists {
		return session, nil
	}

	state, changed, err := m.recovery.RecoverMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, apperrors.New(apperrors.ErrMatchNotFound, matchID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "恢复比赛失败")
	}

	m.mu.Lock()
	if existing, ok := m.sessions[matchID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	at := m.now()
	session = &MatchSession{state: state, lastActivity: at}
	m.sessions[matchID] = session
	m.mu.Unlock()

	if changed {
		session.mu.Lock()
		m.publish(ctx, ActionRecover, state, state, nil, Command{Note: "自动暂停"}, at)
		if m.recorder != nil {
			if err := m.recorder.RecordStatus(ctx, state); err != nil {
				m.logger.Warn("同步比赛状态失败", zap.String("match_id", matchID), zap.Error(err))
			}
		}
		session.mu.Unlock()
	}

	m.logger.Info("恢复比赛会话",
		zap.String("match_id", matchID),
		zap.String("status", string(state.Status)))

	return session, nil
}

// lockSession 获取并锁定会话，会话在等锁期间被关闭时重新获取
func (m *MatchManager) lockSession(ctx context.Context, matchID string) (*MatchSession, error) {
	for {
		session, err := m.session(ctx, matchID)
		if err != nil {
			return nil, err
		}

		session.mu.Lock()
		if !session.closed {
			return session, nil
		}
		session.mu.Unlock()
	}
}

type transition func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error)

// operation 一次写操作
type operation struct {
	action    Action
	cmd       Command
	run       transition
	duplicate func(state scoring.MatchState, expectedSeq int) bool
}

// apply 在会话锁内执行操作，成功后持久化、记录审计日志并推送
func (m *MatchManager) apply(ctx context.Context, matchID string, op operation) (*Result, error) {
	session, err := m.lockSession(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer session.mu.Unlock()

	prev := session.state
	if expected := op.cmd.ExpectedSeq; expected != nil && *expected != prev.Seq() {
		if op.duplicate != nil && op.duplicate(prev, *expected) {
			last, _ := prev.LastEvent()
			m.logger.Info("忽略重复提交的回合",
				zap.String("match_id", matchID),
				zap.Int("seq", prev.Seq()))
			return &Result{State: prev, Event: &last, Duplicate: true}, nil
		}
		return nil, apperrors.Newf(apperrors.ErrVersionConflict, "期望序号 %d，当前序号 %d", *expected, prev.Seq())
	}

	at := m.now()
	next, event, err := op.run(prev, at)
	if err != nil {
		return nil, apperrors.FromScoring(err)
	}

	if err := m.persister.Save(ctx, matchID, &next); err != nil {
		m.logger.Error("保存比赛状态失败",
			zap.String("match_id", matchID),
			zap.String("action", string(op.action)),
			zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "保存比赛状态失败")
	}

	session.state = next
	session.lastActivity = at

	m.publish(ctx, op.action, prev, next, event, op.cmd, at)
	m.syncRecorder(ctx, prev, next)

	return &Result{State: next, Event: event}, nil
}

// publish 写入审计日志并推送更新
func (m *MatchManager) publish(ctx context.Context, action Action, prev, next scoring.MatchState, event *scoring.RallyEvent, cmd Command, at time.Time) {
	m.record(ctx, m.journal.Entries(action, prev, next, event, cmd, at)...)

	if err := m.broadcaster.Publish(ctx, next.MatchID, NewMatchUpdate(action, next, event, cmd.Note, at)); err != nil {
		m.logger.Warn("推送比赛更新失败",
			zap.String("match_id", next.MatchID),
			zap.Error(err))
	}

	score := next.Score()
	m.logger.Debug("比赛操作",
		zap.String("match_id", next.MatchID),
		zap.String("action", string(action)),
		zap.Int("seq", next.Seq()),
		zap.String("status", string(next.Status)),
		zap.Int("score_a", score.A),
		zap.Int("score_b", score.B),
		zap.String("actor", cmd.ActorID))
}

func (m *MatchManager) record(ctx context.Context, entries ...*models.MatchEvent) {
	if err := m.journal.Record(ctx, entries...); err != nil {
		m.logger.Warn("写入审计日志失败", zap.Error(err))
	}
}

// syncRecorder 状态变化时同步下游存储
func (m *MatchManager) syncRecorder(ctx context.Context, prev, next scoring.MatchState) {
	if m.recorder == nil {
		return
	}

	var err error
	switch {
	case next.Status.IsTerminal() && !prev.Status.IsTerminal():
		err = m.recorder.RecordResult(ctx, next)
	case prev.Status.IsTerminal() && !next.Status.IsTerminal():
		err = m.recorder.RevokeResult(ctx, next)
	case prev.Status != next.Status || prev.GamesWon != next.GamesWon:
		err = m.recorder.RecordStatus(ctx, next)
	}
	if err != nil {
		m.logger.Error("同步比赛结果失败",
			zap.String("match_id", next.MatchID),
			zap.String("status", string(next.Status)),
			zap.Error(err))
	}
}

// requireStatus 检查命令在当前状态下是否允许
func requireStatus(cmd scoring.Command, status scoring.Status) error {
	if scoring.CanApply(cmd, status) {
		return nil
	}
	return &scoring.InvalidTransitionError{Op: string(cmd), From: status, Allowed: scoring.Allowed(cmd)}
}

// Rally 记录一个回合的胜方
func (m *MatchManager) Rally(ctx context.Context, matchID string, winner scoring.Side, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionRally,
		cmd:    cmd,
		run: func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			if err := requireStatus(scoring.CmdRally, state.Status); err != nil {
				return state, nil, err
			}
			out, err := scoring.ProcessRally(state, winner, at)
			if err != nil {
				return state, nil, err
			}
			return out.State, &out.Event, nil
		},
		// 客户端重试上一个回合时按账本长度去重
		duplicate: func(state scoring.MatchState, expectedSeq int) bool {
			last, ok := state.LastEvent()
			return ok && expectedSeq == state.Seq()-1 && !last.Forfeit && last.RallyWinner == winner
		},
	})
}

// Undo 撤销最后一个回合
func (m *MatchManager) Undo(ctx context.Context, matchID string, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionUndo,
		cmd:    cmd,
		run: func(state scoring.MatchState, _ time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.UndoLastRally(state)
			return next, nil, err
		},
	})
}

// Start 开始比赛
func (m *MatchManager) Start(ctx context.Context, matchID string, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionStart,
		cmd:    cmd,
		run: func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.StartGame(state, at)
			return next, nil, err
		},
	})
}

// Pause 暂停比赛
func (m *MatchManager) Pause(ctx context.Context, matchID string, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionPause,
		cmd:    cmd,
		run: func(state scoring.MatchState, _ time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.PauseGame(state)
			return next, nil, err
		},
	})
}

// Resume 恢复比赛
func (m *MatchManager) Resume(ctx context.Context, matchID string, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionResume,
		cmd:    cmd,
		run: func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.ResumeGame(state, at)
			return next, nil, err
		},
	})
}

// NextGame 开始下一局
func (m *MatchManager) NextGame(ctx context.Context, matchID string, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionNextGame,
		cmd:    cmd,
		run: func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.StartNextGame(state, at)
			return next, nil, err
		},
	})
}

// EndEarly 提前结束比赛，cmd.Note 为原因
func (m *MatchManager) EndEarly(ctx context.Context, matchID string, winner scoring.Side, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionEndEarly,
		cmd:    cmd,
		run: func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			out, err := scoring.EndMatchEarly(state, winner, cmd.Note, at)
			if err != nil {
				return state, nil, err
			}
			return out.State, &out.Event, nil
		},
	})
}

// Cancel 取消比赛，cmd.Note 为原因
func (m *MatchManager) Cancel(ctx context.Context, matchID string, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionCancel,
		cmd:    cmd,
		run: func(state scoring.MatchState, at time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.CancelMatch(state, cmd.Note, at)
			return next, nil, err
		},
	})
}

// AssignPositions 设置一方的左右站位
func (m *MatchManager) AssignPositions(ctx context.Context, matchID string, side scoring.Side, positions scoring.Positions, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionPositions,
		cmd:    cmd,
		run: func(state scoring.MatchState, _ time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.AssignPositions(state, side, positions)
			return next, nil, err
		},
	})
}

// SwapPartners 交换一方两名队员的站位
func (m *MatchManager) SwapPartners(ctx context.Context, matchID string, side scoring.Side, cmd Command) (*Result, error) {
	return m.apply(ctx, matchID, operation{
		action: ActionSwap,
		cmd:    cmd,
		run: func(state scoring.MatchState, _ time.Time) (scoring.MatchState, *scoring.RallyEvent, error) {
			next, err := scoring.SwapPartners(state, side)
			return next, nil, err
		},
	})
}

// Timeout 记录暂停请求，只写审计日志，不改变比分与账本
func (m *MatchManager) Timeout(ctx context.Context, matchID string, side scoring.Side, cmd Command) (*Result, error) {
	session, err := m.lockSession(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer session.mu.Unlock()

	state := session.state
	if expected := cmd.ExpectedSeq; expected != nil && *expected != state.Seq() {
		return nil, apperrors.Newf(apperrors.ErrVersionConflict, "期望序号 %d，当前序号 %d", *expected, state.Seq())
	}
	if !side.Valid() {
		return nil, apperrors.FromScoring(scoring.ErrInvalidSide)
	}
	if state.Status != scoring.StatusInProgress {
		return nil, apperrors.FromScoring(&scoring.InvalidTransitionError{
			Op:      string(ActionTimeout),
			From:    state.Status,
			Allowed: []scoring.Status{scoring.StatusInProgress},
		})
	}

	at := m.now()
	entries := m.journal.Entries(ActionTimeout, state, state, nil, cmd, at)
	for _, entry := range entries {
		entry.Payload = models.JSONMap{"team": string(side)}
	}
	m.record(ctx, entries...)

	update := NewMatchUpdate(ActionTimeout, state, nil, cmd.Note, at)
	if err := m.broadcaster.Publish(ctx, matchID, update); err != nil {
		m.logger.Warn("推送比赛更新失败", zap.String("match_id", matchID), zap.Error(err))
	}
	session.lastActivity = at

	m.logger.Info("记录暂停请求",
		zap.String("match_id", matchID),
		zap.String("team", string(side)))

	return &Result{State: state}, nil
}

// RemoveMatch 保存最终状态并移出内存
func (m *MatchManager) RemoveMatch(ctx context.Context, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[matchID]
	if !exists {
		return apperrors.New(apperrors.ErrMatchNotFound, matchID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	state := session.state
	if err := m.closeSession(ctx, matchID, session); err != nil {
		m.logger.Error("保存比赛状态失败",
			zap.String("match_id", matchID),
			zap.Error(err))
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "保存比赛状态失败")
	}

	m.logger.Info("移除比赛会话",
		zap.String("match_id", matchID),
		zap.String("status", string(state.Status)),
		zap.Int("seq", state.Seq()))

	return nil
}

// closeSession 保存会话状态并移出内存，调用方须同时持有管理器锁与会话锁
func (m *MatchManager) closeSession(ctx context.Context, matchID string, session *MatchSession) error {
	state := session.state
	if err := m.persister.Save(ctx, matchID, &state); err != nil {
		return err
	}
	session.closed = true
	delete(m.sessions, matchID)
	return nil
}

// CleanupInactive 清理不活跃的会话，返回清理数量
func (m *MatchManager) CleanupInactive(ctx context.Context) int {
	if m.sessionTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for matchID, session := range m.sessions {
		session.mu.Lock()
		inactive := now.Sub(session.lastActivity)
		if inactive <= m.sessionTimeout {
			session.mu.Unlock()
			continue
		}

		err := m.closeSession(ctx, matchID, session)
		session.mu.Unlock()
		if err != nil {
			m.logger.Error("保存超时会话状态失败",
				zap.String("match_id", matchID),
				zap.Error(err))
			continue
		}
		removed++

		m.logger.Info("清理超时会话",
			zap.String("match_id", matchID),
			zap.Duration("inactive", inactive))
	}
	return removed
}

// CloseAll 停机时保存所有会话并清空内存，返回保存成功的数量
func (m *MatchManager) CloseAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := 0
	for matchID, session := range m.sessions {
		session.mu.Lock()
		if err := m.closeSession(ctx, matchID, session); err != nil {
			m.logger.Error("停机保存比赛状态失败",
				zap.String("match_id", matchID),
				zap.Error(err))
			// 停机时无论保存成败都不再接受写入
			session.closed = true
			delete(m.sessions, matchID)
		} else {
			saved++
		}
		session.mu.Unlock()
	}
	return saved
}

// StartCleanupTask 启动清理任务
func (m *MatchManager) StartCleanupTask(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				m.logger.Info("停止会话清理任务")
				return
			case <-ticker.C:
				m.CleanupInactive(ctx)
			}
		}
	}()
}

// ActiveMatches 内存中的会话数
func (m *MatchManager) ActiveMatches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
