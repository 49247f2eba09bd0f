package game

import (
	"context"
	"fmt"
	"time"

	"github.com/elliotchance/pie/v2"
	apperrors "github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"go.uber.org/zap"
)

// RecoveryManager 比赛恢复管理器
type RecoveryManager struct {
	logger    *zap.Logger
	persister StatePersister
	idlePause time.Duration // 进行中比赛超过该时长无回合则自动暂停
	now       func() time.Time
}

// NewRecoveryManager 创建恢复管理器
func NewRecoveryManager(logger *zap.Logger, persister StatePersister, idlePause time.Duration) *RecoveryManager {
	return &RecoveryManager{
		logger:    logger,
		persister: persister,
		idlePause: idlePause,
		now:       time.Now,
	}
}

// RecoverMatch 从持久化存储恢复比赛，返回的 changed 表示恢复策略修改了状态
func (rm *RecoveryManager) RecoverMatch(ctx context.Context, matchID string) (state scoring.MatchState, changed bool, err error) {
	loaded, err := rm.persister.Load(ctx, matchID)
	if err != nil {
		return scoring.MatchState{}, false, err
	}

	if err := scoring.CheckInvariants(*loaded); err != nil {
		rm.logger.Error("比赛状态校验失败",
			zap.String("match_id", matchID),
			zap.Error(err))
		return scoring.MatchState{}, false, apperrors.New(apperrors.ErrMatchStateCorrupt, matchID).WithCause(err)
	}
	if err := AuditLedger(*loaded); err != nil {
		rm.logger.Error("比赛账本重放校验失败",
			zap.String("match_id", matchID),
			zap.Int("seq", loaded.Seq()),
			zap.Error(err))
		return scoring.MatchState{}, false, apperrors.New(apperrors.ErrMatchStateCorrupt, matchID).WithCause(err)
	}

	strategy := rm.getRecoveryStrategy(loaded.Status)
	recovered, changed, err := strategy(*loaded)
	if err != nil {
		return scoring.MatchState{}, false, fmt.Errorf("执行恢复策略失败: %w", err)
	}

	if changed {
		if err := rm.persister.Save(ctx, matchID, &recovered); err != nil {
			return scoring.MatchState{}, false, err
		}
	}

	rm.logger.Info("比赛恢复成功",
		zap.String("match_id", matchID),
		zap.String("status", string(recovered.Status)),
		zap.Int("seq", recovered.Seq()),
		zap.Bool("changed", changed))

	return recovered, changed, nil
}

type recoveryStrategy func(scoring.MatchState) (scoring.MatchState, bool, error)

// getRecoveryStrategy 根据状态获取恢复策略
func (rm *RecoveryManager) getRecoveryStrategy(status scoring.Status) recoveryStrategy {
	strategies := map[scoring.Status]recoveryStrategy{
		scoring.StatusInProgress: rm.recoverInProgress,
	}

	if strategy, exists := strategies[status]; exists {
		return strategy
	}
	return rm.recoverUnchanged
}

// recoverInProgress 长时间无回合的进行中比赛转为暂停
func (rm *RecoveryManager) recoverInProgress(state scoring.MatchState) (scoring.MatchState, bool, error) {
	if rm.idlePause <= 0 {
		return state, false, nil
	}

	last := lastActivity(state)
	if last.IsZero() || rm.now().Sub(last) <= rm.idlePause {
		return state, false, nil
	}

	rm.logger.Info("比赛长时间无回合，自动暂停",
		zap.String("match_id", state.MatchID),
		zap.Time("last_activity", last))

	paused, err := scoring.PauseGame(state)
	if err != nil {
		return state, false, err
	}
	return paused, true, nil
}

// recoverUnchanged 其他状态原样恢复
func (rm *RecoveryManager) recoverUnchanged(state scoring.MatchState) (scoring.MatchState, bool, error) {
	return state, false, nil
}

// lastActivity 最后一次回合或开局的时间
func lastActivity(state scoring.MatchState) time.Time {
	var last time.Time
	if ev, ok := state.LastEvent(); ok {
		last = ev.Timestamp
	}
	if state.CurrentGameStartedAt != nil && state.CurrentGameStartedAt.After(last) {
		last = *state.CurrentGameStartedAt
	}
	return last
}

// AuditLedger 按账本中的回合胜方重放比赛，校验比分与事件是否一致
func AuditLedger(persisted scoring.MatchState) error {
	rallies := pie.Filter(persisted.RallyHistory, func(e scoring.RallyEvent) bool {
		return !e.Forfeit
	})
	if len(rallies) == 0 {
		return nil
	}

	// 以首回合前的快照还原开局站位与发球方
	first := rallies[0].Before
	teamA, teamB := persisted.TeamA, persisted.TeamB
	teamA.Positions = first.Positions.A
	teamB.Positions = first.Positions.B

	initial, err := scoring.NewMatch(persisted.MatchID, persisted.Settings, teamA, teamB,
		scoring.MatchOptions{FirstServer: first.ServingTeam})
	if err != nil {
		return fmt.Errorf("重建初始状态失败: %w", err)
	}

	winners := pie.Map(rallies, func(e scoring.RallyEvent) scoring.Side { return e.RallyWinner })
	replayed, err := scoring.Replay(initial, winners, func(i int) time.Time { return rallies[i].Timestamp })
	if err != nil {
		return fmt.Errorf("重放失败: %w", err)
	}

	for i, want := range rallies {
		got := replayed.RallyHistory[i]
		if got.ID != want.ID || got.Type != want.Type || got.ScoreAfter != want.ScoreAfter ||
			got.ServingTeam != want.ServingTeam || got.ServerNumber != want.ServerNumber {
			return fmt.Errorf("第 %d 回合与重放结果不一致", i+1)
		}
	}

	if len(rallies) == len(persisted.RallyHistory) {
		if replayed.Score() != persisted.Score() || replayed.GamesWon != persisted.GamesWon ||
			replayed.CurrentGame != persisted.CurrentGame {
			return fmt.Errorf("重放比分 %d-%d 与记录 %d-%d 不一致",
				replayed.ScoreA, replayed.ScoreB, persisted.ScoreA, persisted.ScoreB)
		}
	}
	return nil
}
