package game

import (
	"context"
	"fmt"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/models"
	"github.com/wfunc/rally-scorer/internal/repository"
)

// RepositoryRecorder 基于数据库仓储的比赛记录器
type RepositoryRecorder struct {
	repos *repository.Manager
}

// NewRepositoryRecorder 创建比赛记录器
func NewRepositoryRecorder(repos *repository.Manager) *RepositoryRecorder {
	return &RepositoryRecorder{repos: repos}
}

// RecordMatch 写入比赛元数据
func (r *RepositoryRecorder) RecordMatch(ctx context.Context, req *CreateMatchRequest, state scoring.MatchState) error {
	teams, err := models.ToJSONMap(map[string]scoring.Team{"a": state.TeamA, "b": state.TeamB})
	if err != nil {
		return fmt.Errorf("序列化队伍失败: %w", err)
	}
	settings, err := models.ToJSONMap(state.Settings)
	if err != nil {
		return fmt.Errorf("序列化比赛设置失败: %w", err)
	}

	match := &models.Match{
		MatchID:   state.MatchID,
		Title:     req.Title,
		Venue:     req.Venue,
		Court:     req.Court,
		PlayType:  string(state.Settings.PlayType),
		TeamAName: state.TeamA.Name,
		TeamBName: state.TeamB.Name,
		Teams:     teams,
		Settings:  settings,
		Status:    string(state.Status),
		ScorerID:  req.ScorerID,
		CreatedBy: req.CreatedBy,
	}
	return r.repos.Match().Create(ctx, match)
}

// RecordStatus 同步比赛状态与局分
func (r *RepositoryRecorder) RecordStatus(ctx context.Context, state scoring.MatchState) error {
	return r.repos.Match().UpdateResult(ctx, state.MatchID, outcomeOf(state))
}

// RecordResult 比赛结束时写入结果
func (r *RepositoryRecorder) RecordResult(ctx context.Context, state scoring.MatchState) error {
	result, err := resultOf(state)
	if err != nil {
		return err
	}

	return r.repos.WithTransaction(ctx, func(tx *repository.Manager) error {
		if err := tx.Match().UpdateResult(ctx, state.MatchID, outcomeOf(state)); err != nil {
			return fmt.Errorf("更新比赛结果失败: %w", err)
		}
		if err := tx.MatchResult().Record(ctx, result); err != nil {
			return fmt.Errorf("记录比赛结果失败: %w", err)
		}
		return nil
	})
}

// RevokeResult 撤销已结束比赛的结果
func (r *RepositoryRecorder) RevokeResult(ctx context.Context, state scoring.MatchState) error {
	return r.repos.WithTransaction(ctx, func(tx *repository.Manager) error {
		if err := tx.MatchResult().Delete(ctx, state.MatchID); err != nil {
			return fmt.Errorf("撤销比赛结果失败: %w", err)
		}
		return tx.Match().UpdateResult(ctx, state.MatchID, outcomeOf(state))
	})
}

func outcomeOf(state scoring.MatchState) *repository.MatchOutcome {
	return &repository.MatchOutcome{
		Status:      string(state.Status),
		Winner:      string(state.Winner),
		GamesWonA:   state.GamesWon.A,
		GamesWonB:   state.GamesWon.B,
		EndReason:   state.EndReason,
		StartedAt:   state.StartedAt,
		CompletedAt: state.CompletedAt,
	}
}

func resultOf(state scoring.MatchState) (*models.MatchResult, error) {
	games, err := models.ToJSONMap(map[string][]scoring.GameScore{"games": state.CompletedGames})
	if err != nil {
		return nil, fmt.Errorf("序列化局分失败: %w", err)
	}

	last, _ := state.LastEvent()
	completedAt := time.Time{}
	if state.CompletedAt != nil {
		completedAt = *state.CompletedAt
	}

	result := &models.MatchResult{
		MatchID:     state.MatchID,
		TeamAName:   state.TeamA.Name,
		TeamBName:   state.TeamB.Name,
		Winner:      string(state.Winner),
		GamesWonA:   state.GamesWon.A,
		GamesWonB:   state.GamesWon.B,
		Games:       games,
		Forfeit:     last.Forfeit,
		Cancelled:   state.Status == scoring.StatusCancelled,
		EndReason:   state.EndReason,
		Rallies:     len(pie.Filter(state.RallyHistory, func(e scoring.RallyEvent) bool { return !e.Forfeit })),
		CompletedAt: completedAt,
	}
	if state.Winner.Valid() {
		result.WinnerName = state.Team(state.Winner).Name
	}
	return result, nil
}
