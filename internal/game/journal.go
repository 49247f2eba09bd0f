package game

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/models"
	"github.com/wfunc/rally-scorer/internal/repository"
)

// Journal 比赛审计日志
type Journal struct {
	repo repository.MatchEventRepository
}

// NewJournal 创建审计日志
func NewJournal(repo repository.MatchEventRepository) *Journal {
	return &Journal{repo: repo}
}

// Entries 将一次操作转换为审计条目
func (j *Journal) Entries(action Action, prev, next scoring.MatchState, event *scoring.RallyEvent, cmd Command, at time.Time) []*models.MatchEvent {
	var entries []*models.MatchEvent

	switch {
	case event != nil:
		entry := newEntry(string(event.Type), next, cmd, at)
		entry.RallyEventID = event.ID
		entry.RallyWinner = string(event.RallyWinner)
		entry.GameNumber = event.GameNumber
		entry.ScoreA = event.ScoreAfter.A
		entry.ScoreB = event.ScoreAfter.B
		entries = append(entries, entry)

		if event.SwitchedSides {
			entries = append(entries, newEntry(EntrySwitchSides, next, cmd, at))
		}
	case action == ActionUndo:
		entry := newEntry(string(action), next, cmd, at)
		if undone, ok := prev.LastEvent(); ok {
			entry.RallyEventID = undone.ID
			entry.Payload = models.JSONMap{
				"undone_type": string(undone.Type),
				"from_seq":    prev.Seq(),
			}
		}
		entries = append(entries, entry)
	default:
		entries = append(entries, newEntry(string(action), next, cmd, at))
	}

	return entries
}

// newEntry 以操作后的状态填充审计条目
func newEntry(entryType string, state scoring.MatchState, cmd Command, at time.Time) *models.MatchEvent {
	score := state.Score()
	return &models.MatchEvent{
		EntryID:      ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String(),
		MatchID:      state.MatchID,
		Seq:          state.Seq(),
		Type:         entryType,
		GameNumber:   state.CurrentGame,
		ScoreA:       score.A,
		ScoreB:       score.B,
		ServingTeam:  string(state.ServingTeam),
		ServerNumber: state.ServerNumber,
		Status:       string(state.Status),
		ActorID:      cmd.ActorID,
		Note:         cmd.Note,
		OccurredAt:   at,
	}
}

// Record 写入审计条目
func (j *Journal) Record(ctx context.Context, entries ...*models.MatchEvent) error {
	if j == nil || j.repo == nil || len(entries) == 0 {
		return nil
	}
	if err := j.repo.Append(ctx, entries...); err != nil {
		return fmt.Errorf("写入审计日志失败: %w", err)
	}
	return nil
}

// History 查询比赛审计日志，types 为空时返回全部
func (j *Journal) History(ctx context.Context, matchID string, p *repository.Pagination, types ...string) ([]*models.MatchEvent, error) {
	if p == nil {
		p = repository.NewPagination(1, 100)
	}
	entries, err := j.repo.ListByMatch(ctx, matchID, p, types...)
	if err != nil {
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return entries, nil
}
