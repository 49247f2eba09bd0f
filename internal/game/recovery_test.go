package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"go.uber.org/zap"
)

func newRecovery(p StatePersister, idle time.Duration, now time.Time) *RecoveryManager {
	rm := NewRecoveryManager(zap.NewNop(), p, idle)
	rm.now = func() time.Time { return now }
	return rm
}

func TestRecoveryManager_NotFound(t *testing.T) {
	rm := newRecovery(NewMemoryStatePersister(), time.Minute, baseTime)

	_, _, err := rm.RecoverMatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestRecoveryManager_IdleInProgressIsPaused(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryStatePersister()
	state := playedState(t, "idle-1")
	require.NoError(t, p.Save(ctx, "idle-1", &state))

	last, _ := state.LastEvent()
	rm := newRecovery(p, 15*time.Minute, last.Timestamp.Add(time.Hour))

	recovered, changed, err := rm.RecoverMatch(ctx, "idle-1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, scoring.StatusPaused, recovered.Status)
	assert.Equal(t, state.Score(), recovered.Score())

	saved, err := p.Load(ctx, "idle-1")
	require.NoError(t, err)
	assert.Equal(t, scoring.StatusPaused, saved.Status)
}

func TestRecoveryManager_RecentInProgressUnchanged(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryStatePersister()
	state := playedState(t, "recent-1")
	require.NoError(t, p.Save(ctx, "recent-1", &state))

	last, _ := state.LastEvent()
	rm := newRecovery(p, 15*time.Minute, last.Timestamp.Add(time.Minute))

	recovered, changed, err := rm.RecoverMatch(ctx, "recent-1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, scoring.StatusInProgress, recovered.Status)
}

func TestRecoveryManager_OtherStatusesUnchanged(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryStatePersister()
	state := playedState(t, "paused-1")
	state, err := scoring.PauseGame(state)
	require.NoError(t, err)
	require.NoError(t, p.Save(ctx, "paused-1", &state))

	rm := newRecovery(p, time.Minute, baseTime.Add(24*time.Hour))
	recovered, changed, err := rm.RecoverMatch(ctx, "paused-1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, scoring.StatusPaused, recovered.Status)
}

func TestRecoveryManager_CorruptState(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryStatePersister()
	state := playedState(t, "bad-1")
	state.ScoreA = -1
	require.NoError(t, p.Save(ctx, "bad-1", &state))

	rm := newRecovery(p, time.Minute, baseTime)
	_, _, err := rm.RecoverMatch(ctx, "bad-1")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMatchStateCorrupt))
}

func TestRecoveryManager_TamperedLedger(t *testing.T) {
	ctx := context.Background()
	state := playedState(t, "ledger-1")

	tests := []struct {
		name   string
		tamper func(s *scoring.MatchState)
	}{
		{"final score", func(s *scoring.MatchState) { s.ScoreB = 4 }},
		{"rally winner", func(s *scoring.MatchState) { s.RallyHistory[0].RallyWinner = scoring.SideB }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := state.Clone()
			tt.tamper(&tampered)
			require.NoError(t, scoring.CheckInvariants(tampered))

			p := NewMemoryStatePersister()
			require.NoError(t, p.Save(ctx, "ledger-1", &tampered))

			rm := newRecovery(p, time.Minute, baseTime)
			_, _, err := rm.RecoverMatch(ctx, "ledger-1")
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrMatchStateCorrupt))
		})
	}

	p := NewMemoryStatePersister()
	require.NoError(t, p.Save(ctx, "ledger-1", &state))
	last, _ := state.LastEvent()
	recovered, _, err := newRecovery(p, time.Hour, last.Timestamp).RecoverMatch(ctx, "ledger-1")
	require.NoError(t, err)
	assert.Equal(t, state.Score(), recovered.Score())
}

func TestAuditLedger(t *testing.T) {
	state := playedState(t, "audit-1")
	assert.NoError(t, AuditLedger(state))

	t.Run("empty ledger", func(t *testing.T) {
		req := doublesRequest("audit-empty")
		fresh, err := scoring.NewMatch("audit-empty", req.Settings, req.TeamA, req.TeamB, scoring.MatchOptions{})
		require.NoError(t, err)
		assert.NoError(t, AuditLedger(fresh))
	})

	t.Run("tampered score", func(t *testing.T) {
		tampered := state.Clone()
		tampered.RallyHistory[1].ScoreAfter.A = 9
		assert.Error(t, AuditLedger(tampered))
	})

	t.Run("tampered final score", func(t *testing.T) {
		tampered := state.Clone()
		tampered.ScoreB = 4
		assert.Error(t, AuditLedger(tampered))
	})

	t.Run("forfeit at end", func(t *testing.T) {
		out, err := scoring.EndMatchEarly(state, scoring.SideB, "受伤退赛", baseTime.Add(time.Hour))
		require.NoError(t, err)
		assert.NoError(t, AuditLedger(out.State))
	})
}

func TestAuditLedger_AcrossGames(t *testing.T) {
	req := singlesRequest("audit-games")
	req.Settings.BestOf = 3
	state, err := scoring.NewMatch("audit-games", req.Settings, req.TeamA, req.TeamB, scoring.MatchOptions{FirstServer: scoring.SideB})
	require.NoError(t, err)

	winners := make([]scoring.Side, 0, 30)
	for i := 0; i < 11; i++ {
		winners = append(winners, scoring.SideA)
	}
	for i := 0; i < 5; i++ {
		winners = append(winners, scoring.SideB)
	}

	played, err := scoring.Replay(state, winners, func(i int) time.Time {
		return baseTime.Add(time.Duration(i) * time.Minute)
	})
	require.NoError(t, err)
	require.Equal(t, 2, played.CurrentGame)

	assert.NoError(t, AuditLedger(played))
}
