package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatch(t *testing.T) {
	state := newMatch(t, DefaultSettings())

	assert.Equal(t, "match-1", state.MatchID)
	assert.Equal(t, StatusNotStarted, state.Status)
	assert.Equal(t, 1, state.CurrentGame)
	assert.Equal(t, Score{}, state.Score())
	assert.Equal(t, SideA, state.ServingTeam)
	assert.Equal(t, 2, state.ServerNumber)
	assert.False(t, state.PositionsLocked)
	assert.Equal(t, Positions{Left: "a2", Right: "a1"}, *state.TeamA.Positions)
	assert.Equal(t, Positions{Left: "b2", Right: "b1"}, *state.TeamB.Positions)
	assert.Nil(t, state.StartedAt)
	assert.NoError(t, CheckInvariants(state))

	// 单打及每球得分制从1号发球员开始
	assert.Equal(t, 1, newMatch(t, singlesRally()).ServerNumber)
	rallyDoubles := DefaultSettings()
	rallyDoubles.SideOutScoring = false
	assert.Equal(t, 1, newMatch(t, rallyDoubles).ServerNumber)
}

func TestNewMatch_Options(t *testing.T) {
	teamA, teamB := doublesTeams()
	teamB.Positions = &Positions{Left: "b1", Right: "b2"}

	state, err := NewMatch("m", DefaultSettings(), teamA, teamB, MatchOptions{FirstServer: SideB})
	require.NoError(t, err)
	assert.Equal(t, SideB, state.ServingTeam)
	assert.Equal(t, "b2", state.CurrentServer())

	// 调用方的队伍数据不会被修改
	teamB.Positions.Left = "x"
	assert.Equal(t, "b1", state.TeamB.Positions.Left)
}

func TestNewMatch_Invalid(t *testing.T) {
	teamA, teamB := doublesTeams()
	singleA, singleB := singlesTeams()

	_, err := NewMatch("", DefaultSettings(), teamA, teamB, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvalidMatchID)

	bad := DefaultSettings()
	bad.BestOf = 4
	_, err = NewMatch("m", bad, teamA, teamB, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvalidBestOf)

	_, err = NewMatch("m", DefaultSettings(), singleA, singleB, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvalidTeam)

	_, err = NewMatch("m", singlesRally(), teamA, teamB, MatchOptions{})
	assert.ErrorIs(t, err, ErrInvalidTeam)

	_, err = NewMatch("m", DefaultSettings(), teamA, teamB, MatchOptions{FirstServer: "C"})
	assert.ErrorIs(t, err, ErrInvalidSide)

	teamA.Positions = &Positions{Left: "a1", Right: "zz"}
	_, err = NewMatch("m", DefaultSettings(), teamA, teamB, MatchOptions{})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestLifecycle_HappyPath(t *testing.T) {
	state := newMatch(t, DefaultSettings())

	state, err := StartGame(state, baseTime)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, state.Status)
	assert.Equal(t, baseTime, *state.StartedAt)
	assert.Equal(t, baseTime, *state.CurrentGameStartedAt)

	state, err = PauseGame(state)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, state.Status)

	state, err = ResumeGame(state, tick(1))
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, state.Status)
	assert.Empty(t, state.RallyHistory, "暂停与恢复不产生回合事件")

	state = play(t, state, "AAAAAAAAAAA")
	require.Equal(t, StatusBetweenGames, state.Status)

	state, err = StartNextGame(state, tick(40))
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, state.Status)
	assert.Equal(t, baseTime, *state.StartedAt, "开赛时间只记录一次")
	assert.Equal(t, tick(40), *state.CurrentGameStartedAt)
}

func TestLifecycle_InvalidTransitions(t *testing.T) {
	notStarted := newMatch(t, DefaultSettings())
	inProgress := startedMatch(t, DefaultSettings())
	completed, err := EndMatchEarly(inProgress, SideA, "", tick(0))
	require.NoError(t, err)
	cancelled, err := CancelMatch(inProgress, "", tick(0))
	require.NoError(t, err)

	tests := []struct {
		name    string
		state   MatchState
		op      func(MatchState) (MatchState, error)
		allowed []Status
	}{
		{"未开始不能暂停", notStarted, PauseGame, []Status{StatusInProgress}},
		{"进行中不能恢复", inProgress, func(s MatchState) (MatchState, error) { return ResumeGame(s, tick(1)) }, []Status{StatusPaused}},
		{"进行中不能开始", inProgress, func(s MatchState) (MatchState, error) { return StartGame(s, tick(1)) }, []Status{StatusNotStarted, StatusBetweenGames}},
		{"进行中不能开始下一局", inProgress, func(s MatchState) (MatchState, error) { return StartNextGame(s, tick(1)) }, []Status{StatusBetweenGames}},
		{"未开始不能开始下一局", notStarted, func(s MatchState) (MatchState, error) { return StartNextGame(s, tick(1)) }, []Status{StatusBetweenGames}},
		{"已完成不能取消", completed.State, func(s MatchState) (MatchState, error) { return CancelMatch(s, "", tick(1)) }, nonTerminal},
		{"已取消不能暂停", cancelled, PauseGame, []Status{StatusInProgress}},
		{"已完成不能提前结束", completed.State, func(s MatchState) (MatchState, error) {
			out, err := EndMatchEarly(s, SideB, "", tick(1))
			return out.State, err
		}, nonTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.state)
			require.Error(t, err)

			var transition *InvalidTransitionError
			require.ErrorAs(t, err, &transition)
			assert.Equal(t, tt.state.Status, transition.From)
			assert.Equal(t, tt.allowed, transition.Allowed)
			assert.Equal(t, tt.state, got, "失败时状态不变")
		})
	}
}

func TestEndMatchEarly(t *testing.T) {
	state := play(t, startedMatch(t, DefaultSettings()), "AABBAB")
	score := state.Score()

	out, err := EndMatchEarly(state, SideB, "A队弃权", tick(10))
	require.NoError(t, err)

	assert.Equal(t, EventMatchEnd, out.Event.Type)
	assert.True(t, out.Event.Forfeit)
	assert.Equal(t, "A队弃权", out.Event.Note)
	assert.Equal(t, score, out.Event.ScoreAfter)

	final := out.State
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, SideB, final.Winner)
	assert.Equal(t, "A队弃权", final.EndReason)
	assert.Equal(t, tick(10), *final.CompletedAt)
	assert.Empty(t, final.CompletedGames, "弃权不经过比分判定")
	assert.Equal(t, state.Seq()+1, final.Seq())
	assert.NoError(t, CheckInvariants(final))

	// 弃权可以撤销
	undone, err := UndoLastRally(final)
	require.NoError(t, err)
	assert.Equal(t, state, undone)

	_, err = EndMatchEarly(state, SideNone, "", tick(10))
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestEndMatchEarly_BeforeStart(t *testing.T) {
	state := newMatch(t, DefaultSettings())

	out, err := EndMatchEarly(state, SideA, "B队未到场", tick(0))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.State.Status)
	assert.False(t, out.State.PositionsLocked)
	assert.NoError(t, CheckInvariants(out.State))
}

func TestCancelMatch(t *testing.T) {
	state := play(t, startedMatch(t, DefaultSettings()), "AB")

	cancelled, err := CancelMatch(state, "场地关闭", tick(5))
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "场地关闭", cancelled.EndReason)
	assert.Equal(t, state.RallyHistory, cancelled.RallyHistory, "取消不产生回合事件")
	assert.True(t, cancelled.Status.IsTerminal())
}

func TestCanApply(t *testing.T) {
	assert.True(t, CanApply(CmdRally, StatusInProgress))
	assert.False(t, CanApply(CmdRally, StatusPaused))
	assert.True(t, CanApply(CmdCancel, StatusBetweenGames))
	assert.False(t, CanApply(CmdCancel, StatusCompleted))
	assert.Equal(t, []Status{StatusPaused}, Allowed(CmdResume))
}
