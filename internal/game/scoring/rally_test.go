package scoring

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessRally_DoublesServerNumber(t *testing.T) {
	state := startedMatch(t, DefaultSettings())
	require.Equal(t, SideA, state.ServingTeam)
	require.Equal(t, 2, state.ServerNumber)
	assert.Equal(t, "a1", state.CurrentServer())

	// 发球方得分，发球员编号不变
	out, err := ProcessRally(state, SideA, tick(0))
	require.NoError(t, err)
	assert.Equal(t, EventPoint, out.Event.Type)
	assert.Equal(t, Score{A: 1, B: 0}, out.State.Score())
	assert.Equal(t, SideA, out.State.ServingTeam)
	assert.Equal(t, 2, out.State.ServerNumber)
	assert.True(t, out.State.PositionsLocked)

	// 得分后队友交换站位，同一名球员继续从左区发球
	assert.Equal(t, Positions{Left: "a1", Right: "a2"}, *out.State.TeamA.Positions)
	assert.Equal(t, PositionLeft, out.State.ServingPosition())
	assert.Equal(t, "a1", out.State.CurrentServer())
	assert.Equal(t, "b2", out.State.CurrentReceiver())

	// 2号发球员失分，换发给 B 的1号发球员
	out, err = ProcessRally(out.State, SideB, tick(1))
	require.NoError(t, err)
	assert.Equal(t, EventSideOut, out.Event.Type)
	assert.Equal(t, Score{A: 1, B: 0}, out.State.Score())
	assert.Equal(t, SideB, out.State.ServingTeam)
	assert.Equal(t, 1, out.State.ServerNumber)
	assert.Equal(t, Positions{Left: "b2", Right: "b1"}, *out.State.TeamB.Positions, "换发不交换站位")

	// 1号发球员失分，同队2号发球员接替
	out, err = ProcessRally(out.State, SideA, tick(2))
	require.NoError(t, err)
	assert.Equal(t, EventSideOut, out.Event.Type)
	assert.Equal(t, SideB, out.State.ServingTeam)
	assert.Equal(t, 2, out.State.ServerNumber)
	assert.Equal(t, Score{A: 1, B: 0}, out.State.Score())
}

func TestProcessRally_SinglesSideOut(t *testing.T) {
	s := singlesRally()
	s.SideOutScoring = true
	state := startedMatch(t, s)
	assert.Equal(t, 1, state.ServerNumber)
	assert.Equal(t, PositionNone, state.ServingPosition())
	assert.Equal(t, "a1", state.CurrentServer())

	state = play(t, state, "B")
	assert.Equal(t, Score{}, state.Score())
	assert.Equal(t, SideB, state.ServingTeam)
	assert.Equal(t, 1, state.ServerNumber)
	assert.Equal(t, "b1", state.CurrentServer())
	assert.Nil(t, state.TeamA.Positions)
}

func TestProcessRally_RallyScoring(t *testing.T) {
	state := startedMatch(t, singlesRally())

	out, err := ProcessRally(state, SideB, tick(0))
	require.NoError(t, err)
	assert.Equal(t, EventSideOut, out.Event.Type)
	assert.Equal(t, Score{A: 0, B: 1}, out.State.Score())
	assert.Equal(t, SideB, out.State.ServingTeam)
	assert.Equal(t, 1, out.State.ServerNumber)

	out, err = ProcessRally(out.State, SideB, tick(1))
	require.NoError(t, err)
	assert.Equal(t, EventPoint, out.Event.Type)
	assert.Equal(t, Score{A: 0, B: 2}, out.State.Score())
}

func TestProcessRally_InvalidWinner(t *testing.T) {
	state := startedMatch(t, DefaultSettings())

	out, err := ProcessRally(state, Side("C"), tick(0))
	assert.ErrorIs(t, err, ErrInvalidSide)
	assert.Equal(t, state, out.State)
	assert.Empty(t, state.RallyHistory)
}

func TestProcessRally_Deuce(t *testing.T) {
	state := startedMatch(t, singlesRally())
	state = play(t, state, strings.Repeat("AB", 10))
	require.Equal(t, Score{A: 10, B: 10}, state.Score())

	state = play(t, state, "A")
	assert.Equal(t, Score{A: 11, B: 10}, state.Score())
	assert.Equal(t, StatusInProgress, state.Status, "11-10 未满足净胜2分")
	assert.Empty(t, state.CompletedGames)

	out, err := ProcessRally(state, SideA, tick(state.Seq()))
	require.NoError(t, err)
	assert.Equal(t, EventMatchEnd, out.Event.Type)
	assert.Equal(t, Score{A: 12, B: 10}, out.Event.ScoreAfter)
	assert.Equal(t, StatusCompleted, out.State.Status)
	assert.Equal(t, SideA, out.State.Winner)
	require.Len(t, out.State.CompletedGames, 1)
	assert.Equal(t, 12, out.State.CompletedGames[0].ScoreA)
	assert.Equal(t, 10, out.State.CompletedGames[0].ScoreB)
}

func TestProcessRally_GameEndResetsForNextGame(t *testing.T) {
	s := DefaultSettings()
	state := startedMatch(t, s)

	state = play(t, state, strings.Repeat("A", 10))
	out, err := ProcessRally(state, SideA, tick(10))
	require.NoError(t, err)

	assert.Equal(t, EventGameEnd, out.Event.Type)
	assert.Equal(t, 1, out.Event.GameNumber)
	assert.Equal(t, Score{A: 11, B: 0}, out.Event.ScoreAfter)

	next := out.State
	assert.Equal(t, StatusBetweenGames, next.Status)
	assert.Equal(t, 2, next.CurrentGame)
	assert.Equal(t, Score{}, next.Score())
	assert.False(t, next.SidesSwitched)
	assert.Equal(t, SideB, next.ServingTeam, "输方下一局先发球")
	assert.Equal(t, 2, next.ServerNumber)
	assert.Equal(t, GamesWon{A: 1}, next.GamesWon)
	require.Len(t, next.CompletedGames, 1)
	assert.Equal(t, GameScore{GameNumber: 1, ScoreA: 11, ScoreB: 0, Winner: SideA, Duration: 220 * time.Second},
		next.CompletedGames[0])
	assert.Equal(t, SideB, out.Event.ServingTeam)
}

func TestReplay_BestOfThreeEndsAtTwoZero(t *testing.T) {
	s := singlesRally()
	s.BestOf = 3

	state, err := Replay(newMatch(t, s), sides(strings.Repeat("A", 22)), tick)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, SideA, state.Winner)
	assert.Equal(t, GamesWon{A: 2, B: 0}, state.GamesWon)
	assert.Len(t, state.CompletedGames, 2)
	assert.Equal(t, 2, state.CurrentGame, "不会创建第3局")
	assert.Equal(t, 22, state.Seq())
	assert.NotNil(t, state.CompletedAt)

	// 比赛结束后继续重放会失败
	_, err = Replay(state, sides("A"), tick)
	assert.True(t, IsInvalidTransition(err))
}

func TestProcessRally_SideSwitchFiresOnce(t *testing.T) {
	state := startedMatch(t, DefaultSettings())

	state = play(t, state, "AAAA")
	assert.False(t, state.SidesSwitched)

	state = play(t, state, "A")
	assert.True(t, state.SidesSwitched)
	last, _ := state.LastEvent()
	assert.True(t, last.SwitchedSides)

	state = play(t, state, "A")
	last, _ = state.LastEvent()
	assert.False(t, last.SwitchedSides)
	assert.True(t, state.SidesSwitched)

	// 撤销回到 4-0，再经由另一条路径到达 5 分
	var err error
	for i := 0; i < 2; i++ {
		state, err = UndoLastRally(state)
		require.NoError(t, err)
	}
	assert.Equal(t, Score{A: 4}, state.Score())
	assert.False(t, state.SidesSwitched)

	state = play(t, state, "BBBBBBBB")
	assert.Equal(t, Score{A: 4, B: 7}, state.Score())
	assert.True(t, state.SidesSwitched)

	switches := 0
	for _, e := range state.RallyHistory {
		if e.SwitchedSides {
			switches++
		}
	}
	assert.Equal(t, 1, switches)
}

func TestProcessRally_EndToEndShutout(t *testing.T) {
	s := Settings{PlayType: PlayDoubles, PointsPerGame: 11, WinBy: 2, BestOf: 1, SideOutScoring: true}
	state := startedMatch(t, s)
	state.ServerNumber = 1

	state = play(t, state, "B")
	assert.Equal(t, SideA, state.ServingTeam)
	assert.Equal(t, 2, state.ServerNumber)

	state = play(t, state, "B")
	assert.Equal(t, SideB, state.ServingTeam)
	assert.Equal(t, 1, state.ServerNumber)
	assert.Equal(t, Score{}, state.Score())

	state = play(t, state, strings.Repeat("B", 11))

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, SideB, state.Winner)
	assert.Equal(t, GamesWon{A: 0, B: 1}, state.GamesWon)
	require.Len(t, state.CompletedGames, 1)
	assert.Equal(t, 0, state.CompletedGames[0].ScoreA)
	assert.Equal(t, 11, state.CompletedGames[0].ScoreB)
	assert.Equal(t, SideB, state.CompletedGames[0].Winner)
	assert.Len(t, state.RallyHistory, 13)

	last, _ := state.LastEvent()
	assert.Equal(t, EventMatchEnd, last.Type)
	assert.NoError(t, CheckInvariants(state))
}

// randomMatch 用固定种子生成一场打完的比赛的回合序列
func randomMatch(t *testing.T, initial MatchState, seed int64) []Side {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	state := initial
	var winners []Side
	for i := 0; i < 2000 && state.Status != StatusCompleted; i++ {
		w := SideA
		if rng.Intn(2) == 1 {
			w = SideB
		}
		winners = append(winners, w)

		var err error
		state, err = Replay(state, []Side{w}, func(int) time.Time { return tick(i) })
		require.NoError(t, err)
	}
	require.Equal(t, StatusCompleted, state.Status)
	return winners
}

func TestReplay_Deterministic(t *testing.T) {
	configs := []Settings{
		DefaultSettings(),
		{PlayType: PlaySingles, PointsPerGame: 15, WinBy: 2, BestOf: 3, SideOutScoring: true},
		{PlayType: PlayDoubles, PointsPerGame: 21, WinBy: 1, BestOf: 5, SideOutScoring: false},
	}

	for i, s := range configs {
		initial := newMatch(t, s)
		winners := randomMatch(t, initial, int64(i+1))

		first, err := Replay(initial, winners, tick)
		require.NoError(t, err)
		second, err := Replay(initial, winners, tick)
		require.NoError(t, err)

		assert.Equal(t, first, second)

		a, err := json.Marshal(first)
		require.NoError(t, err)
		b, err := json.Marshal(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))

		assert.NoError(t, CheckInvariants(first))
		assert.Len(t, first.RallyHistory, len(winners))
	}
}

func TestMatchState_JSONRoundTrip(t *testing.T) {
	s := DefaultSettings()
	s.SwitchSidesAt = intPtr(4)
	state := startedMatch(t, s)
	state = play(t, state, "AABAB"+strings.Repeat("A", 10))
	require.Equal(t, StatusBetweenGames, state.Status)
	state, err := StartNextGame(state, tick(50))
	require.NoError(t, err)
	state = play(t, state, "BBA")

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded MatchState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, state, decoded)
}

func TestMatchState_CloneIsDeep(t *testing.T) {
	state := play(t, startedMatch(t, DefaultSettings()), "AA")
	clone := state.Clone()

	clone.TeamA.Positions.Left = "x"
	clone.RallyHistory[0].Note = "x"
	clone.TeamA.PlayerIDs[0] = "x"

	assert.NotEqual(t, "x", state.TeamA.Positions.Left)
	assert.Empty(t, state.RallyHistory[0].Note)
	assert.Equal(t, "a1", state.TeamA.PlayerIDs[0])
}
