package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// tick 第 i 个回合的时间
func tick(i int) time.Time {
	return baseTime.Add(time.Duration(i+1) * 20 * time.Second)
}

func doublesTeams() (Team, Team) {
	return Team{Name: "红队", Color: "red", PlayerIDs: []string{"a1", "a2"}},
		Team{Name: "蓝队", Color: "blue", PlayerIDs: []string{"b1", "b2"}}
}

func singlesTeams() (Team, Team) {
	return Team{Name: "甲", PlayerIDs: []string{"a1"}},
		Team{Name: "乙", PlayerIDs: []string{"b1"}}
}

// newMatch 按配置创建比赛，双打/单打队伍自动选择
func newMatch(t *testing.T, settings Settings) MatchState {
	t.Helper()
	teamA, teamB := singlesTeams()
	if settings.IsDoubles() {
		teamA, teamB = doublesTeams()
	}
	state, err := NewMatch("match-1", settings, teamA, teamB, MatchOptions{})
	require.NoError(t, err)
	return state
}

// startedMatch 创建并开始比赛
func startedMatch(t *testing.T, settings Settings) MatchState {
	t.Helper()
	state, err := StartGame(newMatch(t, settings), baseTime)
	require.NoError(t, err)
	return state
}

// play 依次处理回合，winners 形如 "AAB"
func play(t *testing.T, state MatchState, winners string) MatchState {
	t.Helper()
	for _, w := range strings.Split(winners, "") {
		out, err := ProcessRally(state, Side(w), tick(state.Seq()))
		require.NoError(t, err)
		state = out.State
	}
	return state
}

func sides(winners string) []Side {
	out := make([]Side, 0, len(winners))
	for _, w := range strings.Split(winners, "") {
		out = append(out, Side(w))
	}
	return out
}

func singlesRally() Settings {
	return Settings{PlayType: PlaySingles, PointsPerGame: 11, WinBy: 2, BestOf: 1, SideOutScoring: false}
}

func intPtr(n int) *int {
	return &n
}
