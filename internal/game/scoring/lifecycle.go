package scoring

import (
	"errors"
	"time"
)

// 创建比赛错误
var (
	ErrInvalidMatchID = errors.New("比赛ID不能为空")
	ErrInvalidTeam    = errors.New("队伍人数与比赛类型不符")
)

// Command 生命周期操作
type Command string

const (
	CmdStart     Command = "start_game"
	CmdPause     Command = "pause_game"
	CmdResume    Command = "resume_game"
	CmdNextGame  Command = "start_next_game"
	CmdEndEarly  Command = "end_match_early"
	CmdCancel    Command = "cancel_match"
	CmdRally     Command = "process_rally"
	CmdPositions Command = "assign_positions"
)

var nonTerminal = []Status{StatusNotStarted, StatusInProgress, StatusPaused, StatusBetweenGames}

// transitions 生命周期转换表：操作 -> 允许的源状态
var transitions = map[Command][]Status{
	CmdStart:     {StatusNotStarted, StatusBetweenGames},
	CmdPause:     {StatusInProgress},
	CmdResume:    {StatusPaused},
	CmdNextGame:  {StatusBetweenGames},
	CmdEndEarly:  nonTerminal,
	CmdCancel:    nonTerminal,
	CmdRally:     {StatusInProgress},
	CmdPositions: nonTerminal,
}

// Allowed 操作允许的源状态
func Allowed(cmd Command) []Status {
	return transitions[cmd]
}

// CanApply 当前状态是否允许执行操作
func CanApply(cmd Command, from Status) bool {
	for _, s := range transitions[cmd] {
		if s == from {
			return true
		}
	}
	return false
}

func checkTransition(cmd Command, from Status) error {
	if CanApply(cmd, from) {
		return nil
	}
	return &InvalidTransitionError{Op: string(cmd), From: from, Allowed: transitions[cmd]}
}

// MatchOptions 创建比赛的可选参数
type MatchOptions struct {
	FirstServer Side // 默认 A
}

// NewMatch 创建一场未开始的比赛
func NewMatch(matchID string, settings Settings, teamA, teamB Team, opts MatchOptions) (MatchState, error) {
	if matchID == "" {
		return MatchState{}, ErrInvalidMatchID
	}
	if err := settings.Validate(); err != nil {
		return MatchState{}, err
	}

	want := 1
	if settings.IsDoubles() {
		want = 2
	}
	if len(teamA.PlayerIDs) != want || len(teamB.PlayerIDs) != want {
		return MatchState{}, ErrInvalidTeam
	}

	first := opts.FirstServer
	if first == SideNone {
		first = SideA
	}
	if !first.Valid() {
		return MatchState{}, ErrInvalidSide
	}

	state := MatchState{
		MatchID:      matchID,
		Settings:     settings,
		TeamA:        teamA,
		TeamB:        teamB,
		CurrentGame:  1,
		ServingTeam:  first,
		ServerNumber: settings.openingServerNumber(),
		Status:       StatusNotStarted,
	}
	state = state.Clone()

	if settings.IsDoubles() {
		for _, side := range []Side{SideA, SideB} {
			team := state.team(side)
			if team.Positions == nil {
				team.Positions = initialPositions(*team)
			} else if !samePlayers(team.PlayerIDs, *team.Positions) {
				return MatchState{}, ErrUnknownPlayer
			}
		}
	} else {
		state.TeamA.Positions = nil
		state.TeamB.Positions = nil
	}
	return state, nil
}

// StartGame 开始比赛或下一局
func StartGame(state MatchState, at time.Time) (MatchState, error) {
	if err := checkTransition(CmdStart, state.Status); err != nil {
		return state, err
	}
	return begin(state, at), nil
}

// StartNextGame 局间休息后开始下一局
func StartNextGame(state MatchState, at time.Time) (MatchState, error) {
	if err := checkTransition(CmdNextGame, state.Status); err != nil {
		return state, err
	}
	return begin(state, at), nil
}

func begin(state MatchState, at time.Time) MatchState {
	next := state.Clone()
	if next.StartedAt == nil {
		next.StartedAt = copyTime(&at)
	}
	next.CurrentGameStartedAt = copyTime(&at)
	next.Status = StatusInProgress
	return next
}

// PauseGame 暂停
func PauseGame(state MatchState) (MatchState, error) {
	if err := checkTransition(CmdPause, state.Status); err != nil {
		return state, err
	}
	next := state.Clone()
	next.Status = StatusPaused
	return next, nil
}

// ResumeGame 恢复
func ResumeGame(state MatchState, at time.Time) (MatchState, error) {
	if err := checkTransition(CmdResume, state.Status); err != nil {
		return state, err
	}
	next := state.Clone()
	next.Status = StatusInProgress
	if next.CurrentGameStartedAt == nil {
		next.CurrentGameStartedAt = copyTime(&at)
	}
	return next, nil
}

// EndMatchEarly 提前结束比赛（弃权），追加一条 match_end 事件，不经过比分判定
func EndMatchEarly(state MatchState, winner Side, reason string, at time.Time) (Outcome, error) {
	if err := checkTransition(CmdEndEarly, state.Status); err != nil {
		return Outcome{State: state}, err
	}
	if !winner.Valid() {
		return Outcome{State: state}, ErrInvalidSide
	}

	next := state.Clone()
	event := RallyEvent{
		ID:          eventID(state, winner, at),
		Timestamp:   at,
		Type:        EventMatchEnd,
		RallyWinner: winner,
		GameNumber:  state.CurrentGame,
		Forfeit:     true,
		Before:      snapshot(state),
		Note:        reason,
	}

	next.Status = StatusCompleted
	next.Winner = winner
	next.CompletedAt = copyTime(&at)
	next.EndReason = reason

	event.ScoreAfter = next.Score()
	event.ServingTeam = next.ServingTeam
	event.ServerNumber = next.ServerNumber
	event.PositionsAfter = next.courtPositions()

	next.RallyHistory = append(next.RallyHistory, event)
	return Outcome{State: next, Event: event}, nil
}

// CancelMatch 取消比赛，不产生回合事件且不可撤销
func CancelMatch(state MatchState, reason string, at time.Time) (MatchState, error) {
	if err := checkTransition(CmdCancel, state.Status); err != nil {
		return state, err
	}
	next := state.Clone()
	next.Status = StatusCancelled
	next.CompletedAt = copyTime(&at)
	next.EndReason = reason
	return next, nil
}
