package scoring

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// eventNamespace 回合事件ID的 UUIDv5 命名空间
var eventNamespace = uuid.MustParse("6f1c2a4e-3b7d-5c8e-9a0f-1d2e3f4a5b6c")

// Outcome 回合处理结果
type Outcome struct {
	State MatchState
	Event RallyEvent
}

// ProcessRally 处理一个回合。
// 纯函数：不读时钟、不做I/O，调用方负责保证比赛处于 in_progress 状态。
func ProcessRally(state MatchState, winner Side, at time.Time) (Outcome, error) {
	if !winner.Valid() {
		return Outcome{State: state}, ErrInvalidSide
	}

	next := state.Clone()
	before := snapshot(state)

	eventType := EventSideOut
	if winner == state.ServingTeam {
		eventType = EventPoint
	}

	if state.Settings.SideOutScoring {
		applySideOut(&next, winner)
	} else {
		applyRallyScoring(&next, winner)
	}

	// 每局只换边一次
	switched := false
	if !next.SidesSwitched && max(next.ScoreA, next.ScoreB) >= next.Settings.SwitchThreshold() {
		next.SidesSwitched = true
		switched = true
	}

	next.PositionsLocked = true

	event := RallyEvent{
		ID:            eventID(state, winner, at),
		Timestamp:     at,
		Type:          eventType,
		RallyWinner:   winner,
		ScoreAfter:    next.Score(),
		GameNumber:    next.CurrentGame,
		SwitchedSides: switched,
		Before:        before,
	}

	if IsGameWon(next.ScoreA, next.ScoreB, next.Settings) {
		event.Type = finishGame(&next, at)
	}

	event.ServingTeam = next.ServingTeam
	event.ServerNumber = next.ServerNumber
	event.PositionsAfter = next.courtPositions()

	next.RallyHistory = append(next.RallyHistory, event)
	return Outcome{State: next, Event: event}, nil
}

// applySideOut 发球得分制：只有发球方能得分
func applySideOut(s *MatchState, winner Side) {
	if winner == s.ServingTeam {
		s.addPoint(winner)
		if s.Settings.IsDoubles() {
			s.swapServingPartners()
		}
		return
	}

	if s.Settings.IsDoubles() && s.ServerNumber == 1 {
		s.ServerNumber = 2
		return
	}

	// 换发
	s.ServingTeam = s.ServingTeam.Opponent()
	s.ServerNumber = 1
}

// applyRallyScoring 每球得分制：回合胜方得分并获得发球权
func applyRallyScoring(s *MatchState, winner Side) {
	s.addPoint(winner)
	if winner != s.ServingTeam {
		s.ServingTeam = winner
		s.ServerNumber = 1
	}
}

// finishGame 记录本局结果，判断是否结束比赛，返回事件类型
func finishGame(s *MatchState, at time.Time) EventType {
	winner := GameWinner(s.ScoreA, s.ScoreB)

	game := GameScore{
		GameNumber: s.CurrentGame,
		ScoreA:     s.ScoreA,
		ScoreB:     s.ScoreB,
		Winner:     winner,
	}
	if s.CurrentGameStartedAt != nil {
		game.Duration = at.Sub(*s.CurrentGameStartedAt)
	}
	s.CompletedGames = append(s.CompletedGames, game)

	if winner == SideA {
		s.GamesWon.A++
	} else {
		s.GamesWon.B++
	}

	if IsMatchWon(s.GamesWon.A, s.GamesWon.B, s.Settings.BestOf) {
		s.Status = StatusCompleted
		s.Winner = winner
		completedAt := at
		s.CompletedAt = &completedAt
		return EventMatchEnd
	}

	s.Status = StatusBetweenGames
	s.CurrentGame++
	s.ScoreA = 0
	s.ScoreB = 0
	s.SidesSwitched = false
	// 输方下一局先发球，与开局一样只有一次发球机会
	s.ServingTeam = winner.Opponent()
	s.ServerNumber = s.Settings.openingServerNumber()
	return EventGameEnd
}

func snapshot(s MatchState) RallySnapshot {
	return RallySnapshot{
		GameNumber:      s.CurrentGame,
		ScoreA:          s.ScoreA,
		ScoreB:          s.ScoreB,
		ServingTeam:     s.ServingTeam,
		ServerNumber:    s.ServerNumber,
		SidesSwitched:   s.SidesSwitched,
		Status:          s.Status,
		Positions:       s.courtPositions(),
		PositionsLocked: s.PositionsLocked,
		CompletedGames:  len(s.CompletedGames),
		Winner:          s.Winner,
		GameStartedAt:   copyTime(s.CurrentGameStartedAt),
		CompletedAt:     copyTime(s.CompletedAt),
		EndReason:       s.EndReason,
	}
}

func eventID(s MatchState, winner Side, at time.Time) string {
	name := fmt.Sprintf("%s/%d/%s/%d", s.MatchID, len(s.RallyHistory), winner, at.UnixNano())
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

// Clock 为重放提供每个回合的时间
type Clock func(index int) time.Time

// Replay 从初始状态依次应用回合胜方序列，必要时自动开始比赛或下一局。
// 相同输入总是得到相同的状态与账本。
func Replay(initial MatchState, winners []Side, clock Clock) (MatchState, error) {
	state := initial
	for i, winner := range winners {
		at := clock(i)

		var err error
		switch state.Status {
		case StatusNotStarted, StatusBetweenGames:
			state, err = StartGame(state, at)
		case StatusPaused:
			state, err = ResumeGame(state, at)
		}
		if err != nil {
			return state, fmt.Errorf("第 %d 回合: %w", i+1, err)
		}
		if err := checkTransition(CmdRally, state.Status); err != nil {
			return state, fmt.Errorf("第 %d 回合: %w", i+1, err)
		}

		outcome, err := ProcessRally(state, winner, at)
		if err != nil {
			return state, fmt.Errorf("第 %d 回合: %w", i+1, err)
		}
		state = outcome.State
	}
	return state, nil
}
