package scoring

// UndoLastRally 撤销最近一条账本事件，按事件记录的回合前快照恢复状态。
// 不做比分加减：换发和跨局都无法用算术逆推。
func UndoLastRally(state MatchState) (MatchState, error) {
	if state.Status == StatusCancelled {
		return state, &InvalidTransitionError{
			Op:      "undo",
			From:    state.Status,
			Allowed: []Status{StatusInProgress, StatusPaused, StatusBetweenGames, StatusCompleted},
		}
	}

	last, ok := state.LastEvent()
	if !ok {
		return state, &NoActionError{Op: "undo"}
	}

	next := state.Clone()
	before := last.Before

	next.RallyHistory = next.RallyHistory[:len(next.RallyHistory)-1]
	if len(next.RallyHistory) == 0 {
		next.RallyHistory = nil
	}

	next.CurrentGame = before.GameNumber
	next.ScoreA = before.ScoreA
	next.ScoreB = before.ScoreB
	next.ServingTeam = before.ServingTeam
	next.ServerNumber = before.ServerNumber
	next.SidesSwitched = before.SidesSwitched
	next.restorePositions(before.Positions)
	next.PositionsLocked = before.PositionsLocked
	next.CurrentGameStartedAt = copyTime(before.GameStartedAt)

	// 撤销结束局的事件时移除对应的已完成局
	if before.CompletedGames < len(next.CompletedGames) {
		next.CompletedGames = next.CompletedGames[:before.CompletedGames]
	}
	if len(next.CompletedGames) == 0 {
		next.CompletedGames = nil
	}
	next.GamesWon = tallyGames(next.CompletedGames)

	next.Winner = before.Winner
	next.CompletedAt = copyTime(before.CompletedAt)
	next.EndReason = before.EndReason

	// 普通回合被撤销时保留暂停状态
	if !(next.Status == StatusPaused && !endsGame(last.Type)) {
		next.Status = before.Status
	}

	return next, nil
}

// CanUndo 是否存在可撤销的事件
func CanUndo(state MatchState) bool {
	return state.Status != StatusCancelled && len(state.RallyHistory) > 0
}

func tallyGames(games []GameScore) GamesWon {
	var won GamesWon
	for _, g := range games {
		switch g.Winner {
		case SideA:
			won.A++
		case SideB:
			won.B++
		}
	}
	return won
}

func endsGame(t EventType) bool {
	return t == EventGameEnd || t == EventMatchEnd
}
