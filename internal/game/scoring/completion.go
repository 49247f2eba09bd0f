package scoring

// IsGameWon 一方达到每局分数且领先分差满足要求时该局结束
func IsGameWon(scoreA, scoreB int, settings Settings) bool {
	if scoreA < settings.PointsPerGame && scoreB < settings.PointsPerGame {
		return false
	}
	return abs(scoreA-scoreB) >= settings.WinBy
}

// GameWinner 比分领先的一方，平分时返回 SideNone
func GameWinner(scoreA, scoreB int) Side {
	switch {
	case scoreA > scoreB:
		return SideA
	case scoreB > scoreA:
		return SideB
	default:
		return SideNone
	}
}

// IsMatchWon 任一方赢得 ceil(bestOf/2) 局即结束比赛
func IsMatchWon(gamesWonA, gamesWonB, bestOf int) bool {
	need := (bestOf + 1) / 2
	return gamesWonA >= need || gamesWonB >= need
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
