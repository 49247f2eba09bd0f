package scoring

import (
	"fmt"

	"github.com/elliotchance/pie/v2"
)

// CheckInvariants 校验状态的内部一致性，用于恢复与审计
func CheckInvariants(s MatchState) error {
	if err := s.Settings.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	if s.ScoreA < 0 || s.ScoreB < 0 {
		return fmt.Errorf("比分为负: %d-%d", s.ScoreA, s.ScoreB)
	}
	if !s.ServingTeam.Valid() {
		return fmt.Errorf("发球方无效: %q", s.ServingTeam)
	}
	if s.ServerNumber != 1 && s.ServerNumber != 2 {
		return fmt.Errorf("发球员编号无效: %d", s.ServerNumber)
	}
	if s.CurrentGame < 1 {
		return fmt.Errorf("局号无效: %d", s.CurrentGame)
	}
	if s.GamesWon.A+s.GamesWon.B != len(s.CompletedGames) {
		return fmt.Errorf("已赢局数 %d+%d 与已完成局数 %d 不一致",
			s.GamesWon.A, s.GamesWon.B, len(s.CompletedGames))
	}
	if s.GamesWon != tallyGames(s.CompletedGames) {
		return fmt.Errorf("已赢局数与各局胜方不一致")
	}
	if s.Status == StatusCompleted && !s.Winner.Valid() {
		return fmt.Errorf("比赛已完成但没有胜方")
	}

	// 弃权事件只能出现一次且位于账本末尾
	rallies := pie.Filter(s.RallyHistory, func(e RallyEvent) bool { return !e.Forfeit })
	if forfeit := pie.FindFirstUsing(s.RallyHistory, func(e RallyEvent) bool { return e.Forfeit }); forfeit >= 0 &&
		forfeit != len(s.RallyHistory)-1 {
		return fmt.Errorf("弃权事件之后仍有回合")
	}
	if s.PositionsLocked != (len(rallies) > 0) {
		return fmt.Errorf("站位锁定标记 %v 与回合数 %d 不符", s.PositionsLocked, len(rallies))
	}

	return checkLedgerChain(s.RallyHistory)
}

// checkLedgerChain 同一局内每条事件的回合前比分等于上一条事件的回合后比分
func checkLedgerChain(history []RallyEvent) error {
	for i := 1; i < len(history); i++ {
		prev, cur := history[i-1], history[i]
		if endsGame(prev.Type) || prev.GameNumber != cur.Before.GameNumber {
			continue
		}
		if cur.Before.ScoreA != prev.ScoreAfter.A || cur.Before.ScoreB != prev.ScoreAfter.B {
			return fmt.Errorf("第 %d 条事件回合前比分 %d-%d 与上一条回合后比分 %d-%d 不连续",
				i+1, cur.Before.ScoreA, cur.Before.ScoreB, prev.ScoreAfter.A, prev.ScoreAfter.B)
		}
		if cur.Before.ServingTeam != prev.ServingTeam || cur.Before.ServerNumber != prev.ServerNumber {
			return fmt.Errorf("第 %d 条事件回合前发球方与上一条不连续", i+1)
		}
	}
	return nil
}
