package scoring

import "errors"

// 站位错误
var (
	ErrPositionsLocked = errors.New("首回合后站位已锁定")
	ErrNotDoubles      = errors.New("只有双打才有左右站位")
	ErrUnknownPlayer   = errors.New("站位中的球员不属于该队")
)

// ServerPosition 发球方站位：本方得分为偶数时在右区，奇数时在左区
func ServerPosition(score int) CourtPosition {
	if score%2 == 0 {
		return PositionRight
	}
	return PositionLeft
}

// ServingPosition 当前发球站位，单打没有左右站位概念
func (s MatchState) ServingPosition() CourtPosition {
	if !s.Settings.IsDoubles() {
		return PositionNone
	}
	return ServerPosition(s.Score().Of(s.ServingTeam))
}

// ReceivingPosition 接发球站位，与发球方对角相对，标签相同
func (s MatchState) ReceivingPosition() CourtPosition {
	return s.ServingPosition()
}

// CurrentServer 当前发球球员
func (s MatchState) CurrentServer() string {
	return s.playerAt(s.ServingTeam, s.ServingPosition())
}

// CurrentReceiver 当前接发球球员
func (s MatchState) CurrentReceiver() string {
	return s.playerAt(s.ServingTeam.Opponent(), s.ReceivingPosition())
}

func (s MatchState) playerAt(side Side, pos CourtPosition) string {
	team := s.Team(side)
	if !s.Settings.IsDoubles() {
		if len(team.PlayerIDs) == 0 {
			return ""
		}
		return team.PlayerIDs[0]
	}
	if team.Positions == nil {
		return ""
	}
	return team.Positions.At(pos)
}

// initialPositions 1号发球员（PlayerIDs[0]）从右区开始
func initialPositions(team Team) *Positions {
	if len(team.PlayerIDs) < 2 {
		return nil
	}
	return &Positions{Right: team.PlayerIDs[0], Left: team.PlayerIDs[1]}
}

// AssignPositions 首回合前手动设置站位
func AssignPositions(state MatchState, side Side, positions Positions) (MatchState, error) {
	if err := checkPositionEdit(state, side); err != nil {
		return state, err
	}

	team := state.Team(side)
	if !samePlayers(team.PlayerIDs, positions) {
		return state, ErrUnknownPlayer
	}

	next := state.Clone()
	next.team(side).Positions = &positions
	return next, nil
}

// SwapPartners 首回合前交换队友站位
func SwapPartners(state MatchState, side Side) (MatchState, error) {
	if err := checkPositionEdit(state, side); err != nil {
		return state, err
	}

	next := state.Clone()
	team := next.team(side)
	if team.Positions == nil {
		team.Positions = initialPositions(*team)
	}
	swapped := team.Positions.Swapped()
	team.Positions = &swapped
	return next, nil
}

func checkPositionEdit(state MatchState, side Side) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if !state.Settings.IsDoubles() {
		return ErrNotDoubles
	}
	if state.PositionsLocked {
		return ErrPositionsLocked
	}
	return checkTransition(CmdPositions, state.Status)
}

func samePlayers(ids []string, p Positions) bool {
	if len(ids) != 2 || p.Left == p.Right {
		return false
	}
	return (ids[0] == p.Left && ids[1] == p.Right) || (ids[0] == p.Right && ids[1] == p.Left)
}

// swapServingPartners 发球方得分后两名队友交换左右
func (s *MatchState) swapServingPartners() {
	team := s.team(s.ServingTeam)
	if team.Positions == nil {
		return
	}
	swapped := team.Positions.Swapped()
	team.Positions = &swapped
}
