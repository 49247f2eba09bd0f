package scoring

import "errors"

// PlayType 比赛类型
type PlayType string

const (
	PlaySingles PlayType = "singles" // 单打
	PlayDoubles PlayType = "doubles" // 双打
)

// 配置校验错误
var (
	ErrInvalidPlayType      = errors.New("无效的比赛类型")
	ErrInvalidPointsPerGame = errors.New("每局分数必须为 11、15 或 21")
	ErrInvalidWinBy         = errors.New("领先分差必须为 1 或 2")
	ErrInvalidBestOf        = errors.New("局数必须为 1、3 或 5")
	ErrInvalidSwitchSides   = errors.New("换边分数必须大于 0")
)

// Settings 比赛计分配置（整场比赛内不可变）
type Settings struct {
	PlayType       PlayType `json:"play_type"`
	PointsPerGame  int      `json:"points_per_game"`
	WinBy          int      `json:"win_by"`
	BestOf         int      `json:"best_of"`
	SideOutScoring bool     `json:"side_out_scoring"`
	SwitchSidesAt  *int     `json:"switch_sides_at,omitempty"` // 为空时取 PointsPerGame/2
}

// DefaultSettings 默认配置：双打、11分制、净胜2分、三局两胜、发球得分制
func DefaultSettings() Settings {
	return Settings{
		PlayType:       PlayDoubles,
		PointsPerGame:  11,
		WinBy:          2,
		BestOf:         3,
		SideOutScoring: true,
	}
}

// Validate 校验配置
func (s Settings) Validate() error {
	switch s.PlayType {
	case PlaySingles, PlayDoubles:
	default:
		return ErrInvalidPlayType
	}

	switch s.PointsPerGame {
	case 11, 15, 21:
	default:
		return ErrInvalidPointsPerGame
	}

	if s.WinBy != 1 && s.WinBy != 2 {
		return ErrInvalidWinBy
	}

	switch s.BestOf {
	case 1, 3, 5:
	default:
		return ErrInvalidBestOf
	}

	if s.SwitchSidesAt != nil && *s.SwitchSidesAt <= 0 {
		return ErrInvalidSwitchSides
	}
	return nil
}

// SwitchThreshold 换边分数，未配置时为 floor(PointsPerGame/2)
func (s Settings) SwitchThreshold() int {
	if s.SwitchSidesAt != nil {
		return *s.SwitchSidesAt
	}
	return s.PointsPerGame / 2
}

// GamesToWin 赢得比赛所需局数
func (s Settings) GamesToWin() int {
	return (s.BestOf + 1) / 2
}

// IsDoubles 是否双打
func (s Settings) IsDoubles() bool {
	return s.PlayType == PlayDoubles
}

// tracksServerNumber 发球员编号只在双打发球得分制下有意义
func (s Settings) tracksServerNumber() bool {
	return s.IsDoubles() && s.SideOutScoring
}

// openingServerNumber 每局首发球员编号：双打发球得分制下只有一次发球机会
func (s Settings) openingServerNumber() int {
	if s.tracksServerNumber() {
		return 2
	}
	return 1
}
