package scoring

import (
	"time"

	"github.com/mitchellh/copystructure"
)

// Side 比赛双方
type Side string

const (
	SideNone Side = ""
	SideA    Side = "A"
	SideB    Side = "B"
)

// Valid 是否为 A 或 B
func (s Side) Valid() bool {
	return s == SideA || s == SideB
}

// Opponent 返回对手一方
func (s Side) Opponent() Side {
	switch s {
	case SideA:
		return SideB
	case SideB:
		return SideA
	default:
		return SideNone
	}
}

// Status 比赛状态
type Status string

const (
	StatusNotStarted   Status = "not_started"
	StatusInProgress   Status = "in_progress"
	StatusPaused       Status = "paused"
	StatusBetweenGames Status = "between_games"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

// IsTerminal 是否为终止状态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// EventType 事件类型
type EventType string

const (
	EventPoint       EventType = "point"
	EventSideOut     EventType = "sideout"
	EventGameEnd     EventType = "game_end"
	EventMatchEnd    EventType = "match_end"
	EventSwitchSides EventType = "switch_sides"
	EventTimeout     EventType = "timeout"
	EventUndo        EventType = "undo"
)

// CourtPosition 场地站位
type CourtPosition string

const (
	PositionNone  CourtPosition = ""
	PositionLeft  CourtPosition = "left"
	PositionRight CourtPosition = "right"
)

// Positions 双打队伍左右站位（球员ID）
type Positions struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// At 返回指定站位上的球员
func (p Positions) At(pos CourtPosition) string {
	switch pos {
	case PositionLeft:
		return p.Left
	case PositionRight:
		return p.Right
	default:
		return ""
	}
}

// Swapped 交换左右站位
func (p Positions) Swapped() Positions {
	return Positions{Left: p.Right, Right: p.Left}
}

// Team 参赛队伍
type Team struct {
	Name      string     `json:"name"`
	Color     string     `json:"color,omitempty"`
	PlayerIDs []string   `json:"player_ids"`
	Positions *Positions `json:"player_positions,omitempty"` // 仅双打
}

// Score 比分
type Score struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Of 返回指定一方的分数
func (s Score) Of(side Side) int {
	if side == SideB {
		return s.B
	}
	return s.A
}

// GamesWon 双方已赢局数
type GamesWon struct {
	A int `json:"a"`
	B int `json:"b"`
}

// GameScore 已完成的一局
type GameScore struct {
	GameNumber int           `json:"game_number"`
	ScoreA     int           `json:"score_a"`
	ScoreB     int           `json:"score_b"`
	Winner     Side          `json:"winner"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// CourtPositions 双方站位快照
type CourtPositions struct {
	A *Positions `json:"a,omitempty"`
	B *Positions `json:"b,omitempty"`
}

// RallySnapshot 回合前状态快照（撤销时据此恢复）
type RallySnapshot struct {
	GameNumber      int            `json:"game_number"`
	ScoreA          int            `json:"score_a"`
	ScoreB          int            `json:"score_b"`
	ServingTeam     Side           `json:"serving_team"`
	ServerNumber    int            `json:"server_number"`
	SidesSwitched   bool           `json:"sides_switched"`
	Status          Status         `json:"status"`
	Positions       CourtPositions `json:"positions"`
	PositionsLocked bool           `json:"positions_locked"`
	CompletedGames  int            `json:"completed_games"`
	Winner          Side           `json:"winner,omitempty"`
	GameStartedAt   *time.Time     `json:"game_started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	EndReason       string         `json:"end_reason,omitempty"`
}

// RallyEvent 回合事件。
// ScoreAfter/GameNumber 描述回合所在局的结果（结束局时为该局终局比分），
// ServingTeam/ServerNumber 为下一回合的发球方。
type RallyEvent struct {
	ID             string         `json:"id"`
	Timestamp      time.Time      `json:"timestamp"`
	Type           EventType      `json:"type"`
	RallyWinner    Side           `json:"rally_winner"`
	ScoreAfter     Score          `json:"score_after"`
	ServingTeam    Side           `json:"serving_team"`
	ServerNumber   int            `json:"server_number"`
	GameNumber     int            `json:"game_number"`
	SwitchedSides  bool           `json:"switched_sides,omitempty"`
	Forfeit        bool           `json:"forfeit,omitempty"`
	Before         RallySnapshot  `json:"before"`
	PositionsAfter CourtPositions `json:"positions_after"`
	Note           string         `json:"note,omitempty"`
}

// MatchState 比赛状态（值语义，所有操作返回新状态）
type MatchState struct {
	MatchID              string       `json:"match_id"`
	Settings             Settings     `json:"settings"`
	TeamA                Team         `json:"team_a"`
	TeamB                Team         `json:"team_b"`
	CurrentGame          int          `json:"current_game_number"`
	ScoreA               int          `json:"score_a"`
	ScoreB               int          `json:"score_b"`
	ServingTeam          Side         `json:"serving_team"`
	ServerNumber         int          `json:"server_number"`
	SidesSwitched        bool         `json:"sides_switched"`
	CompletedGames       []GameScore  `json:"completed_games"`
	GamesWon             GamesWon     `json:"games_won"`
	Status               Status       `json:"status"`
	Winner               Side         `json:"winner,omitempty"`
	RallyHistory         []RallyEvent `json:"rally_history"`
	PositionsLocked      bool         `json:"positions_locked"`
	StartedAt            *time.Time   `json:"started_at,omitempty"`
	CurrentGameStartedAt *time.Time   `json:"current_game_started_at,omitempty"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	EndReason            string       `json:"end_reason,omitempty"`
}

// Clone 深拷贝状态
func (s MatchState) Clone() MatchState {
	return copystructure.Must(copystructure.Copy(s)).(MatchState)
}

// Score 当前局比分
func (s MatchState) Score() Score {
	return Score{A: s.ScoreA, B: s.ScoreB}
}

// Team 返回指定一方的队伍
func (s MatchState) Team(side Side) Team {
	if side == SideB {
		return s.TeamB
	}
	return s.TeamA
}

// Seq 账本长度，作为乐观并发与幂等的序号
func (s MatchState) Seq() int {
	return len(s.RallyHistory)
}

// LastEvent 最近一条事件
func (s MatchState) LastEvent() (RallyEvent, bool) {
	if len(s.RallyHistory) == 0 {
		return RallyEvent{}, false
	}
	return s.RallyHistory[len(s.RallyHistory)-1], true
}

func (s *MatchState) team(side Side) *Team {
	if side == SideB {
		return &s.TeamB
	}
	return &s.TeamA
}

func (s *MatchState) addPoint(side Side) {
	if side == SideB {
		s.ScoreB++
		return
	}
	s.ScoreA++
}

func (s MatchState) courtPositions() CourtPositions {
	return CourtPositions{
		A: copyPositions(s.TeamA.Positions),
		B: copyPositions(s.TeamB.Positions),
	}
}

func (s *MatchState) restorePositions(p CourtPositions) {
	s.TeamA.Positions = copyPositions(p.A)
	s.TeamB.Positions = copyPositions(p.B)
}

func copyPositions(p *Positions) *Positions {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
