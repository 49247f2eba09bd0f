package models

import (
	"time"
)

// 比赛状态（与计分引擎一致）
const (
	MatchStatusNotStarted   = "not_started"
	MatchStatusInProgress   = "in_progress"
	MatchStatusPaused       = "paused"
	MatchStatusBetweenGames = "between_games"
	MatchStatusCompleted    = "completed"
	MatchStatusCancelled    = "cancelled"
)

// Match 比赛表
type Match struct {
	BaseModel
	MatchID     string     `gorm:"uniqueIndex;size:64;not null" json:"match_id"`
	Title       string     `gorm:"size:100" json:"title"`
	Venue       string     `gorm:"size:100" json:"venue"`
	Court       string     `gorm:"size:50" json:"court"`
	PlayType    string     `gorm:"size:20;not null" json:"play_type"` // singles, doubles
	TeamAName   string     `gorm:"size:100;not null" json:"team_a_name"`
	TeamBName   string     `gorm:"size:100;not null" json:"team_b_name"`
	Teams       JSONMap    `gorm:"type:json" json:"teams"`
	Settings    JSONMap    `gorm:"type:json" json:"settings"`
	Status      string     `gorm:"size:20;index;default:'not_started'" json:"status"`
	Winner      string     `gorm:"size:1" json:"winner,omitempty"`
	GamesWonA   int        `gorm:"default:0" json:"games_won_a"`
	GamesWonB   int        `gorm:"default:0" json:"games_won_b"`
	ScorerID    string     `gorm:"size:64;index" json:"scorer_id,omitempty"`
	CreatedBy   string     `gorm:"size:64" json:"created_by,omitempty"`
	EndReason   string     `gorm:"size:255" json:"end_reason,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (Match) TableName() string {
	return "matches"
}

// IsFinished 是否已结束（完成或取消）
func (m *Match) IsFinished() bool {
	return m.Status == MatchStatusCompleted || m.Status == MatchStatusCancelled
}
