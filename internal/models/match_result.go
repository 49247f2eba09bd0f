package models

import (
	"time"
)

// MatchResult 比赛最终结果（供积分榜汇总）
type MatchResult struct {
	BaseModel
	MatchID     string    `gorm:"uniqueIndex;size:64;not null" json:"match_id"`
	TeamAName   string    `gorm:"size:100;index" json:"team_a_name"`
	TeamBName   string    `gorm:"size:100;index" json:"team_b_name"`
	Winner      string    `gorm:"size:1" json:"winner,omitempty"`
	WinnerName  string    `gorm:"size:100" json:"winner_name,omitempty"`
	GamesWonA   int       `json:"games_won_a"`
	GamesWonB   int       `json:"games_won_b"`
	Games       JSONMap   `gorm:"type:json" json:"games"`
	Forfeit     bool      `gorm:"default:false" json:"forfeit"`
	Cancelled   bool      `gorm:"default:false" json:"cancelled"`
	EndReason   string    `gorm:"size:255" json:"end_reason,omitempty"`
	Rallies     int       `json:"rallies"`
	CompletedAt time.Time `json:"completed_at"`
}

// TableName 指定表名
func (MatchResult) TableName() string {
	return "match_results"
}
