package models

import (
	"time"
)

// MatchEvent 比赛审计日志
type MatchEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EntryID      string    `gorm:"uniqueIndex;size:26;not null" json:"entry_id"` // ULID
	MatchID      string    `gorm:"index:idx_match_event_seq;size:64;not null" json:"match_id"`
	Seq          int       `gorm:"index:idx_match_event_seq" json:"seq"` // 操作后的账本长度
	Type         string    `gorm:"size:20;not null" json:"type"`
	RallyEventID string    `gorm:"size:36" json:"rally_event_id,omitempty"`
	RallyWinner  string    `gorm:"size:1" json:"rally_winner,omitempty"`
	GameNumber   int       `json:"game_number"`
	ScoreA       int       `json:"score_a"`
	ScoreB       int       `json:"score_b"`
	ServingTeam  string    `gorm:"size:1" json:"serving_team"`
	ServerNumber int       `json:"server_number"`
	Status       string    `gorm:"size:20" json:"status"`
	ActorID      string    `gorm:"size:64" json:"actor_id,omitempty"`
	Note         string    `gorm:"size:255" json:"note,omitempty"`
	Payload      JSONMap   `gorm:"type:json" json:"payload,omitempty"`
	OccurredAt   time.Time `gorm:"index" json:"occurred_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName 指定表名
func (MatchEvent) TableName() string {
	return "match_events"
}
