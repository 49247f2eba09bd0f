package models

import (
	"time"
)

// MatchState 比赛实时状态快照（用于持久化计分状态）
type MatchState struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MatchID   string    `gorm:"uniqueIndex;size:64;not null" json:"match_id"`
	Status    string    `gorm:"size:20;not null" json:"status"`
	Seq       int       `gorm:"not null;default:0" json:"seq"` // 账本长度
	StateData string    `gorm:"type:text" json:"state_data"`  // JSON格式的状态数据
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (MatchState) TableName() string {
	return "match_states"
}
