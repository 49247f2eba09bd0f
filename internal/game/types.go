package game

import (
	"context"
	"time"

	"github.com/wfunc/rally-scorer/internal/game/scoring"
)

// Action 计分台操作类型
type Action string

const (
	ActionCreate    Action = "create"
	ActionRally     Action = "rally"
	ActionUndo      Action = "undo"
	ActionStart     Action = "start"
	ActionPause     Action = "pause"
	ActionResume    Action = "resume"
	ActionNextGame  Action = "next_game"
	ActionEndEarly  Action = "end_early"
	ActionCancel    Action = "cancel"
	ActionTimeout   Action = "timeout"
	ActionPositions Action = "positions"
	ActionSwap      Action = "swap_partners"
	ActionRecover   Action = "recover"
)

// 审计日志中不属于回合事件的类型
const (
	EntrySwitchSides = "switch_sides"
)

// Command 操作的公共参数
type Command struct {
	ActorID     string // 操作人
	ExpectedSeq *int   // 客户端看到的账本长度，nil 表示不校验
	Note        string // 原因或备注
}

// CreateMatchRequest 创建比赛请求
type CreateMatchRequest struct {
	MatchID     string
	Title       string
	Venue       string
	Court       string
	Settings    scoring.Settings
	TeamA       scoring.Team
	TeamB       scoring.Team
	FirstServer scoring.Side
	ScorerID    string
	CreatedBy   string
}

// Result 一次操作的结果
type Result struct {
	State     scoring.MatchState
	Event     *scoring.RallyEvent
	Duplicate bool // 重复提交的回合，状态未变化
}

// MatchUpdate 推送给观众的比赛更新
type MatchUpdate struct {
	MatchID         string              `json:"match_id"`
	Action          Action              `json:"action"`
	Seq             int                 `json:"seq"`
	State           scoring.MatchState  `json:"state"`
	Event           *scoring.RallyEvent `json:"event,omitempty"`
	CurrentServer   string              `json:"current_server,omitempty"`
	CurrentReceiver string              `json:"current_receiver,omitempty"`
	Note            string              `json:"note,omitempty"`
	At              time.Time           `json:"at"`
}

// NewMatchUpdate 根据状态构造推送消息
func NewMatchUpdate(action Action, state scoring.MatchState, event *scoring.RallyEvent, note string, at time.Time) *MatchUpdate {
	return &MatchUpdate{
		MatchID:         state.MatchID,
		Action:          action,
		Seq:             state.Seq(),
		State:           state,
		Event:           event,
		CurrentServer:   state.CurrentServer(),
		CurrentReceiver: state.CurrentReceiver(),
		Note:            note,
		At:              at,
	}
}

// Broadcaster 比赛更新推送
type Broadcaster interface {
	Publish(ctx context.Context, matchID string, update *MatchUpdate) error
}

// ResultRecorder 比赛元数据与结果的下游存储
type ResultRecorder interface {
	RecordMatch(ctx context.Context, req *CreateMatchRequest, state scoring.MatchState) error
	RecordStatus(ctx context.Context, state scoring.MatchState) error
	RecordResult(ctx context.Context, state scoring.MatchState) error
	RevokeResult(ctx context.Context, state scoring.MatchState) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(context.Context, string, *MatchUpdate) error { return nil }
