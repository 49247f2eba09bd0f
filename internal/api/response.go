package api

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/game"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/repository"
)

// MatchResponse 比赛操作响应
type MatchResponse struct {
	State           scoring.MatchState  `json:"state"`
	Event           *scoring.RallyEvent `json:"event,omitempty"`
	Seq             int                 `json:"seq"`
	CurrentServer   string              `json:"current_server,omitempty"`
	CurrentReceiver string              `json:"current_receiver,omitempty"`
	Duplicate       bool                `json:"duplicate,omitempty"`
}

// PageResponse 分页响应
type PageResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func newPageResponse(items interface{}, p *repository.Pagination) PageResponse {
	return PageResponse{
		Items:      items,
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages(),
	}
}

func newMatchResponse(state scoring.MatchState, event *scoring.RallyEvent) *MatchResponse {
	return &MatchResponse{
		State:           state,
		Event:           event,
		Seq:             state.Seq(),
		CurrentServer:   state.CurrentServer(),
		CurrentReceiver: state.CurrentReceiver(),
	}
}

func resultResponse(res *game.Result) *MatchResponse {
	resp := newMatchResponse(res.State, res.Event)
	resp.Duplicate = res.Duplicate
	return resp
}

// respondError 以统一格式返回错误
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromScoring(err)
	out := *appErr
	out.Stack = nil
	c.JSON(out.HTTPStatus(), apperrors.NewErrorResponse(&out, c.GetHeader("X-Request-ID")))
}

// badRequest 参数错误
func badRequest(c *gin.Context, err error) {
	respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidParam, err.Error()))
}
