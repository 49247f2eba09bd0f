package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/game"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/logger"
	"github.com/wfunc/rally-scorer/internal/middleware"
	"github.com/wfunc/rally-scorer/internal/repository"
	"github.com/wfunc/rally-scorer/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MatchHandler 比赛计分处理器
type MatchHandler struct {
	manager  *game.MatchManager
	journal  *game.Journal
	repos    *repository.Manager
	jwt      *utils.JWTManager
	defaults scoring.Settings
	logger   *zap.Logger
}

// NewMatchHandler 创建比赛处理器
func NewMatchHandler(manager *game.MatchManager, journal *game.Journal, repos *repository.Manager, jwt *utils.JWTManager, defaults scoring.Settings, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		manager:  manager,
		journal:  journal,
		repos:    repos,
		jwt:      jwt,
		defaults: defaults,
		logger:   logger,
	}
}

// TeamRequest 队伍参数
type TeamRequest struct {
	Name      string             `json:"name" binding:"required"`
	Color     string             `json:"color"`
	PlayerIDs []string           `json:"player_ids" binding:"required,min=1,max=2"`
	Positions *scoring.Positions `json:"player_positions"`
}

func (t TeamRequest) toTeam() scoring.Team {
	return scoring.Team{Name: t.Name, Color: t.Color, PlayerIDs: t.PlayerIDs, Positions: t.Positions}
}

// CreateMatchRequest 创建比赛请求
type CreateMatchRequest struct {
	MatchID     string            `json:"match_id"`
	Title       string            `json:"title"`
	Venue       string            `json:"venue"`
	Court       string            `json:"court"`
	Settings    *scoring.Settings `json:"settings"`
	TeamA       TeamRequest       `json:"team_a" binding:"required"`
	TeamB       TeamRequest       `json:"team_b" binding:"required"`
	FirstServer string            `json:"first_server"`
	ScorerID    string            `json:"scorer_id"`
}

// CommandRequest 操作公共参数
type CommandRequest struct {
	ExpectedSeq *int   `json:"expected_seq"`
	Note        string `json:"note"`
}

// RallyRequest 回合请求
type RallyRequest struct {
	CommandRequest
	Winner string `json:"winner" binding:"required"`
}

// SideRequest 需要指定一方的请求（提前结束、暂停请求）
type SideRequest struct {
	CommandRequest
	Team string `json:"team" binding:"required"`
}

// PositionsRequest 站位请求
type PositionsRequest struct {
	CommandRequest
	Left  string `json:"left" binding:"required"`
	Right string `json:"right" binding:"required"`
}

// TokenRequest 签发计分令牌请求
type TokenRequest struct {
	Subject string `json:"subject" binding:"required"`
}

// TokenResponse 令牌响应
type TokenResponse struct {
	Token     string `json:"token"`
	MatchID   string `json:"match_id"`
	ExpiresIn int64  `json:"expires_in"`
}

// Create 创建比赛
// @Summary 创建比赛
// @Tags Match
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body CreateMatchRequest true "创建比赛请求"
// @Success 201 {object} MatchResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/matches [post]
func (h *MatchHandler) Create(c *gin.Context) {
	var req CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	settings := h.defaults
	if req.Settings != nil {
		settings = *req.Settings
	}

	res, err := h.manager.CreateMatch(c.Request.Context(), &game.CreateMatchRequest{
		MatchID:     req.MatchID,
		Title:       req.Title,
		Venue:       req.Venue,
		Court:       req.Court,
		Settings:    settings,
		TeamA:       req.TeamA.toTeam(),
		TeamB:       req.TeamB.toTeam(),
		FirstServer: scoring.Side(strings.ToUpper(req.FirstServer)),
		ScorerID:    req.ScorerID,
		CreatedBy:   middleware.GetActorID(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	logger.LogMatchEvent(string(game.ActionCreate), res.State.MatchID, res.State.Seq(),
		zap.String("actor", middleware.GetActorID(c)))
	c.JSON(http.StatusCreated, resultResponse(res))
}

// Get 获取比赛当前状态
// @Summary 比赛状态
// @Tags Match
// @Produce json
// @Param id path string true "比赛ID"
// @Success 200 {object} MatchResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id} [get]
func (h *MatchHandler) Get(c *gin.Context) {
	state, err := h.manager.GetMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newMatchResponse(state, nil))
}

// List 按状态分页查询比赛
func (h *MatchHandler) List(c *gin.Context) {
	p := pagination(c)
	matches, err := h.repos.Match().List(c.Request.Context(), c.Query("status"), p)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	c.JSON(http.StatusOK, newPageResponse(matches, p))
}

// Events 查询比赛审计日志
func (h *MatchHandler) Events(c *gin.Context) {
	p := pagination(c)
	var types []string
	if raw := c.Query("type"); raw != "" {
		types = strings.Split(raw, ",")
	}

	entries, err := h.journal.History(c.Request.Context(), c.Param("id"), p, types...)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	c.JSON(http.StatusOK, newPageResponse(entries, p))
}

// Result 查询比赛结果
func (h *MatchHandler) Result(c *gin.Context) {
	result, err := h.repos.MatchResult().FindByMatchID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, apperrors.New(apperrors.ErrNotFound, "比赛尚未结束"))
			return
		}
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Standing 队伍战绩
func (h *MatchHandler) Standing(c *gin.Context) {
	standing, err := h.repos.MatchResult().GetTeamStanding(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrDatabaseQuery))
		return
	}
	c.JSON(http.StatusOK, standing)
}

// IssueToken 为比赛签发计分员令牌
func (h *MatchHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	matchID := c.Param("id")
	if _, err := h.manager.GetMatch(c.Request.Context(), matchID); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.jwt.GenerateToken(req.Subject, utils.RoleScorer, matchID)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrUnknown, "签发令牌失败"))
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{
		Token:     token,
		MatchID:   matchID,
		ExpiresIn: int64(h.jwt.GetTokenExpiry().Seconds()),
	})
}

// Rally 记录回合
// @Summary 记录回合胜方
// @Tags Match
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "比赛ID"
// @Param request body RallyRequest true "回合请求"
// @Success 200 {object} MatchResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/matches/{id}/rally [post]
func (h *MatchHandler) Rally(c *gin.Context) {
	var req RallyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.run(c, game.ActionRally, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Rally(c.Request.Context(), matchID, parseSide(req.Winner), cmd)
	}, req.CommandRequest)
}

// Undo 撤销最后一个回合
func (h *MatchHandler) Undo(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionUndo, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Undo(c.Request.Context(), matchID, cmd)
	}, req)
}

// Start 开始比赛
func (h *MatchHandler) Start(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionStart, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Start(c.Request.Context(), matchID, cmd)
	}, req)
}

// Pause 暂停比赛
func (h *MatchHandler) Pause(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionPause, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Pause(c.Request.Context(), matchID, cmd)
	}, req)
}

// Resume 恢复比赛
func (h *MatchHandler) Resume(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionResume, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Resume(c.Request.Context(), matchID, cmd)
	}, req)
}

// NextGame 开始下一局
func (h *MatchHandler) NextGame(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionNextGame, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.NextGame(c.Request.Context(), matchID, cmd)
	}, req)
}

// EndEarly 提前结束比赛
func (h *MatchHandler) EndEarly(c *gin.Context) {
	var req SideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, game.ActionEndEarly, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.EndEarly(c.Request.Context(), matchID, parseSide(req.Team), cmd)
	}, req.CommandRequest)
}

// Cancel 取消比赛
func (h *MatchHandler) Cancel(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionCancel, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Cancel(c.Request.Context(), matchID, cmd)
	}, req)
}

// Timeout 记录暂停请求
func (h *MatchHandler) Timeout(c *gin.Context) {
	var req SideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.run(c, game.ActionTimeout, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.Timeout(c.Request.Context(), matchID, parseSide(req.Team), cmd)
	}, req.CommandRequest)
}

// AssignPositions 设置站位
func (h *MatchHandler) AssignPositions(c *gin.Context) {
	var req PositionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	positions := scoring.Positions{Left: req.Left, Right: req.Right}
	h.run(c, game.ActionPositions, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.AssignPositions(c.Request.Context(), matchID, parseSide(c.Param("side")), positions, cmd)
	}, req.CommandRequest)
}

// SwapPartners 交换队友站位
func (h *MatchHandler) SwapPartners(c *gin.Context) {
	req, ok := bindCommand(c)
	if !ok {
		return
	}
	h.run(c, game.ActionSwap, func(matchID string, cmd game.Command) (*game.Result, error) {
		return h.manager.SwapPartners(c.Request.Context(), matchID, parseSide(c.Param("side")), cmd)
	}, req)
}

type mutation func(matchID string, cmd game.Command) (*game.Result, error)

// run 执行写操作并返回最新状态
func (h *MatchHandler) run(c *gin.Context, action game.Action, op mutation, req CommandRequest) {
	matchID := c.Param("id")
	actor := middleware.GetActorID(c)

	res, err := op(matchID, game.Command{
		ActorID:     actor,
		ExpectedSeq: req.ExpectedSeq,
		Note:        req.Note,
	})
	if err != nil {
		h.logger.Warn("比赛操作失败",
			zap.String("match_id", matchID),
			zap.String("action", string(action)),
			zap.String("actor", actor),
			zap.Error(err))
		respondError(c, err)
		return
	}

	logger.LogMatchEvent(string(action), matchID, res.State.Seq(),
		zap.String("actor", actor),
		zap.String("status", string(res.State.Status)),
		zap.Bool("duplicate", res.Duplicate))
	c.JSON(http.StatusOK, resultResponse(res))
}

// bindCommand 请求体可以为空
func bindCommand(c *gin.Context) (CommandRequest, bool) {
	var req CommandRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	return req, true
}

func parseSide(raw string) scoring.Side {
	return scoring.Side(strings.ToUpper(raw))
}

func pagination(c *gin.Context) *repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return repository.NewPagination(page, size)
}
