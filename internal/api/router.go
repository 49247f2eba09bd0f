package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/rally-scorer/internal/config"
	"github.com/wfunc/rally-scorer/internal/game"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/middleware"
	"github.com/wfunc/rally-scorer/internal/repository"
	"github.com/wfunc/rally-scorer/internal/utils"
	ws "github.com/wfunc/rally-scorer/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies 路由依赖
type Dependencies struct {
	DB        *gorm.DB
	Repos     *repository.Manager
	Manager   *game.MatchManager
	Journal   *game.Journal
	Hub       *ws.Hub
	JWT       *utils.JWTManager
	WebSocket config.WebSocketConfig
	Defaults  scoring.Settings
	Logger    *zap.Logger
}

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	matchHandler   *MatchHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	wsPath         string
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps *Dependencies) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	wsPath := deps.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}

	router := &Router{
		engine:         engine,
		db:             deps.DB,
		matchHandler:   NewMatchHandler(deps.Manager, deps.Journal, deps.Repos, deps.JWT, deps.Defaults, log),
		authMiddleware: middleware.NewAuthMiddleware(deps.JWT),
		wsPath:         wsPath,
		log:            log,
	}
	if deps.Hub != nil {
		router.wsHandler = NewWebSocketHandler(deps.Hub, deps.WebSocket, log)
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		// 公开查询
		v1.GET("/matches", r.matchHandler.List)
		v1.GET("/matches/:id", r.matchHandler.Get)
		v1.GET("/matches/:id/events", r.matchHandler.Events)
		v1.GET("/matches/:id/result", r.matchHandler.Result)
		v1.GET("/teams/:name/standing", r.matchHandler.Standing)

		// 组织者
		organizer := v1.Group("")
		organizer.Use(r.authMiddleware.RequireOrganizer())
		{
			organizer.POST("/matches", r.matchHandler.Create)
			organizer.POST("/matches/:id/tokens", r.matchHandler.IssueToken)
		}

		// 计分台（组织者或本场计分员）
		scorer := v1.Group("/matches/:id")
		scorer.Use(r.authMiddleware.RequireScorer("id"))
		{
			scorer.POST("/rally", r.matchHandler.Rally)
			scorer.POST("/undo", r.matchHandler.Undo)
			scorer.POST("/start", r.matchHandler.Start)
			scorer.POST("/pause", r.matchHandler.Pause)
			scorer.POST("/resume", r.matchHandler.Resume)
			scorer.POST("/next-game", r.matchHandler.NextGame)
			scorer.POST("/end-early", r.matchHandler.EndEarly)
			scorer.POST("/cancel", r.matchHandler.Cancel)
			scorer.POST("/timeout", r.matchHandler.Timeout)
			scorer.PUT("/positions/:side", r.matchHandler.AssignPositions)
			scorer.POST("/positions/:side/swap", r.matchHandler.SwapPartners)
		}
	}

	if r.wsHandler != nil {
		r.engine.GET(r.wsPath, r.wsHandler.Connect)
		r.engine.GET(r.wsPath+"/stats", r.wsHandler.Stats)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"matches": r.matchHandler.manager.ActiveMatches(),
	})
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
