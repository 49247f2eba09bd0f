package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/rally-scorer/internal/config"
	ws "github.com/wfunc/rally-scorer/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			// 观众端不鉴权，允许任意来源
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Connect 建立观众连接，?match_id= 指定时自动订阅
// @Summary 比赛实时推送
// @Tags WebSocket
// @Param match_id query string false "比赛ID"
// @Router /ws [get]
func (h *WebSocketHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		return
	}

	matchID := c.Query("match_id")
	client := ws.NewClient(h.hub, conn, c.ClientIP(), matchID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("match_id", matchID))
}

// Stats 在线统计
func (h *WebSocketHandler) Stats(c *gin.Context) {
	stats := gin.H{"online": h.hub.GetOnlineCount()}
	if matchID := c.Query("match_id"); matchID != "" {
		stats["subscribers"] = h.hub.SubscriberCount(matchID)
	}
	c.JSON(http.StatusOK, stats)
}
