package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/rally-scorer/internal/game"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"go.uber.org/zap"
)

// StateSource 订阅时获取比赛当前状态
type StateSource interface {
	GetMatch(ctx context.Context, matchID string) (scoring.MatchState, error)
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 比赛ID到订阅客户端的映射
	subscribers map[string]map[string]*Client
	subsMu      sync.RWMutex

	// 消息广播通道
	broadcast chan *Message

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	states StateSource
	config Config
	logger *zap.Logger
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	MatchID   string          `json:"match_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 订阅消息
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"

	// 比赛消息
	MessageTypeMatchState  = "match_state"
	MessageTypeMatchUpdate = "match_update"
)

// NewHub 创建Hub
func NewHub(logger *zap.Logger, states StateSource, config Config) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		subscribers: make(map[string]map[string]*Client),
		broadcast:   make(chan *Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		states:      states,
		config:      config.withDefaults(),
		logger:      logger,
	}
}

// Run 运行Hub，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	// 启动心跳检测
	go h.runHeartbeat(ctx)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("remote", client.Remote))

	// 发送连接成功消息
	h.SendToClient(client.ID, newMessage(MessageTypeConnected, "", map[string]string{"client_id": client.ID}))

	// 连接时携带了比赛ID
	if client.initialMatch != "" {
		h.subscribe(client, client.initialMatch)
	}
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	// 从所有订阅中移除
	h.subsMu.Lock()
	for matchID, subs := range h.subscribers {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.subscribers, matchID)
		}
	}
	h.subsMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID))
}

// closeAll 关闭所有客户端
func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.clientsMu.Unlock()

	h.subsMu.Lock()
	h.subscribers = make(map[string]map[string]*Client)
	h.subsMu.Unlock()
}

// broadcastMessage 带比赛ID的消息只发给订阅者，否则发给所有客户端
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	var targets []*Client
	if message.MatchID != "" {
		h.subsMu.RLock()
		for _, client := range h.subscribers[message.MatchID] {
			targets = append(targets, client)
		}
		h.subsMu.RUnlock()
	} else {
		h.clientsMu.RLock()
		for _, client := range h.clients {
			targets = append(targets, client)
		}
		h.clientsMu.RUnlock()
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range targets {
		if _, ok := h.clients[client.ID]; !ok {
			continue
		}
		select {
		case client.Send <- data:
		default:
			// 发送缓冲区满，丢弃该消息
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("match_id", message.MatchID))
		}
	}
}

// Publish 推送比赛更新给订阅者，不阻塞调用方
func (h *Hub) Publish(ctx context.Context, matchID string, update *game.MatchUpdate) error {
	msg := newMessage(MessageTypeMatchUpdate, matchID, update)
	if msg == nil {
		return ErrInvalidMessage
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBroadcastFull
	}
}

// Subscribe 订阅比赛（公开方法）
func (h *Hub) Subscribe(client *Client, matchID string) {
	h.subscribe(client, matchID)
}

// subscribe 加入订阅并发送当前状态。
// 订阅与快照在 subsMu 内完成，之后广播的更新一定排在快照之后，客户端丢弃 seq 不大于快照的更新即可。
func (h *Hub) subscribe(client *Client, matchID string) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	subs, ok := h.subscribers[matchID]
	if !ok {
		subs = make(map[string]*Client)
		h.subscribers[matchID] = subs
	}
	subs[client.ID] = client

	if h.states != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.config.WriteTimeout)
		state, err := h.states.GetMatch(ctx, matchID)
		cancel()
		if err != nil {
			delete(subs, client.ID)
			if len(subs) == 0 {
				delete(h.subscribers, matchID)
			}
			client.sendError(err.Error())
			return
		}
		h.SendToClient(client.ID, newMessage(MessageTypeMatchState, matchID, state))
	}

	h.SendToClient(client.ID, newMessage(MessageTypeSubscribed, matchID, nil))

	h.logger.Debug("订阅比赛",
		zap.String("client_id", client.ID),
		zap.String("match_id", matchID))
}

// Unsubscribe 取消订阅
func (h *Hub) Unsubscribe(client *Client, matchID string) {
	h.subsMu.Lock()
	if subs, ok := h.subscribers[matchID]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.subscribers, matchID)
		}
	}
	h.subsMu.Unlock()

	h.SendToClient(client.ID, newMessage(MessageTypeUnsubscribed, matchID, nil))
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// GetOnlineCount 获取在线人数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// SubscriberCount 比赛的订阅人数
func (h *Hub) SubscriberCount(matchID string) int {
	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	return len(h.subscribers[matchID])
}

// runHeartbeat 运行心跳检测
func (h *Hub) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case h.broadcast <- newMessage(MessageTypePing, "", nil):
			default:
			}
		}
	}
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// newMessage 构造消息，data 序列化失败时返回 nil
func newMessage(msgType, matchID string, data interface{}) *Message {
	msg := &Message{
		Type:      msgType,
		MatchID:   matchID,
		Timestamp: time.Now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil
		}
		msg.Data = raw
	}
	return msg
}
