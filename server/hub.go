package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"PlayDeck/logger"
	"PlayDeck/metrics"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	MsgTypeEvent   MessageType = "event"   // 播放器通知（服务端 -> 客户端）
	MsgTypeCommand MessageType = "command" // 输出命令（服务端 -> 客户端）
	MsgTypeReport  MessageType = "report"  // 媒体上报（客户端 -> 服务端）
	MsgTypePing    MessageType = "ping"    // 心跳
	MsgTypePong    MessageType = "pong"    // 心跳响应
)

// WSMessage WebSocket消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func newMessage(typ MessageType, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&WSMessage{Type: typ, Data: raw, Timestamp: time.Now().UnixMilli()})
}

const (
	sendBuffer   = 256
	readLimit    = 4096
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Client 一个WebSocket连接
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// Hub 将消息广播给所有连接的客户端
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// 新客户端加入时补发的消息
	onJoin func() [][]byte

	mu   sync.RWMutex
	done chan struct{}
}

// NewHub 创建Hub，调用Run启动
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// OnJoin 设置新客户端加入时补发的消息，需在Run之前设置
func (h *Hub) OnJoin(fn func() [][]byte) {
	h.onJoin = fn
}

// Run 运行Hub主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止Hub并关闭所有客户端
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketClients.Set(float64(count))
	if h.onJoin != nil {
		for _, msg := range h.onJoin() {
			select {
			case client.Send <- msg:
			default:
			}
		}
	}
	logger.Info("client registered", logger.Int("clients", count))
}

// removeClient 调用方需持有h.mu
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	metrics.WebsocketClients.Set(float64(len(h.clients)))
	logger.Info("client unregistered", logger.Int("clients", len(h.clients)))
}

func (h *Hub) broadcastToAll(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.Send <- msg:
		default:
			// 客户端跟不上，直接断开
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
	metrics.WebsocketClients.Set(0)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast 广播消息，不阻塞，队列满时丢弃
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		logger.Warn("broadcast queue full, dropping message")
	}
}

// BroadcastMessage 按typ封装data后广播
func (h *Hub) BroadcastMessage(typ MessageType, data interface{}) error {
	msg, err := newMessage(typ, data)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount 获取连接的客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump 读取消息，直到连接出错或ctx结束
func (c *Client) ReadPump(ctx context.Context, handler func(ctx context.Context, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err))
			continue
		}

		if msg.Type == MsgTypePing {
			if pong, err := newMessage(MsgTypePong, nil); err == nil {
				select {
				case c.Send <- pong:
				default:
				}
			}
			continue
		}

		handler(ctx, &msg)
	}
}

// WritePump 逐帧写出队列中的消息并保持心跳
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
