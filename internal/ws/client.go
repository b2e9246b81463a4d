package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/goroutine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client представляет одно подключение WebSocket.
type Client struct {
	id     uuid.UUID
	userID uuid.UUID
	conn   *websocket.Conn
	hub    *Hub

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient создаёт нового клиента.
func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
	}
}

func (c *Client) ID() uuid.UUID     { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// Run регистрирует клиента и обслуживает соединение до его закрытия.
func (c *Client) Run(ctx context.Context) {
	if !c.hub.Register(c) {
		c.conn.Close()
		return
	}
	goroutine.SafeGo("ws-write-pump", c.writePump)
	c.readPump(ctx)
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.hub.Unregister(c)
	c.conn.Close()
}

// enqueue ставит кадр в очередь отправки. false: клиент закрыт или не успевает читать.
func (c *Client) enqueue(raw []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) emit(event string, data interface{}) {
	raw, err := encodeFrame(event, data)
	if err != nil {
		c.hub.log.WithError(err).Error("не удалось подготовить ответ клиенту")
		return
	}
	if !c.enqueue(raw) {
		go c.Close()
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer goroutine.NewRecoveryHandler(c.hub.log).Recover("ws-read-pump")
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithFields(logrus.Fields{"user_id": c.userID}).WithError(err).Debug("ws: соединение оборвано")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
			c.emit(EventError, errorPayload{Message: "некорректный формат сообщения"})
			continue
		}
		c.hub.dispatch(ctx, c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
