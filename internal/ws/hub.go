package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/metrics"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/service"
)

// ChatService: операции чата, которые вызываются из сокета.
type ChatService interface {
	AuthorizeJoin(ctx context.Context, errandID, userID uuid.UUID) error
	Send(ctx context.Context, in service.SendMessageInput) (*models.Message, error)
}

// Hub управляет соединениями и комнатами заданий.
type Hub struct {
	rooms      *RoomRegistry
	chat       ChatService
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logrus.Entry
}

// NewHub создаёт новый хаб.
func NewHub(chat ChatService) *Hub {
	return &Hub{
		rooms:      NewRoomRegistry(),
		chat:       chat,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger.For("ws"),
	}
}

func (h *Hub) Rooms() *RoomRegistry {
	return h.rooms
}

// Run обслуживает подключения и отключения до отмены контекста,
// после чего закрывает все соединения.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
				c.conn.Close()
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			metrics.WSConnections.Set(float64(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		}
	}
}

// drop сначала помечает клиента закрытым: join, уже прочитанный readPump,
// после этого в комнату не попадёт.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	c.closeSend()
	h.rooms.LeaveAll(c)
	metrics.WSConnections.Set(float64(len(h.clients)))
}

// Register добавляет клиента. Возвращает false, если хаб уже остановлен.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента из хаба и из всех комнат.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// PublishToRoom рассылает событие всем соединениям комнаты, кроме exclude.
// Очереди клиентов заполняются синхронно, поэтому порядок вызовов сохраняется.
func (h *Hub) PublishToRoom(errandID uuid.UUID, event string, data interface{}, exclude uuid.UUID) {
	members := h.rooms.Members(errandID)
	if len(members) == 0 {
		return
	}

	raw, err := encodeFrame(event, data)
	if err != nil {
		h.log.WithError(err).Error("не удалось подготовить событие комнаты")
		return
	}

	for _, c := range members {
		if c.id == exclude {
			continue
		}
		if !c.enqueue(raw) {
			// Медленный клиент не должен тормозить комнату.
			h.log.WithFields(logrus.Fields{"user_id": c.userID, "errand_id": errandID}).
				Warn("очередь клиента переполнена, соединение закрывается")
			go c.Close()
		}
	}
}

// dispatch обрабатывает одно входящее сообщение клиента. Ошибки операций
// отправляются клиенту событием error, соединение при этом не закрывается.
func (h *Hub) dispatch(ctx context.Context, c *Client, frame Frame) {
	var err error
	switch frame.Type {
	case EventJoinErrand:
		err = h.handleJoin(ctx, c, frame.Data)
	case EventSendMessage:
		err = h.handleSend(ctx, c, frame.Data)
	case EventTyping:
		err = h.handleTyping(c, frame.Data)
	default:
		err = apperror.BadRequest("неизвестное событие: " + frame.Type)
	}

	if err != nil {
		c.emit(EventError, errorPayload{Message: clientMessage(err)})
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, data json.RawMessage) error {
	var in errandRef
	if err := json.Unmarshal(data, &in); err != nil {
		return apperror.BadRequest("некорректные данные события")
	}
	errandID, err := in.parse()
	if err != nil {
		return apperror.BadRequest(err.Error())
	}

	if err := h.chat.AuthorizeJoin(ctx, errandID, c.userID); err != nil {
		return err
	}

	if !h.rooms.Join(errandID, c) {
		return nil
	}
	c.emit(EventJoinedErrand, joinedPayload{ErrandID: errandID})
	return nil
}

func (h *Hub) handleSend(ctx context.Context, c *Client, data json.RawMessage) error {
	var in sendMessagePayload
	if err := json.Unmarshal(data, &in); err != nil {
		return apperror.BadRequest("некорректные данные события")
	}
	errandID, err := in.parse()
	if err != nil {
		return apperror.BadRequest(err.Error())
	}

	msg, err := h.chat.Send(ctx, service.SendMessageInput{
		ErrandID:     errandID,
		SenderID:     c.userID,
		Text:         in.Text,
		OriginConnID: c.id,
	})
	if err != nil {
		return err
	}

	c.emit(EventMessageSent, msg)
	return nil
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage) error {
	var in typingPayload
	if err := json.Unmarshal(data, &in); err != nil {
		return apperror.BadRequest("некорректные данные события")
	}
	errandID, err := in.parse()
	if err != nil {
		return apperror.BadRequest(err.Error())
	}
	if !h.rooms.IsMember(errandID, c) {
		return apperror.Forbidden("сначала подключитесь к комнате задания")
	}

	h.PublishToRoom(errandID, EventUserTyping, userTypingPayload{
		ErrandID: errandID,
		UserID:   c.userID,
		IsTyping: in.IsTyping,
	}, c.id)
	return nil
}

// clientMessage скрывает детали внутренних ошибок.
func clientMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code != apperror.ErrCodeInternal {
		return appErr.Message
	}
	return "внутренняя ошибка сервера"
}
