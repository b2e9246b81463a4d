package ws

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// События, которые присылает клиент.
const (
	EventJoinErrand  = "join_errand"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

// События, которые отправляет сервер.
const (
	EventJoinedErrand = "joined_errand"
	EventNewMessage   = "new_message"
	EventMessageSent  = "message_sent"
	EventUserTyping   = "user_typing"
	EventError        = "error"
)

// Frame: конверт каждого сообщения в обе стороны.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outboundFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(outboundFrame{Type: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}

type errandRef struct {
	ErrandID string `json:"errandId"`
}

func (r errandRef) parse() (uuid.UUID, error) {
	id, err := uuid.Parse(r.ErrandID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("некорректный errandId")
	}
	return id, nil
}

type sendMessagePayload struct {
	errandRef
	Text string `json:"text"`
}

type typingPayload struct {
	errandRef
	IsTyping bool `json:"isTyping"`
}

type joinedPayload struct {
	ErrandID uuid.UUID `json:"errandId"`
}

type userTypingPayload struct {
	ErrandID uuid.UUID `json:"errandId"`
	UserID   uuid.UUID `json:"userId"`
	IsTyping bool      `json:"isTyping"`
}

type errorPayload struct {
	Message string `json:"message"`
}
