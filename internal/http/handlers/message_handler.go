package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/dto"
	"github.com/ignatzorin/errands-backend/internal/http/handlers/common"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/service"
)

type MessageService interface {
	Send(ctx context.Context, in service.SendMessageInput) (*models.Message, error)
	History(ctx context.Context, errandID, actorID uuid.UUID) ([]models.Message, error)
}

type MessageHandler struct {
	messages MessageService
}

func NewMessageHandler(messages MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// History GET /messages/:errandId
func (h *MessageHandler) History(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	errandID, err := common.ParseUUIDParam(c, "errandId")
	if err != nil {
		c.Error(err)
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), errandID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, msgs)
}

// Send POST /messages/:errandId
// Сообщение проходит тот же путь, что и через сокет, и рассылается в комнату задания.
func (h *MessageHandler) Send(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	errandID, err := common.ParseUUIDParam(c, "errandId")
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.SendMessageRequest
	if err := common.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), service.SendMessageInput{
		ErrandID: errandID,
		SenderID: userID,
		Text:     req.Text,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}
