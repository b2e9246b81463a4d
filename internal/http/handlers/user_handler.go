package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/http/handlers/common"
	"github.com/ignatzorin/errands-backend/internal/models"
)

type UserService interface {
	Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Stats GET /users/stats
func (h *UserHandler) Stats(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	stats, err := h.users.Stats(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
