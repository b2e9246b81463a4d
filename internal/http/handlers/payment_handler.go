package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/dto"
	"github.com/ignatzorin/errands-backend/internal/http/handlers/common"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/service"
)

type PaymentService interface {
	Initialize(ctx context.Context, actorID uuid.UUID, in service.InitializePaymentInput) (*models.PaymentInit, error)
	Verify(ctx context.Context, reference string) (*models.Payment, error)
	ReconcileWebhook(ctx context.Context, event service.WebhookEvent) error
	ListPayouts(ctx context.Context, userID uuid.UUID) ([]models.Payment, error)
}

type PaymentHandler struct {
	payments PaymentService
}

func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initialize POST /payments/initialize
func (h *PaymentHandler) Initialize(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.InitializePaymentRequest
	if err := common.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	errandID, err := common.ParseUUIDField("errand_id", req.ErrandID)
	if err != nil {
		c.Error(err)
		return
	}

	res, err := h.payments.Initialize(c.Request.Context(), userID, service.InitializePaymentInput{
		ErrandID: errandID,
		Email:    req.Email,
		Amount:   req.Amount,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// Verify POST /payments/verify/:reference
func (h *PaymentHandler) Verify(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		c.Error(apperror.BadRequest("reference обязателен"))
		return
	}

	payment, err := h.payments.Verify(c.Request.Context(), reference)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Webhook POST /payments/webhook
// Подпись уже проверена middleware.WebhookSignature.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var event service.WebhookEvent
	if err := common.BindJSON(c, &event); err != nil {
		c.Error(err)
		return
	}

	if err := h.payments.ReconcileWebhook(c.Request.Context(), event); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}

// ListPayouts GET /payments/payouts
func (h *PaymentHandler) ListPayouts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	items, err := h.payments.ListPayouts(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, items)
}
