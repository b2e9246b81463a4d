package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger описывает всё, что health check требует от зависимости.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler предоставляет endpoint для проверки здоровья сервиса.
type HealthHandler struct {
	db     Pinger
	checks map[string]Pinger
}

// NewHealthHandler создаёт новый health handler. extra: необязательные зависимости (например, Redis).
func NewHealthHandler(db Pinger, extra map[string]Pinger) *HealthHandler {
	return &HealthHandler{db: db, checks: extra}
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health обрабатывает GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checks)+1)
	status := "healthy"

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = "unhealthy"
		status = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	// Необязательные зависимости только помечаются, статус сервиса не меняют.
	for name, p := range h.checks {
		if err := p.PingContext(ctx); err != nil {
			checks[name] = "degraded"
		} else {
			checks[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
