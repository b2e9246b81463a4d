package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/errands-backend/internal/http/middleware"
	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	tokens   middleware.TokenParser
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins разрешает любой origin.
func NewWSHandler(hub *ws.Hub, tokens middleware.TokenParser, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Handle обслуживает GET /ws?token=... (или заголовок Authorization: Bearer).
// Без валидного токена соединение не устанавливается.
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		rawToken, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if rawToken == "" {
		c.Error(apperror.New(apperror.ErrCodeUnauthorized, "access токен обязателен"))
		return
	}

	userID, _, err := h.tokens.ParseAccess(rawToken)
	if err != nil || userID == uuid.Nil {
		c.Error(apperror.New(apperror.ErrCodeUnauthorized, "невалидный access токен"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader уже ответил клиенту.
		logger.Log.WithError(err).Debug("ws: не удалось установить соединение")
		return
	}

	ws.NewClient(conn, h.hub, userID).Run(c.Request.Context())
}
