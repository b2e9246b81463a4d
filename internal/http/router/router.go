package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignatzorin/errands-backend/internal/config"
	"github.com/ignatzorin/errands-backend/internal/http/handlers"
	"github.com/ignatzorin/errands-backend/internal/http/middleware"
)

// Handlers: набор обработчиков, из которых собирается API.
type Handlers struct {
	Health   *handlers.HealthHandler
	Errands  *handlers.ErrandHandler
	Messages *handlers.MessageHandler
	Payments *handlers.PaymentHandler
	Ratings  *handlers.RatingHandler
	Users    *handlers.UserHandler
	WS       *handlers.WSHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.TokenParser) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Публичные маршруты
	api.GET("/ws", h.WS.Handle)

	payments := api.Group("/payments")
	payments.POST("/webhook", middleware.WebhookSignature(cfg.PaystackWebhookSecret), h.Payments.Webhook)
	payments.POST("/verify/:reference", h.Payments.Verify)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/errands", h.Errands.Create)
		protected.GET("/errands", h.Errands.List)
		protected.GET("/errands/my", h.Errands.ListMine)
		protected.GET("/errands/:id", middleware.UUIDValidator("id"), h.Errands.Get)
		protected.PATCH("/errands/:id/accept", middleware.UUIDValidator("id"), h.Errands.Accept)
		protected.PATCH("/errands/:id/status", middleware.UUIDValidator("id"), h.Errands.UpdateStatus)
		protected.DELETE("/errands/:id", middleware.UUIDValidator("id"), h.Errands.Cancel)

		protected.GET("/messages/:errandId", middleware.UUIDValidator("errandId"), h.Messages.History)
		protected.POST("/messages/:errandId", middleware.UUIDValidator("errandId"), h.Messages.Send)

		protected.POST("/payments/initialize", h.Payments.Initialize)
		protected.GET("/payments/payouts", h.Payments.ListPayouts)

		protected.POST("/ratings", h.Ratings.Submit)
		protected.GET("/ratings/stats/:userId", middleware.UUIDValidator("userId"), h.Ratings.Stats)
		protected.GET("/users/stats", h.Users.Stats)
		protected.GET("/users/:id/ratings", middleware.UUIDValidator("id"), h.Ratings.ListForUser)
	}

	return r
}
