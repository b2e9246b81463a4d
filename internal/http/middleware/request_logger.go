package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/logger"
)

// RequestLogger пишет по строке на каждый запрос через общий логгер.
func RequestLogger() gin.HandlerFunc {
	log := logger.For("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Сокет живёт долго, его закрытие логирует сам клиент.
		if c.Writer.Status() == http.StatusSwitchingProtocols {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("запрос")
			return
		}
		entry.Info("запрос")
	}
}
