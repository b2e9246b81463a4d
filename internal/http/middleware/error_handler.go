package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// AppError отдаётся клиенту как есть, остальные ошибки маскируются под 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := renderError(err)

		entry := logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("ошибка обработки запроса")
		} else {
			entry.Debug("запрос отклонён")
		}

		c.JSON(status, body)
	}
}

func renderError(err error) (int, gin.H) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Code != apperror.ErrCodeInternal {
		return appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code}
	}
	return http.StatusInternalServerError, gin.H{
		"error": "внутренняя ошибка сервера",
		"code":  apperror.ErrCodeInternal,
	}
}

// abortWithError прерывает цепочку и сразу отвечает ошибкой.
func abortWithError(c *gin.Context, err error) {
	status, body := renderError(err)
	c.AbortWithStatusJSON(status, body)
}
