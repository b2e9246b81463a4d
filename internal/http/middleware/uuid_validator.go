package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр пути является валидным UUID.
// Использование: router.GET("/errands/:id", UUIDValidator("id"), handler.Get)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			abortWithError(c, apperror.BadRequest("параметр "+paramName+" обязателен"))
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			abortWithError(c, apperror.BadRequest("параметр "+paramName+" должен быть валидным UUID"))
			return
		}

		c.Next()
	}
}
