package common

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/http/middleware"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
)

// CurrentUserID извлекает userID, который положил AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, ok := raw.(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// CurrentUserRole извлекает роль пользователя из контекста.
func CurrentUserRole(c *gin.Context) valueobject.UserRole {
	raw, _ := c.Get(middleware.ContextRoleKey)
	role, _ := raw.(valueobject.UserRole)
	return role
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(c.Param(paramName))
	if err != nil {
		return uuid.Nil, apperror.BadRequest("параметр " + paramName + " должен быть валидным UUID")
	}
	return parsed, nil
}

// ParseUUIDField разбирает UUID из поля тела запроса.
func ParseUUIDField(field, raw string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.BadRequest("поле " + field + " должно быть валидным UUID")
	}
	return parsed, nil
}

// BindJSON разбирает тело запроса и превращает ошибку разбора в BadRequest.
func BindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело запроса")
	}
	return nil
}

// ParseIntQuery читает целый параметр запроса со значением по умолчанию.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
