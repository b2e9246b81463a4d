package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
)

const (
	SignatureHeader     = "x-paystack-signature"
	maxWebhookBodyBytes = 1 << 20
)

// WebhookSignature пропускает только запросы, подписанные HMAC-SHA512 от сырого тела.
// Тело после проверки возвращается в запрос для обработчика.
func WebhookSignature(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		signature := strings.TrimSpace(c.GetHeader(SignatureHeader))
		if signature == "" || len(key) == 0 {
			abortWithError(c, apperror.New(apperror.ErrCodeUnauthorized, "подпись вебхука отсутствует"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			abortWithError(c, apperror.BadRequest("не удалось прочитать тело запроса"))
			return
		}

		if !ValidSignature(key, body, signature) {
			logger.Log.WithField("ip", c.ClientIP()).Warn("вебхук с неверной подписью отклонён")
			abortWithError(c, apperror.New(apperror.ErrCodeUnauthorized, "неверная подпись вебхука"))
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// ValidSignature сравнивает hex подпись с HMAC-SHA512 тела за постоянное время.
func ValidSignature(key, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, key)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign считает подпись тела. Используется в тестах и локальной отладке.
func Sign(key, body []byte) string {
	mac := hmac.New(sha512.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
