package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// Recover перехватывает panic и пишет её в лог. Вызывается через defer.
func (rh *RecoveryHandler) Recover(name string) {
	if r := recover(); r != nil {
		rh.logger.WithFields(logrus.Fields{
			"goroutine": name,
			"panic":     r,
			"stack":     string(debug.Stack()),
		}).Error("panic в горутине")
	}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(name string, fn func()) {
	go func() {
		defer rh.Recover(name)
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer rh.Recover(name)
		fn(ctx)
	}()
}

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(name string, fn func()) {
	NewRecoveryHandler(logger.Log).SafeGo(name, fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, name string, fn func(context.Context)) {
	NewRecoveryHandler(logger.Log).SafeGoWithContext(ctx, name, fn)
}
