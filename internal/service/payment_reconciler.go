package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/logger"
)

// StaleReconciler: операция сверки зависших платежей.
type StaleReconciler interface {
	ReconcileStale(ctx context.Context, staleAfter time.Duration, batch int) (int, error)
}

// PaymentReconciler периодически досверяет платежи, по которым не пришёл ни verify, ни вебхук,
// чтобы таймаут шлюза не оставлял платёж в pending навсегда.
type PaymentReconciler struct {
	payments   StaleReconciler
	interval   time.Duration
	staleAfter time.Duration
	batch      int
}

func NewPaymentReconciler(payments StaleReconciler, interval, staleAfter time.Duration, batch int) *PaymentReconciler {
	if batch <= 0 {
		batch = 50
	}
	return &PaymentReconciler{payments: payments, interval: interval, staleAfter: staleAfter, batch: batch}
}

// Run работает до отмены контекста.
func (r *PaymentReconciler) Run(ctx context.Context) {
	if r.payments == nil || r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *PaymentReconciler) tick(ctx context.Context) {
	settled, err := r.payments.ReconcileStale(ctx, r.staleAfter, r.batch)
	if err != nil {
		if ctx.Err() == nil {
			logger.Log.WithError(err).Error("сверка платежей не удалась")
		}
		return
	}
	if settled > 0 {
		logger.Log.WithFields(logrus.Fields{"settled": settled}).Info("зависшие платежи сверены")
	}
}
