package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/gateway/paystack"
	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/metrics"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/repository"
	"github.com/ignatzorin/errands-backend/internal/validation"
)

// EventChargeSuccess: событие вебхука об успешном списании.
const EventChargeSuccess = "charge.success"

// Источники итогового статуса платежа.
const (
	SourceVerify     = "verify"
	SourceWebhook    = "webhook"
	SourceReconciler = "reconciler"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	CreateSettlement(ctx context.Context, p *models.Payment) (bool, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindSuccessfulEscrow(ctx context.Context, errandID uuid.UUID) (*models.Payment, error)
	SetStatusIfUnsettled(ctx context.Context, id uuid.UUID, status valueobject.PaymentStatus) (*models.Payment, bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, paymentType valueobject.PaymentType) ([]models.Payment, error)
	ListUnsettled(ctx context.Context, before time.Time, limit int) ([]models.Payment, error)
	MarkChecked(ctx context.Context, id uuid.UUID, at time.Time) error
}

type ErrandReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Errand, error)
}

// PaymentGateway: внешний платёжный шлюз.
type PaymentGateway interface {
	Initialize(ctx context.Context, in paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type PaymentService struct {
	repo           PaymentRepository
	errands        ErrandReader
	gateway        PaymentGateway
	gatewayTimeout time.Duration
	now            func() time.Time
}

func NewPaymentService(repo PaymentRepository, errands ErrandReader, gateway PaymentGateway, gatewayTimeout time.Duration) *PaymentService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	return &PaymentService{
		repo:           repo,
		errands:        errands,
		gateway:        gateway,
		gatewayTimeout: gatewayTimeout,
		now:            time.Now,
	}
}

type InitializePaymentInput struct {
	ErrandID uuid.UUID
	Email    string
	Amount   float64
}

// Initialize создаёт эскроу-платёж по заданию и возвращает ссылку на оплату.
func (s *PaymentService) Initialize(ctx context.Context, actorID uuid.UUID, in InitializePaymentInput) (*models.PaymentInit, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	amount, err := valueobject.NewMoney(in.Amount, "")
	if err != nil {
		return nil, err
	}

	errand, err := s.errands.GetByID(ctx, in.ErrandID)
	if err != nil {
		return nil, mapErrandErr(err)
	}
	if errand.RequesterID != actorID {
		return nil, apperror.Forbidden("оплатить задание может только заказчик")
	}
	if errand.Status != valueobject.ErrandStatusOpen && errand.Status != valueobject.ErrandStatusAccepted {
		return nil, apperror.InvalidState("оплата возможна только для открытых или принятых заданий")
	}
	if amount.MinorUnits() < valueobject.ToMinorUnits(errand.Payout()) {
		return nil, apperror.BadRequest(fmt.Sprintf("сумма меньше стоимости задания с чаевыми (%.2f)", errand.Payout()))
	}

	settled, err := s.repo.FindSuccessfulEscrow(ctx, errand.ID)
	if err != nil {
		return nil, apperror.Unavailable(err, "хранилище платежей недоступно")
	}
	if settled != nil {
		return nil, apperror.Conflict("задание уже оплачено")
	}

	reference := fmt.Sprintf("errand-%s-%d", errand.ID, s.now().UnixMilli())

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	res, err := s.gateway.Initialize(gwCtx, paystack.InitializeRequest{
		Email:       strings.ToLower(strings.TrimSpace(in.Email)),
		AmountMinor: amount.MinorUnits(),
		Reference:   reference,
		Metadata: map[string]string{
			"errandId": errand.ID.String(),
			"userId":   actorID.String(),
		},
	})
	if err != nil {
		metrics.GatewayErrorsTotal.WithLabelValues("initialize").Inc()
		return nil, apperror.Unavailable(err, "платёжный шлюз недоступен")
	}

	description := "Оплата задания: " + errand.Title
	payment := &models.Payment{
		ErrandID:         errand.ID,
		UserID:           actorID,
		Amount:           amount.Amount,
		Type:             valueobject.PaymentTypeEscrow,
		Status:           valueobject.PaymentStatusPending,
		Reference:        &res.Reference,
		AuthorizationURL: &res.AuthorizationURL,
		Description:      &description,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicateReference) {
			return nil, apperror.Conflict("платёж с такой ссылкой уже существует")
		}
		return nil, apperror.Unavailable(err, "не удалось сохранить платёж")
	}

	logger.Log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"errand_id":  errand.ID,
		"reference":  res.Reference,
	}).Info("эскроу-платёж инициализирован")

	return &models.PaymentInit{
		PaymentID:        payment.ID,
		AuthorizationURL: res.AuthorizationURL,
		Reference:        res.Reference,
	}, nil
}

// Verify сверяет платёж со шлюзом. Для платежа в итоговом статусе шлюз не вызывается.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	return s.settle(ctx, reference, SourceVerify, nil)
}

// WebhookEvent: тело уведомления шлюза.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// ReconcileWebhook применяет уведомление шлюза. Неизвестные события и ссылки
// принимаются и игнорируются: доставка «хотя бы один раз», эффект не более одного раза.
func (s *PaymentService) ReconcileWebhook(ctx context.Context, event WebhookEvent) error {
	log := logger.Log.WithFields(logrus.Fields{"event": event.Event, "reference": event.Data.Reference})

	if event.Event != EventChargeSuccess {
		log.Debug("вебхук: событие пропущено")
		return nil
	}
	if event.Data.Reference == "" {
		log.Warn("вебхук: событие без ссылки")
		return nil
	}

	success := valueobject.PaymentStatusSuccess
	if _, err := s.settle(ctx, event.Data.Reference, SourceWebhook, &success); err != nil {
		if apperror.IsNotFound(err) {
			log.Warn("вебхук: платёж с такой ссылкой не найден")
			return nil
		}
		return err
	}
	return nil
}

// settle приводит платёж к статусу шлюза условной записью: из параллельных
// verify и вебхука применяется первая, вторая видит уже итоговый статус.
func (s *PaymentService) settle(ctx context.Context, reference, source string, known *valueobject.PaymentStatus) (*models.Payment, error) {
	payment, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, apperror.ErrPaymentNotFound
		}
		return nil, apperror.Unavailable(err, "хранилище платежей недоступно")
	}
	if payment.Status.IsTerminal() {
		return payment, nil
	}

	var target valueobject.PaymentStatus
	if known != nil {
		target = *known
	} else {
		gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		tx, err := s.gateway.Verify(gwCtx, reference)
		cancel()
		if err != nil {
			metrics.GatewayErrorsTotal.WithLabelValues("verify").Inc()
			return nil, apperror.Unavailable(err, "платёжный шлюз недоступен")
		}
		target = valueobject.GatewayStatusToPayment(tx.Status)
	}

	if target == payment.Status || !payment.Status.CanTransitionTo(target) {
		return payment, nil
	}

	updated, applied, err := s.repo.SetStatusIfUnsettled(ctx, payment.ID, target)
	if errors.Is(err, repository.ErrEscrowAlreadySettled) {
		return s.cancelDuplicateCharge(ctx, payment, source)
	}
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось обновить платёж")
	}
	if !applied {
		// Другой обработчик успел раньше: возвращаем то, что он записал.
		current, err := s.repo.GetByReference(ctx, reference)
		if err != nil {
			return nil, apperror.Unavailable(err, "хранилище платежей недоступно")
		}
		return current, nil
	}

	if updated.Status.IsTerminal() {
		metrics.PaymentsSettledTotal.WithLabelValues(source, string(updated.Status)).Inc()
		logger.Log.WithFields(logrus.Fields{
			"payment_id": updated.ID,
			"errand_id":  updated.ErrandID,
			"reference":  reference,
			"status":     updated.Status,
			"source":     source,
		}).Info("платёж завершён")
	}
	return updated, nil
}

// cancelDuplicateCharge отменяет второй успешный эскроу по тому же заданию.
// Деньги по нему нужно вернуть вручную, поэтому событие пишется с уровнем warn.
func (s *PaymentService) cancelDuplicateCharge(ctx context.Context, payment *models.Payment, source string) (*models.Payment, error) {
	updated, applied, err := s.repo.SetStatusIfUnsettled(ctx, payment.ID, valueobject.PaymentStatusCancelled)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось обновить платёж")
	}
	if !applied {
		return s.repo.GetByReference(ctx, *payment.Reference)
	}

	metrics.PaymentsSettledTotal.WithLabelValues(source, string(updated.Status)).Inc()
	logger.Log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"errand_id":  payment.ErrandID,
		"reference":  *payment.Reference,
	}).Warn("повторное списание по оплаченному заданию отменено, требуется ручной возврат")
	return updated, nil
}

// HasSettledEscrow сообщает, оплачено ли задание.
func (s *PaymentService) HasSettledEscrow(ctx context.Context, errandID uuid.UUID) (bool, error) {
	p, err := s.repo.FindSuccessfulEscrow(ctx, errandID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// RecordPayout записывает выплату исполнителю по оплаченному заданию.
func (s *PaymentService) RecordPayout(ctx context.Context, errand *models.Errand) error {
	if errand.RunnerID == nil {
		return nil
	}
	escrow, err := s.repo.FindSuccessfulEscrow(ctx, errand.ID)
	if err != nil || escrow == nil {
		return err
	}

	// Выплата не больше фактически удержанной суммы.
	amount := errand.Payout()
	if escrow.Amount < amount {
		amount = escrow.Amount
	}

	description := "Выплата за задание: " + errand.Title
	return s.recordSettlement(ctx, &models.Payment{
		ErrandID:    errand.ID,
		UserID:      *errand.RunnerID,
		Amount:      amount,
		Type:        valueobject.PaymentTypePayout,
		Status:      valueobject.PaymentStatusPending,
		Description: &description,
	})
}

// RecordRefund записывает возврат заказчику по отменённому оплаченному заданию.
func (s *PaymentService) RecordRefund(ctx context.Context, errand *models.Errand) error {
	escrow, err := s.repo.FindSuccessfulEscrow(ctx, errand.ID)
	if err != nil || escrow == nil {
		return err
	}

	description := "Возврат за отменённое задание: " + errand.Title
	return s.recordSettlement(ctx, &models.Payment{
		ErrandID:    errand.ID,
		UserID:      errand.RequesterID,
		Amount:      escrow.Amount,
		Type:        valueobject.PaymentTypeRefund,
		Status:      valueobject.PaymentStatusPending,
		Description: &description,
	})
}

func (s *PaymentService) recordSettlement(ctx context.Context, p *models.Payment) error {
	created, err := s.repo.CreateSettlement(ctx, p)
	if err != nil {
		return err
	}
	if created {
		logger.Log.WithFields(logrus.Fields{
			"errand_id": p.ErrandID,
			"user_id":   p.UserID,
			"type":      p.Type,
			"amount":    p.Amount,
		}).Info("создана запись о расчёте")
	}
	return nil
}

// ListPayouts возвращает выплаты пользователя, новые первыми.
func (s *PaymentService) ListPayouts(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	items, err := s.repo.ListByUser(ctx, userID, valueobject.PaymentTypePayout)
	if err != nil {
		return nil, apperror.Unavailable(err, "хранилище платежей недоступно")
	}
	return items, nil
}

// ReconcileStale перепроверяет в шлюзе платежи, зависшие дольше staleAfter.
// Возвращает число платежей, получивших итоговый статус.
func (s *PaymentService) ReconcileStale(ctx context.Context, staleAfter time.Duration, batch int) (int, error) {
	items, err := s.repo.ListUnsettled(ctx, s.now().Add(-staleAfter), batch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, p := range items {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if p.Reference == nil {
			continue
		}
		// Отметка ставится до обращения к шлюзу, иначе платежи, по которым шлюз
		// отвечает ошибкой или тем же статусом, занимают всю пачку на каждом тике.
		if err := s.repo.MarkChecked(ctx, p.ID, s.now()); err != nil {
			return settled, err
		}
		updated, err := s.settle(ctx, *p.Reference, SourceReconciler, nil)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"payment_id": p.ID, "reference": *p.Reference}).
				WithError(err).Warn("сверка платежа не удалась")
			continue
		}
		if updated.Status.IsTerminal() {
			settled++
		}
	}
	return settled, nil
}
