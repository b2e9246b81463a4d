package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/repository/common"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrEscrowAlreadySettled: по заданию уже есть успешный эскроу.
	ErrEscrowAlreadySettled = errors.New("escrow already settled for errand")
	ErrDuplicateReference   = errors.New("payment reference already exists")
)

const (
	escrowSuccessConstraint = "uq_payments_escrow_success"
	paymentReferenceKey     = "payments_reference_key"
)

const paymentColumns = `id, errand_id, user_id, amount, type, status, reference, authorization_url, description,
	created_at, updated_at`

type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет новый платёж.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := r.db.GetContext(ctx, p, `
		INSERT INTO payments (id, errand_id, user_id, amount, type, status, reference, authorization_url, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+paymentColumns,
		p.ID, p.ErrandID, p.UserID, p.Amount, p.Type, p.Status, p.Reference, p.AuthorizationURL, p.Description)
	if err != nil {
		if common.IsUniqueViolation(err, paymentReferenceKey) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("payment repository: create %w", err)
	}
	return nil
}

// CreateSettlement записывает выплату или возврат, если такой записи по заданию ещё нет.
func (r *PaymentRepository) CreateSettlement(ctx context.Context, p *models.Payment) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, errand_id, user_id, amount, type, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (errand_id, type) WHERE type IN ('payout', 'refund') DO NOTHING`,
		p.ID, p.ErrandID, p.UserID, p.Amount, p.Type, p.Status, p.Description)
	if err != nil {
		return false, fmt.Errorf("payment repository: create settlement %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment repository: create settlement %w", err)
	}
	return n == 1, nil
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	p, err := common.GetOne[models.Payment](ctx, r.db, ErrPaymentNotFound,
		`SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("payment repository: get by reference %w", err)
	}
	return p, err
}

// FindSuccessfulEscrow возвращает успешный эскроу задания или nil.
func (r *PaymentRepository) FindSuccessfulEscrow(ctx context.Context, errandID uuid.UUID) (*models.Payment, error) {
	p, err := common.GetOne[models.Payment](ctx, r.db, ErrPaymentNotFound,
		`SELECT `+paymentColumns+` FROM payments WHERE errand_id = $1 AND type = $2 AND status = $3`,
		errandID, valueobject.PaymentTypeEscrow, valueobject.PaymentStatusSuccess)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("payment repository: find successful escrow %w", err)
	}
	return p, nil
}

// SetStatusIfUnsettled пишет статус, только если платёж ещё не в итоговом состоянии.
// Возвращает false без ошибки, если запись не применена.
func (r *PaymentRepository) SetStatusIfUnsettled(ctx context.Context, id uuid.UUID, status valueobject.PaymentStatus) (*models.Payment, bool, error) {
	p, err := common.GetOne[models.Payment](ctx, r.db, ErrPaymentNotFound, `
		UPDATE payments SET status = $2, updated_at = NOW(), checked_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+paymentColumns,
		id, status, unsettledStatuses())
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return nil, false, nil
	case common.IsUniqueViolation(err, escrowSuccessConstraint):
		return nil, false, ErrEscrowAlreadySettled
	case err != nil:
		return nil, false, fmt.Errorf("payment repository: set status %w", err)
	}
	return p, true, nil
}

// ListByUser возвращает платежи пользователя указанного типа, новые первыми.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, paymentType valueobject.PaymentType) ([]models.Payment, error) {
	items := []models.Payment{}
	if err := r.db.SelectContext(ctx, &items,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 AND type = $2 ORDER BY created_at DESC`,
		userID, paymentType); err != nil {
		return nil, fmt.Errorf("payment repository: list by user %w", err)
	}
	return items, nil
}

// ListUnsettled возвращает незавершённые платежи со ссылкой шлюза, которые не сверялись с before.
// Давно не сверявшиеся идут первыми.
func (r *PaymentRepository) ListUnsettled(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	items := []models.Payment{}
	if err := r.db.SelectContext(ctx, &items, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = ANY($1) AND reference IS NOT NULL AND checked_at < $2
		ORDER BY checked_at, created_at
		LIMIT $3`,
		unsettledStatuses(), before, limit); err != nil {
		return nil, fmt.Errorf("payment repository: list unsettled %w", err)
	}
	return items, nil
}

// MarkChecked отмечает попытку сверки, даже если статус не изменился.
func (r *PaymentRepository) MarkChecked(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE payments SET checked_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("payment repository: mark checked %w", err)
	}
	return nil
}

func unsettledStatuses() pq.StringArray {
	statuses := valueobject.NonTerminalPaymentStatuses()
	out := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
