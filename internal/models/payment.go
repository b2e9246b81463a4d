package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
)

// Payment: платёж по заданию: эскроу, выплата исполнителю или возврат заказчику.
type Payment struct {
	ID               uuid.UUID                 `db:"id" json:"id"`
	ErrandID         uuid.UUID                 `db:"errand_id" json:"errand_id"`
	UserID           uuid.UUID                 `db:"user_id" json:"user_id"`
	Amount           float64                   `db:"amount" json:"amount"`
	Type             valueobject.PaymentType   `db:"type" json:"type"`
	Status           valueobject.PaymentStatus `db:"status" json:"status"`
	Reference        *string                   `db:"reference" json:"reference,omitempty"`
	AuthorizationURL *string                   `db:"authorization_url" json:"authorization_url,omitempty"`
	Description      *string                   `db:"description" json:"description,omitempty"`
	CreatedAt        time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time                 `db:"updated_at" json:"updated_at"`
}

// PaymentInit: результат инициализации эскроу-платежа.
type PaymentInit struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	AuthorizationURL string    `json:"authorization_url"`
	Reference        string    `json:"reference"`
}
