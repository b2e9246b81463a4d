package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
)

// DefaultETAMinutes: ожидаемое время выполнения, назначаемое при принятии задания.
const DefaultETAMinutes = 40

// Errand описывает задание, опубликованное заказчиком.
type Errand struct {
	ID              uuid.UUID                  `db:"id" json:"id"`
	RequesterID     uuid.UUID                  `db:"requester_id" json:"requester_id"`
	RunnerID        *uuid.UUID                 `db:"runner_id" json:"runner_id,omitempty"`
	Title           string                     `db:"title" json:"title"`
	Description     string                     `db:"description" json:"description"`
	Category        valueobject.ErrandCategory `db:"category" json:"category"`
	Price           float64                    `db:"price" json:"price"`
	Tip             *float64                   `db:"tip" json:"tip,omitempty"`
	Status          valueobject.ErrandStatus   `db:"status" json:"status"`
	Urgency         valueobject.Urgency        `db:"urgency" json:"urgency"`
	ETAMinutes      *int                       `db:"eta_minutes" json:"eta_minutes,omitempty"`
	TimeWindowStart *time.Time                 `db:"time_window_start" json:"time_window_start,omitempty"`
	TimeWindowEnd   *time.Time                 `db:"time_window_end" json:"time_window_end,omitempty"`
	CompletedAt     *time.Time                 `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time                  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                  `db:"updated_at" json:"updated_at"`
	Locations       []Location                 `json:"locations,omitempty"`
	Media           []MediaAttachment          `json:"media,omitempty"`
}

// Location — точка забора или доставки.
type Location struct {
	ID        uuid.UUID                `db:"id" json:"id"`
	ErrandID  uuid.UUID                `db:"errand_id" json:"errand_id"`
	Type      valueobject.LocationType `db:"type" json:"type"`
	Label     string                   `db:"label" json:"label"`
	Latitude  *float64                 `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64                 `db:"longitude" json:"longitude,omitempty"`
	Position  int                      `db:"position" json:"position"`
}

// MediaAttachment — ссылка на уже загруженный файл.
type MediaAttachment struct {
	ID         uuid.UUID             `db:"id" json:"id"`
	ErrandID   uuid.UUID             `db:"errand_id" json:"errand_id"`
	URL        string                `db:"url" json:"url"`
	ProviderID *string               `db:"provider_id" json:"provider_id,omitempty"`
	Type       valueobject.MediaType `db:"type" json:"type"`
	CreatedAt  time.Time             `db:"created_at" json:"created_at"`
}

// ParticipantRole: отношение пользователя к конкретному заданию.
type ParticipantRole int

const (
	ParticipantNone ParticipantRole = iota
	ParticipantRequester
	ParticipantRunner
)

func (r ParticipantRole) IsParticipant() bool {
	return r != ParticipantNone
}

func (r ParticipantRole) String() string {
	switch r {
	case ParticipantRequester:
		return "requester"
	case ParticipantRunner:
		return "runner"
	default:
		return "none"
	}
}

// RoleOf определяет, кем пользователь приходится заданию.
// Исполнитель отменённого задания участником не считается.
func (e *Errand) RoleOf(userID uuid.UUID) ParticipantRole {
	if e == nil || userID == uuid.Nil {
		return ParticipantNone
	}
	if e.RequesterID == userID {
		return ParticipantRequester
	}
	if e.RunnerID != nil && *e.RunnerID == userID && e.Status.HasRunner() {
		return ParticipantRunner
	}
	return ParticipantNone
}

// Counterpart возвращает вторую сторону задания для участника.
func (e *Errand) Counterpart(userID uuid.UUID) (uuid.UUID, bool) {
	switch e.RoleOf(userID) {
	case ParticipantRequester:
		if e.RunnerID == nil {
			return uuid.Nil, false
		}
		return *e.RunnerID, true
	case ParticipantRunner:
		return e.RequesterID, true
	}
	return uuid.Nil, false
}

// Payout возвращает сумму к выплате исполнителю: цену плюс чаевые.
func (e *Errand) Payout() float64 {
	if e.Tip == nil {
		return e.Price
	}
	return e.Price + *e.Tip
}

// Параметры сортировки списка заданий.
const (
	SortNewest    = "newest"
	SortPriceHigh = "price_high"
	SortPriceLow  = "price_low"
	SortDistance  = "distance"
)

// ErrandFilter задаёт условия выборки видимых заданий.
type ErrandFilter struct {
	Category *valueobject.ErrandCategory
	Status   *valueobject.ErrandStatus
	Urgency  *valueobject.Urgency
	MinPrice *float64
	MaxPrice *float64
	Search   string
	SortBy   string
	// Origin обязателен для сортировки по расстоянию.
	OriginLat *float64
	OriginLng *float64
}

// ErrandPage: страница результатов поиска.
type ErrandPage struct {
	Items []Errand `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}
