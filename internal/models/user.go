package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
)

// User описывает участника площадки. Учётные данные хранятся вне этого сервиса.
type User struct {
	ID          uuid.UUID            `db:"id" json:"id"`
	Email       string               `db:"email" json:"email"`
	FullName    string               `db:"full_name" json:"full_name"`
	Role        valueobject.UserRole `db:"role" json:"role"`
	RatingAvg   float64              `db:"rating_avg" json:"rating_avg"`
	RatingCount int                  `db:"rating_count" json:"rating_count"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// UserStats: сводка активности пользователя для его профиля.
type UserStats struct {
	ErrandsPosted   int                  `json:"errands_posted"`
	ErrandsAccepted int                  `json:"errands_accepted"`
	Rating          float64              `json:"rating"`
	RatingCount     int                  `json:"rating_count"`
	Role            valueobject.UserRole `json:"role"`
}
