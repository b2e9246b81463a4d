package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/repository"
)

type ParticipationCounter interface {
	CountByParticipant(ctx context.Context, userID uuid.UUID) (posted, accepted int, err error)
}

type UserService struct {
	users   UserReader
	errands ParticipationCounter
}

func NewUserService(users UserReader, errands ParticipationCounter) *UserService {
	return &UserService{users: users, errands: errands}
}

// Stats возвращает число размещённых и взятых заданий вместе с рейтингом пользователя.
func (s *UserService) Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.NotFound("пользователь не найден")
		}
		return nil, apperror.Unavailable(err, "хранилище пользователей недоступно")
	}

	posted, accepted, err := s.errands.CountByParticipant(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось посчитать задания")
	}

	return &models.UserStats{
		ErrandsPosted:   posted,
		ErrandsAccepted: accepted,
		Rating:          user.RatingAvg,
		RatingCount:     user.RatingCount,
		Role:            user.Role,
	}, nil
}
