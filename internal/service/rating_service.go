package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/metrics"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/repository"
	"github.com/ignatzorin/errands-backend/internal/validation"
)

type RatingRepository interface {
	CreateAndRecompute(ctx context.Context, rating *models.Rating) error
	FindByErrandAndRater(ctx context.Context, errandID, fromUserID uuid.UUID) (*models.Rating, error)
	ScoresFor(ctx context.Context, userID uuid.UUID) ([]int, error)
	ListByRecipient(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Rating, error)
}

type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// StatsCache хранит посчитанную статистику оценок. Реализации: Redis и память процесса.
type StatsCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.RatingStats, bool, error)
	Set(ctx context.Context, userID uuid.UUID, stats models.RatingStats) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type RatingService struct {
	repo    RatingRepository
	errands ErrandReader
	users   UserReader
	cache   StatsCache
}

func NewRatingService(repo RatingRepository, errands ErrandReader, users UserReader, cache StatsCache) *RatingService {
	return &RatingService{repo: repo, errands: errands, users: users, cache: cache}
}

type SubmitRatingInput struct {
	ErrandID   uuid.UUID
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
	Score      int
	Review     *string
}

// Submit сохраняет оценку второй стороне завершённого задания
// и пересчитывает её средний балл.
func (s *RatingService) Submit(ctx context.Context, in SubmitRatingInput) (*models.Rating, error) {
	if in.Score < models.MinRatingScore || in.Score > models.MaxRatingScore {
		return nil, apperror.BadRequest("оценка должна быть от 1 до 5")
	}
	if in.Review != nil {
		review := strings.TrimSpace(*in.Review)
		if review == "" {
			in.Review = nil
		} else {
			in.Review = &review
		}
	}
	if err := validation.ValidateReview(in.Review); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	errand, err := s.errands.GetByID(ctx, in.ErrandID)
	if err != nil {
		return nil, mapErrandErr(err)
	}
	if errand.Status != valueobject.ErrandStatusCompleted {
		return nil, apperror.InvalidState("оценить можно только завершённое задание")
	}
	if !errand.RoleOf(in.FromUserID).IsParticipant() {
		return nil, apperror.ErrNotParticipant
	}
	if in.ToUserID == in.FromUserID {
		return nil, apperror.BadRequest("нельзя оценить самого себя")
	}
	if other, ok := errand.Counterpart(in.FromUserID); !ok || other != in.ToUserID {
		return nil, apperror.BadRequest("оценить можно только вторую сторону задания")
	}

	existing, err := s.repo.FindByErrandAndRater(ctx, in.ErrandID, in.FromUserID)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось проверить оценку")
	}
	if existing != nil {
		return nil, apperror.Conflict("вы уже оценили это задание")
	}

	rating := &models.Rating{
		ErrandID:   in.ErrandID,
		FromUserID: in.FromUserID,
		ToUserID:   in.ToUserID,
		Score:      in.Score,
		Review:     in.Review,
	}
	if err := s.repo.CreateAndRecompute(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrRatingExists) {
			return nil, apperror.Conflict("вы уже оценили это задание")
		}
		return nil, apperror.Unavailable(err, "не удалось сохранить оценку")
	}
	metrics.RatingsSubmittedTotal.Inc()

	log := logger.Log.WithFields(logrus.Fields{
		"errand_id": in.ErrandID,
		"from":      in.FromUserID,
		"to":        in.ToUserID,
		"score":     in.Score,
	})
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, in.ToUserID); err != nil {
			log.WithError(err).Warn("не удалось сбросить кэш статистики оценок")
		}
	}
	log.Info("оценка сохранена")
	return rating, nil
}

// Stats возвращает средний балл, число оценок и распределение по баллам.
// Для пользователя без оценок отдаётся нулевая статистика.
func (s *RatingService) Stats(ctx context.Context, userID uuid.UUID) (models.RatingStats, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			logger.Log.WithError(err).Warn("кэш статистики оценок недоступен")
		} else if ok && s.cachedStatsFresh(ctx, userID, cached) {
			return *cached, nil
		}
	}

	scores, err := s.repo.ScoresFor(ctx, userID)
	if err != nil {
		return models.RatingStats{}, apperror.Unavailable(err, "не удалось посчитать статистику оценок")
	}
	stats := models.ComputeRatingStats(scores)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, stats); err != nil {
			logger.Log.WithError(err).Warn("не удалось сохранить статистику оценок в кэш")
		}
	}
	return stats, nil
}

// cachedStatsFresh сверяет закэшированную статистику со счётчиком оценок в профиле.
// Счётчик обновляется в той же транзакции, что и вставка оценки, поэтому запись,
// сохранённая чтением, обогнавшим Submit, здесь отбрасывается.
func (s *RatingService) cachedStatsFresh(ctx context.Context, userID uuid.UUID, cached *models.RatingStats) bool {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return errors.Is(err, repository.ErrUserNotFound) && cached.Count == 0
	}
	return user.RatingCount == cached.Count
}

// ListReceived возвращает оценки, полученные пользователем, новые первыми.
func (s *RatingService) ListReceived(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Rating, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.NotFound("пользователь не найден")
		}
		return nil, apperror.Unavailable(err, "хранилище пользователей недоступно")
	}

	page, limit = NormalizePage(page, limit)
	ratings, err := s.repo.ListByRecipient(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось получить оценки")
	}
	return ratings, nil
}
