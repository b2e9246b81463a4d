package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/repository/common"
)

var ErrRatingExists = errors.New("rating already submitted")

const ratingUniqueConstraint = "uq_ratings_errand_from"

type RatingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// CreateAndRecompute сохраняет оценку и пересчитывает средний балл получателя
// по всем его оценкам. Строка пользователя блокируется на время транзакции,
// поэтому параллельные оценки одному пользователю не теряют пересчёт.
func (r *RatingRepository) CreateAndRecompute(ctx context.Context, rating *models.Rating) error {
	if rating.ID == uuid.Nil {
		rating.ID = uuid.New()
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, rating.ToUserID); err != nil {
			return fmt.Errorf("rating repository: lock user %w", err)
		}

		err := tx.QueryRowxContext(ctx, `
			INSERT INTO ratings (id, errand_id, from_user_id, to_user_id, score, review)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			rating.ID, rating.ErrandID, rating.FromUserID, rating.ToUserID, rating.Score, rating.Review,
		).Scan(&rating.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err, ratingUniqueConstraint) {
				return ErrRatingExists
			}
			return fmt.Errorf("rating repository: create %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users u
			SET rating_avg = agg.avg, rating_count = agg.cnt, updated_at = NOW()
			FROM (
				SELECT ROUND(AVG(score)::numeric, 2) AS avg, COUNT(*) AS cnt
				FROM ratings WHERE to_user_id = $1
			) agg
			WHERE u.id = $1`, rating.ToUserID); err != nil {
			return fmt.Errorf("rating repository: recompute aggregate %w", err)
		}
		return nil
	})
}

// FindByErrandAndRater возвращает оценку пользователя по заданию или nil.
func (r *RatingRepository) FindByErrandAndRater(ctx context.Context, errandID, fromUserID uuid.UUID) (*models.Rating, error) {
	rating, err := common.GetOne[models.Rating](ctx, r.db, common.ErrNotFound,
		`SELECT * FROM ratings WHERE errand_id = $1 AND from_user_id = $2`, errandID, fromUserID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rating repository: find by errand %w", err)
	}
	return rating, nil
}

// ScoresFor возвращает все баллы, полученные пользователем.
func (r *RatingRepository) ScoresFor(ctx context.Context, userID uuid.UUID) ([]int, error) {
	scores := []int{}
	if err := r.db.SelectContext(ctx, &scores, `SELECT score FROM ratings WHERE to_user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("rating repository: scores %w", err)
	}
	return scores, nil
}

// ListByRecipient возвращает оценки о пользователе, новые первыми.
func (r *RatingRepository) ListByRecipient(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Rating, error) {
	ratings := []models.Rating{}
	err := r.db.SelectContext(ctx, &ratings, `
		SELECT * FROM ratings WHERE to_user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("rating repository: list %w", err)
	}
	return ratings, nil
}
