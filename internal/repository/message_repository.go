package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/repository/common"
)

type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create сохраняет сообщение после всех предыдущих сообщений задания.
// Транзакционная advisory-блокировка по заданию сериализует запись, а время
// создания не меньше времени последнего сообщения, даже если часы сдвинулись.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, msg.ErrandID.String()); err != nil {
			return fmt.Errorf("message repository: lock errand %w", err)
		}

		err := tx.QueryRowxContext(ctx, `
			INSERT INTO messages (id, errand_id, sender_id, text, created_at)
			SELECT $1, $2, $3, $4, GREATEST(clock_timestamp(), COALESCE(MAX(created_at), '-infinity'))
			FROM messages WHERE errand_id = $2
			RETURNING seq, created_at`,
			msg.ID, msg.ErrandID, msg.SenderID, msg.Text,
		).Scan(&msg.Seq, &msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("message repository: create %w", err)
		}
		return nil
	})
}

// ListByErrand возвращает всю переписку задания в порядке отправки.
func (r *MessageRepository) ListByErrand(ctx context.Context, errandID uuid.UUID) ([]models.Message, error) {
	messages := []models.Message{}
	if err := r.db.SelectContext(ctx, &messages, `
		SELECT id, errand_id, sender_id, text, seq, created_at
		FROM messages WHERE errand_id = $1
		ORDER BY created_at, seq`, errandID); err != nil {
		return nil, fmt.Errorf("message repository: list %w", err)
	}
	return messages, nil
}
