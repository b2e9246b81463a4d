package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/errands-backend/internal/logger"
	"github.com/ignatzorin/errands-backend/internal/metrics"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/repository"
	"github.com/ignatzorin/errands-backend/internal/validation"
)

// EventNewMessage рассылается остальным участникам комнаты после сохранения сообщения.
const EventNewMessage = "new_message"

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByErrand(ctx context.Context, errandID uuid.UUID) ([]models.Message, error)
}

type MessageService struct {
	repo      MessageRepository
	errands   ErrandReader
	publisher RoomPublisher

	// Сохранение и рассылка в пределах задания идут под одной блокировкой,
	// чтобы порядок рассылки совпадал с порядком фиксации в базе.
	mu    sync.Mutex
	locks map[uuid.UUID]*errandLock
}

type errandLock struct {
	mu   sync.Mutex
	refs int
}

func NewMessageService(repo MessageRepository, errands ErrandReader) *MessageService {
	return &MessageService{
		repo:    repo,
		errands: errands,
		locks:   make(map[uuid.UUID]*errandLock),
	}
}

func (s *MessageService) SetPublisher(p RoomPublisher) {
	s.publisher = p
}

type SendMessageInput struct {
	ErrandID uuid.UUID
	SenderID uuid.UUID
	Text     string
	// OriginConnID: соединение отправителя, ему рассылка не дублируется.
	OriginConnID uuid.UUID
}

// Send сохраняет сообщение и рассылает его в комнату задания.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	if err := validation.ValidateMessageText(text); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}

	if _, err := s.requireParticipant(ctx, in.ErrandID, in.SenderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ErrandID: in.ErrandID,
		SenderID: in.SenderID,
		Text:     text,
	}

	unlock := s.lock(in.ErrandID)
	defer unlock()

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, apperror.Unavailable(err, "не удалось сохранить сообщение")
	}
	metrics.MessagesSentTotal.Inc()

	if s.publisher != nil {
		s.publisher.PublishToRoom(in.ErrandID, EventNewMessage, msg, in.OriginConnID)
	}

	logger.Log.WithFields(logrus.Fields{
		"errand_id":  in.ErrandID,
		"sender_id":  in.SenderID,
		"message_id": msg.ID,
	}).Debug("сообщение отправлено")
	return msg, nil
}

// History возвращает переписку по заданию в порядке создания.
func (s *MessageService) History(ctx context.Context, errandID, actorID uuid.UUID) ([]models.Message, error) {
	if _, err := s.requireParticipant(ctx, errandID, actorID); err != nil {
		return nil, err
	}

	msgs, err := s.repo.ListByErrand(ctx, errandID)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось получить сообщения")
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// AuthorizeJoin проверяет, что пользователь может войти в комнату задания.
func (s *MessageService) AuthorizeJoin(ctx context.Context, errandID, userID uuid.UUID) error {
	_, err := s.requireParticipant(ctx, errandID, userID)
	return err
}

func (s *MessageService) requireParticipant(ctx context.Context, errandID, userID uuid.UUID) (*models.Errand, error) {
	errand, err := s.errands.GetByID(ctx, errandID)
	if err != nil {
		if errors.Is(err, repository.ErrErrandNotFound) {
			return nil, apperror.ErrErrandNotFound
		}
		return nil, apperror.Unavailable(err, "хранилище заданий недоступно")
	}
	if !errand.RoleOf(userID).IsParticipant() {
		return nil, apperror.ErrNotParticipant
	}
	return errand, nil
}

// lock берёт блокировку задания и возвращает функцию освобождения.
// Запись удаляется из карты, когда её никто не держит.
func (s *MessageService) lock(errandID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[errandID]
	if !ok {
		l = &errandLock{}
		s.locks[errandID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, errandID)
		}
		s.mu.Unlock()
	}
}
