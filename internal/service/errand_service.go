package service

import (
	"context"
	"errors"
	"strings"
	"time"

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

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// EventErrandUpdated рассылается в комнату задания при смене статуса.
const EventErrandUpdated = "errand_updated"

type ErrandRepository interface {
	Create(ctx context.Context, errand *models.Errand) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Errand, error)
	GetDetails(ctx context.Context, id uuid.UUID) (*models.Errand, error)
	List(ctx context.Context, filter models.ErrandFilter, limit, offset int) ([]models.Errand, int, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Errand, error)
	Accept(ctx context.Context, id, runnerID uuid.UUID, etaMinutes int) (*models.Errand, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ErrandStatus) (*models.Errand, error)
}

// EscrowLedger: то, что жизненному циклу задания нужно от платежей.
type EscrowLedger interface {
	HasSettledEscrow(ctx context.Context, errandID uuid.UUID) (bool, error)
	RecordPayout(ctx context.Context, errand *models.Errand) error
	RecordRefund(ctx context.Context, errand *models.Errand) error
}

// RoomPublisher рассылает событие участникам комнаты задания, кроме соединения exclude.
type RoomPublisher interface {
	PublishToRoom(errandID uuid.UUID, event string, data interface{}, exclude uuid.UUID)
}

type ErrandServiceConfig struct {
	DefaultETAMinutes        int
	RequireEscrowBeforeStart bool
}

type ErrandService struct {
	repo      ErrandRepository
	ledger    EscrowLedger
	publisher RoomPublisher
	cfg       ErrandServiceConfig
	now       func() time.Time
}

func NewErrandService(repo ErrandRepository, cfg ErrandServiceConfig) *ErrandService {
	if cfg.DefaultETAMinutes <= 0 {
		cfg.DefaultETAMinutes = models.DefaultETAMinutes
	}
	return &ErrandService{repo: repo, cfg: cfg, now: time.Now}
}

// SetLedger подключает учёт платежей. PaymentService сам зависит от заданий, поэтому связь задаётся после создания.
func (s *ErrandService) SetLedger(ledger EscrowLedger) {
	s.ledger = ledger
}

// SetPublisher подключает рассылку событий в комнаты заданий.
func (s *ErrandService) SetPublisher(p RoomPublisher) {
	s.publisher = p
}

type LocationInput struct {
	Type      valueobject.LocationType
	Label     string
	Latitude  *float64
	Longitude *float64
}

type MediaInput struct {
	URL        string
	ProviderID *string
	Type       valueobject.MediaType
}

type CreateErrandInput struct {
	Title           string
	Description     string
	Category        valueobject.ErrandCategory
	Price           float64
	Tip             *float64
	Urgency         valueobject.Urgency
	TimeWindowStart *time.Time
	TimeWindowEnd   *time.Time
	Locations       []LocationInput
	Media           []MediaInput
}

// Create публикует новое задание в статусе open.
func (s *ErrandService) Create(ctx context.Context, requesterID uuid.UUID, in CreateErrandInput) (*models.Errand, error) {
	errand, err := buildErrand(requesterID, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, errand); err != nil {
		return nil, apperror.Unavailable(err, "не удалось создать задание")
	}

	logger.Log.WithFields(logrus.Fields{
		"errand_id":    errand.ID,
		"requester_id": requesterID,
		"category":     errand.Category,
	}).Info("задание создано")
	return errand, nil
}

func buildErrand(requesterID uuid.UUID, in CreateErrandInput) (*models.Errand, error) {
	if err := validation.ValidateErrandText(in.Title, in.Description); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if err := validation.ValidatePrice(in.Price, in.Tip); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if !in.Category.IsValid() {
		return nil, apperror.BadRequest("некорректная категория задания")
	}
	if in.Urgency == "" {
		in.Urgency = valueobject.UrgencyMedium
	}
	if !in.Urgency.IsValid() {
		return nil, apperror.BadRequest("некорректная срочность задания")
	}
	if err := validation.ValidateTimeWindow(in.TimeWindowStart, in.TimeWindowEnd); err != nil {
		return nil, apperror.BadRequest(err.Error())
	}
	if len(in.Locations) == 0 {
		return nil, apperror.BadRequest("нужна хотя бы одна точка маршрута")
	}
	if len(in.Locations) > validation.MaxLocationsCount {
		return nil, apperror.BadRequest("слишком много точек маршрута")
	}
	if len(in.Media) > validation.MaxMediaCount {
		return nil, apperror.BadRequest("слишком много вложений")
	}

	errand := &models.Errand{
		RequesterID:     requesterID,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Category:        in.Category,
		Price:           in.Price,
		Tip:             in.Tip,
		Status:          valueobject.ErrandStatusOpen,
		Urgency:         in.Urgency,
		TimeWindowStart: in.TimeWindowStart,
		TimeWindowEnd:   in.TimeWindowEnd,
	}

	for _, l := range in.Locations {
		if !l.Type.IsValid() {
			return nil, apperror.BadRequest("тип точки должен быть pickup или dropoff")
		}
		if err := validation.ValidateLocationLabel(l.Label); err != nil {
			return nil, apperror.BadRequest(err.Error())
		}
		if err := validation.ValidateCoordinates(l.Latitude, l.Longitude); err != nil {
			return nil, apperror.BadRequest(err.Error())
		}
		errand.Locations = append(errand.Locations, models.Location{
			Type:      l.Type,
			Label:     strings.TrimSpace(l.Label),
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
		})
	}

	for _, m := range in.Media {
		if m.Type == "" {
			m.Type = valueobject.MediaImage
		}
		if !m.Type.IsValid() {
			return nil, apperror.BadRequest("некорректный тип вложения")
		}
		if err := validation.ValidateURL("url вложения", m.URL); err != nil {
			return nil, apperror.BadRequest(err.Error())
		}
		errand.Media = append(errand.Media, models.MediaAttachment{URL: m.URL, ProviderID: m.ProviderID, Type: m.Type})
	}

	return errand, nil
}

// Get возвращает задание с точками и вложениями.
func (s *ErrandService) Get(ctx context.Context, id uuid.UUID) (*models.Errand, error) {
	errand, err := s.repo.GetDetails(ctx, id)
	if err != nil {
		return nil, mapErrandErr(err)
	}
	return errand, nil
}

// NormalizePage приводит страницу и лимит к допустимым значениям.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// FindVisible возвращает страницу заданий по фильтру.
func (s *ErrandService) FindVisible(ctx context.Context, filter models.ErrandFilter, page, limit int) (*models.ErrandPage, error) {
	page, limit = NormalizePage(page, limit)

	switch filter.SortBy {
	case "":
		filter.SortBy = models.SortNewest
	case models.SortNewest, models.SortPriceHigh, models.SortPriceLow:
	case models.SortDistance:
		if filter.OriginLat == nil || filter.OriginLng == nil {
			return nil, apperror.BadRequest("для сортировки по расстоянию нужны lat и lng")
		}
		if err := validation.ValidateCoordinates(filter.OriginLat, filter.OriginLng); err != nil {
			return nil, apperror.BadRequest(err.Error())
		}
	default:
		return nil, apperror.BadRequest("некорректный параметр сортировки")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, apperror.BadRequest("minPrice не может превышать maxPrice")
	}

	items, total, err := s.repo.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось получить список заданий")
	}
	return &models.ErrandPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// ListMine возвращает задания, где пользователь заказчик или исполнитель.
func (s *ErrandService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Errand, error) {
	items, err := s.repo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, apperror.Unavailable(err, "не удалось получить задания")
	}
	return items, nil
}

// Accept назначает исполнителя. Из параллельных попыток успешна ровно одна.
func (s *ErrandService) Accept(ctx context.Context, id, actorID uuid.UUID, actorRole valueobject.UserRole) (*models.Errand, error) {
	errand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErrandErr(err)
	}

	if errand.Status != valueobject.ErrandStatusOpen {
		metrics.AcceptConflictsTotal.Inc()
		return nil, apperror.Conflict("задание уже не доступно для принятия")
	}
	if errand.RequesterID == actorID {
		return nil, apperror.Forbidden("нельзя принять собственное задание")
	}
	if !actorRole.CanRun() {
		return nil, apperror.Forbidden("заказчик не может выполнять задания")
	}

	accepted, err := s.repo.Accept(ctx, id, actorID, s.cfg.DefaultETAMinutes)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.AcceptConflictsTotal.Inc()
			return nil, apperror.Conflict("задание уже принято другим исполнителем")
		}
		return nil, mapErrandErr(err)
	}

	s.afterTransition(ctx, accepted, valueobject.ErrandStatusOpen)
	return accepted, nil
}

// UpdateStatus применяет переход, разрешённый таблицей переходов.
// В accepted задание попадает только через Accept, отмена идёт через Cancel.
func (s *ErrandService) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus valueobject.ErrandStatus, actorID uuid.UUID) (*models.Errand, error) {
	if !newStatus.IsValid() {
		return nil, apperror.BadRequest("некорректный статус задания")
	}

	errand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErrandErr(err)
	}
	if !errand.RoleOf(actorID).IsParticipant() {
		return nil, apperror.Forbidden("менять статус могут только заказчик или исполнитель")
	}

	switch newStatus {
	case valueobject.ErrandStatusCancelled:
		return s.cancel(ctx, errand, actorID)
	case valueobject.ErrandStatusAccepted:
		return nil, invalidTransition(errand.Status, newStatus, "задание принимается только через accept")
	}

	if !errand.Status.CanTransitionTo(newStatus) {
		return nil, invalidTransition(errand.Status, newStatus, "")
	}

	if newStatus == valueobject.ErrandStatusInProgress && s.cfg.RequireEscrowBeforeStart && s.ledger != nil {
		paid, err := s.ledger.HasSettledEscrow(ctx, errand.ID)
		if err != nil {
			return nil, apperror.Unavailable(err, "не удалось проверить оплату")
		}
		if !paid {
			return nil, apperror.InvalidState("задание нельзя начать до оплаты")
		}
	}

	updated, err := s.repo.TransitionStatus(ctx, errand.ID, errand.Status, newStatus)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperror.Conflict("статус задания изменился, повторите запрос")
		}
		return nil, mapErrandErr(err)
	}

	s.afterTransition(ctx, updated, errand.Status)
	return updated, nil
}

// Cancel отменяет задание. Отменить может только заказчик, завершённое задание не отменяется.
func (s *ErrandService) Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.Errand, error) {
	errand, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapErrandErr(err)
	}
	return s.cancel(ctx, errand, actorID)
}

func (s *ErrandService) cancel(ctx context.Context, errand *models.Errand, actorID uuid.UUID) (*models.Errand, error) {
	// Сначала статус: завершённое задание не отменяется никем.
	if !errand.Status.CanTransitionTo(valueobject.ErrandStatusCancelled) {
		return nil, invalidTransition(errand.Status, valueobject.ErrandStatusCancelled, "")
	}
	if errand.RequesterID != actorID {
		return nil, apperror.Forbidden("отменить задание может только заказчик")
	}

	// runner_id не сбрасывается: после отмены он остаётся только историей.
	updated, err := s.repo.TransitionStatus(ctx, errand.ID, errand.Status, valueobject.ErrandStatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperror.Conflict("статус задания изменился, повторите запрос")
		}
		return nil, mapErrandErr(err)
	}

	s.afterTransition(ctx, updated, errand.Status)
	return updated, nil
}

// afterTransition выполняет побочные действия перехода. Ошибки учёта платежей
// только логируются и не откатывают смену статуса.
func (s *ErrandService) afterTransition(ctx context.Context, errand *models.Errand, from valueobject.ErrandStatus) {
	metrics.ErrandTransitionsTotal.WithLabelValues(string(errand.Status)).Inc()

	log := logger.Log.WithFields(logrus.Fields{
		"errand_id": errand.ID,
		"from":      from,
		"to":        errand.Status,
	})
	log.Info("статус задания изменён")

	if s.ledger != nil {
		var err error
		switch errand.Status {
		case valueobject.ErrandStatusCompleted:
			err = s.ledger.RecordPayout(ctx, errand)
		case valueobject.ErrandStatusCancelled:
			err = s.ledger.RecordRefund(ctx, errand)
		}
		if err != nil {
			log.WithError(err).Error("не удалось записать выплату или возврат")
		}
	}

	if s.publisher != nil {
		s.publisher.PublishToRoom(errand.ID, EventErrandUpdated, errand, uuid.Nil)
	}
}

func invalidTransition(from, to valueobject.ErrandStatus, reason string) error {
	msg := "недопустимый переход статуса: " + string(from) + " -> " + string(to)
	if reason != "" {
		msg += " (" + reason + ")"
	}
	return apperror.InvalidState(msg)
}

func mapErrandErr(err error) error {
	if errors.Is(err, repository.ErrErrandNotFound) {
		return apperror.ErrErrandNotFound
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Unavailable(err, "хранилище заданий недоступно")
}
