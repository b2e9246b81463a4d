package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/repository/common"
)

var (
	ErrErrandNotFound = errors.New("errand not found")
	// ErrStatusConflict означает, что условная запись не применена, статус уже изменился.
	ErrStatusConflict = errors.New("errand status changed concurrently")
)

const errandColumns = `e.id, e.requester_id, e.runner_id, e.title, e.description, e.category, e.price, e.tip,
	e.status, e.urgency, e.eta_minutes, e.time_window_start, e.time_window_end, e.completed_at,
	e.created_at, e.updated_at`

const errandReturning = `RETURNING id, requester_id, runner_id, title, description, category, price, tip,
	status, urgency, eta_minutes, time_window_start, time_window_end, completed_at, created_at, updated_at`

// Формула гаверсинуса (км) от точки ($lat, $lng) до первой точки забора с координатами.
const distanceExpr = `6371 * 2 * ASIN(SQRT(
	POWER(SIN(RADIANS(pk.latitude - %[1]s) / 2), 2) +
	COS(RADIANS(%[1]s)) * COS(RADIANS(pk.latitude)) * POWER(SIN(RADIANS(pk.longitude - %[2]s) / 2), 2)))`

const firstPickupJoin = `LEFT JOIN LATERAL (
	SELECT l.latitude, l.longitude FROM errand_locations l
	WHERE l.errand_id = e.id AND l.type = 'pickup' AND l.latitude IS NOT NULL AND l.longitude IS NOT NULL
	ORDER BY l.position
	LIMIT 1
) pk ON TRUE`

type ErrandRepository struct {
	db *sqlx.DB
}

func NewErrandRepository(db *sqlx.DB) *ErrandRepository {
	return &ErrandRepository{db: db}
}

// Create сохраняет задание вместе с точками и вложениями в одной транзакции.
func (r *ErrandRepository) Create(ctx context.Context, errand *models.Errand) error {
	if errand.ID == uuid.Nil {
		errand.ID = uuid.New()
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		created, err := common.GetOne[models.Errand](ctx, tx, ErrErrandNotFound, `
			INSERT INTO errands (id, requester_id, title, description, category, price, tip, status, urgency,
				time_window_start, time_window_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`+errandReturning,
			errand.ID, errand.RequesterID, errand.Title, errand.Description, errand.Category, errand.Price,
			errand.Tip, valueobject.ErrandStatusOpen, errand.Urgency, errand.TimeWindowStart, errand.TimeWindowEnd,
		)
		if err != nil {
			return fmt.Errorf("errand repository: create %w", err)
		}

		locations := errand.Locations
		media := errand.Media
		*errand = *created

		if len(locations) > 0 {
			ins := common.NewRowBatch(tx, "errand_locations",
				[]string{"id", "errand_id", "type", "label", "latitude", "longitude", "position"}, 50)
			for i := range locations {
				loc := &locations[i]
				loc.ID = uuid.New()
				loc.ErrandID = errand.ID
				loc.Position = i
				if err := ins.Add(ctx, loc.ID, loc.ErrandID, loc.Type, loc.Label, loc.Latitude, loc.Longitude, loc.Position); err != nil {
					return fmt.Errorf("errand repository: create locations %w", err)
				}
			}
			if err := ins.Flush(ctx); err != nil {
				return fmt.Errorf("errand repository: create locations %w", err)
			}
		}

		if len(media) > 0 {
			now := time.Now().UTC()
			ins := common.NewRowBatch(tx, "errand_media",
				[]string{"id", "errand_id", "url", "provider_id", "type", "created_at"}, 50)
			for i := range media {
				m := &media[i]
				m.ID = uuid.New()
				m.ErrandID = errand.ID
				m.CreatedAt = now
				if err := ins.Add(ctx, m.ID, m.ErrandID, m.URL, m.ProviderID, m.Type, m.CreatedAt); err != nil {
					return fmt.Errorf("errand repository: create media %w", err)
				}
			}
			if err := ins.Flush(ctx); err != nil {
				return fmt.Errorf("errand repository: create media %w", err)
			}
		}

		errand.Locations = locations
		errand.Media = media
		return nil
	})
}

// GetByID возвращает задание без дочерних записей.
func (r *ErrandRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Errand, error) {
	errand, err := common.GetOne[models.Errand](ctx, r.db, ErrErrandNotFound,
		`SELECT `+errandColumns+` FROM errands e WHERE e.id = $1`, id)
	if err != nil && !errors.Is(err, ErrErrandNotFound) {
		return nil, fmt.Errorf("errand repository: get by id %w", err)
	}
	return errand, err
}

// GetDetails возвращает задание вместе с точками и вложениями.
func (r *ErrandRepository) GetDetails(ctx context.Context, id uuid.UUID) (*models.Errand, error) {
	errand, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items := []models.Errand{*errand}
	if err := r.attachChildren(ctx, items); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// List возвращает страницу заданий по фильтру и общее количество совпадений.
func (r *ErrandRepository) List(ctx context.Context, filter models.ErrandFilter, limit, offset int) ([]models.Errand, int, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != nil {
		where = append(where, "e.category = "+arg(*filter.Category))
	}
	if filter.Status != nil {
		where = append(where, "e.status = "+arg(*filter.Status))
	}
	if filter.Urgency != nil {
		where = append(where, "e.urgency = "+arg(*filter.Urgency))
	}
	if filter.MinPrice != nil {
		where = append(where, "e.price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		where = append(where, "e.price <= "+arg(*filter.MaxPrice))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		p := arg("%" + escapeLike(s) + "%")
		where = append(where, fmt.Sprintf("(e.title ILIKE %[1]s OR e.description ILIKE %[1]s)", p))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM errands e`+whereSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("errand repository: count %w", err)
	}
	if total == 0 {
		return []models.Errand{}, 0, nil
	}

	join := ""
	orderBy := "e.created_at DESC, e.id"
	switch filter.SortBy {
	case models.SortPriceHigh:
		orderBy = "e.price DESC, e.created_at DESC"
	case models.SortPriceLow:
		orderBy = "e.price ASC, e.created_at DESC"
	case models.SortDistance:
		if filter.OriginLat != nil && filter.OriginLng != nil {
			join = " " + firstPickupJoin
			dist := fmt.Sprintf(distanceExpr, arg(*filter.OriginLat)+"::float8", arg(*filter.OriginLng)+"::float8")
			orderBy = dist + " ASC NULLS LAST, e.created_at DESC"
		}
	}

	query := `SELECT ` + errandColumns + ` FROM errands e` + join + whereSQL +
		" ORDER BY " + orderBy + " LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	items := []models.Errand{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("errand repository: list %w", err)
	}

	if err := r.attachChildren(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByParticipant возвращает задания, где пользователь заказчик или исполнитель.
func (r *ErrandRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]models.Errand, error) {
	var items []models.Errand
	query := `SELECT ` + errandColumns + ` FROM errands e
		WHERE e.requester_id = $1 OR e.runner_id = $1
		ORDER BY e.created_at DESC`
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("errand repository: list by participant %w", err)
	}
	if err := r.attachChildren(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// CountByParticipant считает задания, созданные пользователем и взятые им в работу.
func (r *ErrandRepository) CountByParticipant(ctx context.Context, userID uuid.UUID) (posted, accepted int, err error) {
	var counts struct {
		Posted   int `db:"posted"`
		Accepted int `db:"accepted"`
	}
	if err := r.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) FILTER (WHERE requester_id = $1) AS posted,
		       COUNT(*) FILTER (WHERE runner_id = $1) AS accepted
		FROM errands
		WHERE requester_id = $1 OR runner_id = $1`, userID); err != nil {
		return 0, 0, fmt.Errorf("errand repository: count by participant %w", err)
	}
	return counts.Posted, counts.Accepted, nil
}

// Accept назначает исполнителя, только если задание всё ещё открыто.
// Из параллельных попыток применяется ровно одна, остальные получают ErrStatusConflict.
func (r *ErrandRepository) Accept(ctx context.Context, id, runnerID uuid.UUID, etaMinutes int) (*models.Errand, error) {
	errand, err := common.GetOne[models.Errand](ctx, r.db, ErrStatusConflict, `
		UPDATE errands
		SET status = $2, runner_id = $3, eta_minutes = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5 AND requester_id <> $3
		`+errandReturning,
		id, valueobject.ErrandStatusAccepted, runnerID, etaMinutes, valueobject.ErrandStatusOpen)
	if err != nil && !errors.Is(err, ErrStatusConflict) {
		return nil, fmt.Errorf("errand repository: accept %w", err)
	}
	return errand, err
}

// TransitionStatus переводит задание из from в to, если текущий статус всё ещё from.
// Переход в completed проставляет completed_at.
func (r *ErrandRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to valueobject.ErrandStatus) (*models.Errand, error) {
	errand, err := common.GetOne[models.Errand](ctx, r.db, ErrStatusConflict, `
		UPDATE errands
		SET status = $3,
		    completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		`+errandReturning,
		id, from, to)
	if err != nil && !errors.Is(err, ErrStatusConflict) {
		return nil, fmt.Errorf("errand repository: transition %s->%s %w", from, to, err)
	}
	return errand, err
}

// attachChildren подгружает точки и вложения для набора заданий двумя запросами.
func (r *ErrandRepository) attachChildren(ctx context.Context, items []models.Errand) error {
	if len(items) == 0 {
		return nil
	}

	ids := make(pq.StringArray, len(items))
	index := make(map[uuid.UUID]int, len(items))
	for i, e := range items {
		ids[i] = e.ID.String()
		index[e.ID] = i
	}

	var locations []models.Location
	if err := r.db.SelectContext(ctx, &locations, `
		SELECT id, errand_id, type, label, latitude, longitude, position
		FROM errand_locations WHERE errand_id = ANY($1::uuid[])
		ORDER BY errand_id, position`, ids); err != nil {
		return fmt.Errorf("errand repository: load locations %w", err)
	}
	for _, l := range locations {
		i := index[l.ErrandID]
		items[i].Locations = append(items[i].Locations, l)
	}

	var media []models.MediaAttachment
	if err := r.db.SelectContext(ctx, &media, `
		SELECT id, errand_id, url, provider_id, type, created_at
		FROM errand_media WHERE errand_id = ANY($1::uuid[])
		ORDER BY errand_id, created_at`, ids); err != nil {
		return fmt.Errorf("errand repository: load media %w", err)
	}
	for _, m := range media {
		i := index[m.ErrandID]
		items[i].Media = append(items[i].Media, m)
	}

	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
