package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/domain/valueobject"
	"github.com/ignatzorin/errands-backend/internal/dto"
	"github.com/ignatzorin/errands-backend/internal/http/handlers/common"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
	"github.com/ignatzorin/errands-backend/internal/service"
)

type ErrandService interface {
	Create(ctx context.Context, requesterID uuid.UUID, in service.CreateErrandInput) (*models.Errand, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Errand, error)
	FindVisible(ctx context.Context, filter models.ErrandFilter, page, limit int) (*models.ErrandPage, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]models.Errand, error)
	Accept(ctx context.Context, id, actorID uuid.UUID, actorRole valueobject.UserRole) (*models.Errand, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus valueobject.ErrandStatus, actorID uuid.UUID) (*models.Errand, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID) (*models.Errand, error)
}

type ErrandHandler struct {
	errands ErrandService
}

func NewErrandHandler(errands ErrandService) *ErrandHandler {
	return &ErrandHandler{errands: errands}
}

// Create POST /errands
func (h *ErrandHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.CreateErrandRequest
	if err := common.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	errand, err := h.errands.Create(c.Request.Context(), userID, createErrandInput(req))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, errand)
}

func createErrandInput(req dto.CreateErrandRequest) service.CreateErrandInput {
	in := service.CreateErrandInput{
		Title:           req.Title,
		Description:     req.Description,
		Category:        valueobject.ErrandCategory(req.Category),
		Price:           req.Price,
		Tip:             req.Tip,
		Urgency:         valueobject.Urgency(req.Urgency),
		TimeWindowStart: req.TimeWindowStart,
		TimeWindowEnd:   req.TimeWindowEnd,
	}
	for _, l := range req.Locations {
		in.Locations = append(in.Locations, service.LocationInput{
			Type:      valueobject.LocationType(l.Type),
			Label:     l.Label,
			Latitude:  l.Latitude,
			Longitude: l.Longitude,
		})
	}
	for _, m := range req.Media {
		in.Media = append(in.Media, service.MediaInput{
			URL:        m.URL,
			ProviderID: m.ProviderID,
			Type:       valueobject.MediaType(m.Type),
		})
	}
	return in
}

// List GET /errands
func (h *ErrandHandler) List(c *gin.Context) {
	var q dto.ListErrandsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.Error(apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректные параметры фильтра"))
		return
	}

	filter, err := errandFilter(q)
	if err != nil {
		c.Error(err)
		return
	}

	page, err := h.errands.FindVisible(c.Request.Context(), filter, q.Page, q.Limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewErrandListResponse(page))
}

func errandFilter(q dto.ListErrandsQuery) (models.ErrandFilter, error) {
	filter := models.ErrandFilter{
		MinPrice:  q.MinPrice,
		MaxPrice:  q.MaxPrice,
		Search:    q.Search,
		SortBy:    q.SortBy,
		OriginLat: q.Lat,
		OriginLng: q.Lng,
	}
	if q.Category != "" {
		category := valueobject.ErrandCategory(q.Category)
		if !category.IsValid() {
			return filter, apperror.BadRequest("некорректная категория")
		}
		filter.Category = &category
	}
	if q.Status != "" {
		status, err := valueobject.NewErrandStatus(q.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if q.Urgency != "" {
		urgency := valueobject.Urgency(q.Urgency)
		if !urgency.IsValid() {
			return filter, apperror.BadRequest("некорректная срочность")
		}
		filter.Urgency = &urgency
	}
	if (q.MinPrice != nil && *q.MinPrice < 0) || (q.MaxPrice != nil && *q.MaxPrice < 0) {
		return filter, apperror.BadRequest("цена в фильтре не может быть отрицательной")
	}
	return filter, nil
}

// ListMine GET /errands/my
func (h *ErrandHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	items, err := h.errands.ListMine(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get GET /errands/:id
func (h *ErrandHandler) Get(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	errand, err := h.errands.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, errand)
}

// Accept PATCH /errands/:id/accept
func (h *ErrandHandler) Accept(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	errand, err := h.errands.Accept(c.Request.Context(), id, userID, common.CurrentUserRole(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, errand)
}

// UpdateStatus PATCH /errands/:id/status
func (h *ErrandHandler) UpdateStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.UpdateErrandStatusRequest
	if err := common.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	errand, err := h.errands.UpdateStatus(c.Request.Context(), id, valueobject.ErrandStatus(req.Status), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, errand)
}

// Cancel DELETE /errands/:id
func (h *ErrandHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	errand, err := h.errands.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, errand)
}
