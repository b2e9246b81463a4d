package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/errands-backend/internal/dto"
	"github.com/ignatzorin/errands-backend/internal/http/handlers/common"
	"github.com/ignatzorin/errands-backend/internal/models"
	"github.com/ignatzorin/errands-backend/internal/service"
)

type RatingService interface {
	Submit(ctx context.Context, in service.SubmitRatingInput) (*models.Rating, error)
	Stats(ctx context.Context, userID uuid.UUID) (models.RatingStats, error)
	ListReceived(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Rating, error)
}

type RatingHandler struct {
	ratings RatingService
}

func NewRatingHandler(ratings RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Submit POST /ratings
func (h *RatingHandler) Submit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req dto.SubmitRatingRequest
	if err := common.BindJSON(c, &req); err != nil {
		c.Error(err)
		return
	}

	errandID, err := common.ParseUUIDField("errand_id", req.ErrandID)
	if err != nil {
		c.Error(err)
		return
	}
	toUserID, err := common.ParseUUIDField("to_user_id", req.ToUserID)
	if err != nil {
		c.Error(err)
		return
	}

	rating, err := h.ratings.Submit(c.Request.Context(), service.SubmitRatingInput{
		ErrandID:   errandID,
		FromUserID: userID,
		ToUserID:   toUserID,
		Score:      req.Score,
		Review:     req.Review,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, rating)
}

// Stats GET /ratings/stats/:userId
func (h *RatingHandler) Stats(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "userId")
	if err != nil {
		c.Error(err)
		return
	}

	stats, err := h.ratings.Stats(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListForUser GET /users/:id/ratings
func (h *RatingHandler) ListForUser(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var q dto.PageQuery
	_ = c.ShouldBindQuery(&q)

	ratings, err := h.ratings.ListReceived(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		c.Error(err)
		return
	}

	stats, err := h.ratings.Stats(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.UserRatingsResponse{Ratings: ratings, Stats: stats})
}
