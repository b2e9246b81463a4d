package dto

import "github.com/ignatzorin/errands-backend/internal/models"

// ErrorResponse: тело ответа с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrandListResponse: страница заданий с метаданными пагинации.
type ErrandListResponse struct {
	Items []models.Errand `json:"items"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
	Pages int             `json:"pages"`
}

func NewErrandListResponse(page *models.ErrandPage) ErrandListResponse {
	items := page.Items
	if items == nil {
		items = []models.Errand{}
	}
	pages := 0
	if page.Limit > 0 {
		pages = (page.Total + page.Limit - 1) / page.Limit
	}
	return ErrandListResponse{Items: items, Total: page.Total, Page: page.Page, Limit: page.Limit, Pages: pages}
}

// WebhookAck: ответ шлюзу на принятый вебхук.
type WebhookAck struct {
	Received bool `json:"received"`
}

type UserRatingsResponse struct {
	Ratings []models.Rating    `json:"ratings"`
	Stats   models.RatingStats `json:"stats"`
}
