package dto

import "time"

// CreateErrandRequest: тело POST /errands.
type CreateErrandRequest struct {
	Title           string            `json:"title" binding:"required"`
	Description     string            `json:"description" binding:"required"`
	Category        string            `json:"category" binding:"required"`
	Price           float64           `json:"price" binding:"required"`
	Tip             *float64          `json:"tip"`
	Urgency         string            `json:"urgency"`
	TimeWindowStart *time.Time        `json:"time_window_start"`
	TimeWindowEnd   *time.Time        `json:"time_window_end"`
	Locations       []LocationRequest `json:"locations" binding:"required,dive"`
	Media           []MediaRequest    `json:"media" binding:"omitempty,dive"`
}

type LocationRequest struct {
	Type      string   `json:"type" binding:"required"`
	Label     string   `json:"label" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type MediaRequest struct {
	URL        string  `json:"url" binding:"required"`
	ProviderID *string `json:"provider_id"`
	Type       string  `json:"type"`
}

// ListErrandsQuery: параметры GET /errands.
type ListErrandsQuery struct {
	Category string   `form:"category"`
	Status   string   `form:"status"`
	Urgency  string   `form:"urgency"`
	MinPrice *float64 `form:"minPrice"`
	MaxPrice *float64 `form:"maxPrice"`
	Search   string   `form:"search"`
	SortBy   string   `form:"sortBy"`
	Lat      *float64 `form:"lat"`
	Lng      *float64 `form:"lng"`
	Page     int      `form:"page"`
	Limit    int      `form:"limit"`
}

type UpdateErrandStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type InitializePaymentRequest struct {
	ErrandID string  `json:"errand_id" binding:"required,uuid"`
	Email    string  `json:"email" binding:"required"`
	Amount   float64 `json:"amount" binding:"required"`
}

type SubmitRatingRequest struct {
	ErrandID string  `json:"errand_id" binding:"required,uuid"`
	ToUserID string  `json:"to_user_id" binding:"required,uuid"`
	Score    int     `json:"score" binding:"required"`
	Review   *string `json:"review"`
}

// PageQuery: страница и размер страницы.
type PageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}
