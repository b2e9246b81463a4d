package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)

// Rating — оценка одного участника задания другим.
type Rating struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ErrandID   uuid.UUID `db:"errand_id" json:"errand_id"`
	FromUserID uuid.UUID `db:"from_user_id" json:"from_user_id"`
	ToUserID   uuid.UUID `db:"to_user_id" json:"to_user_id"`
	Score      int       `db:"score" json:"score"`
	Review     *string   `db:"review" json:"review,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RatingStats: агрегированная статистика оценок пользователя.
type RatingStats struct {
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"rating_distribution"`
}

// EmptyRatingStats возвращает нулевую статистику со всеми корзинами 1..5.
func EmptyRatingStats() RatingStats {
	dist := make(map[int]int, MaxRatingScore)
	for s := MinRatingScore; s <= MaxRatingScore; s++ {
		dist[s] = 0
	}
	return RatingStats{Distribution: dist}
}

// ComputeRatingStats считает среднее (с округлением до сотых) и гистограмму.
func ComputeRatingStats(scores []int) RatingStats {
	stats := EmptyRatingStats()
	if len(scores) == 0 {
		return stats
	}
	sum := 0
	for _, s := range scores {
		sum += s
		if s >= MinRatingScore && s <= MaxRatingScore {
			stats.Distribution[s]++
		}
	}
	stats.Count = len(scores)
	stats.Average = RoundScore(float64(sum) / float64(len(scores)))
	return stats
}

func RoundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
