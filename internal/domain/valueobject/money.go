package valueobject

import (
	"fmt"
	"math"

	"github.com/ignatzorin/errands-backend/internal/pkg/apperror"
)

// MinorUnitsFactor: множитель перевода суммы в минимальные единицы валюты (kobo).
const MinorUnitsFactor = 100

type Money struct {
	Amount   float64
	Currency string
}

func NewMoney(amount float64, currency string) (Money, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, apperror.BadRequest("сумма должна быть положительной")
	}
	if currency == "" {
		currency = "NGN"
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MinorUnits возвращает сумму в минимальных единицах с округлением до ближайшей.
func (m Money) MinorUnits() int64 {
	return ToMinorUnits(m.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %.2f", m.Currency, m.Amount)
}

func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * MinorUnitsFactor))
}

func FromMinorUnits(units int64) float64 {
	return float64(units) / MinorUnitsFactor
}
