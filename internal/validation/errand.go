package validation

import (
	"fmt"
	"math"
	"strings"
)

// ValidateErrandText проверяет заголовок и описание задания.
func ValidateErrandText(title, description string) error {
	if err := ValidateLength("заголовок", strings.TrimSpace(title), MinErrandTitleLength, MaxErrandTitleLength); err != nil {
		return err
	}
	return ValidateLength("описание", strings.TrimSpace(description), MinErrandDescriptionLength, MaxErrandDescriptionLength)
}

// ValidatePrice проверяет цену и необязательные чаевые.
func ValidatePrice(price float64, tip *float64) error {
	if math.IsNaN(price) || price < MinPrice || price > MaxPrice {
		return fmt.Errorf("цена должна быть от %.0f до %.0f", MinPrice, MaxPrice)
	}
	if tip != nil && (math.IsNaN(*tip) || *tip < 0 || *tip > MaxPrice) {
		return fmt.Errorf("чаевые не могут быть отрицательными")
	}
	return nil
}

// ValidateCoordinates проверяет пару координат: обе заданы или обе отсутствуют.
func ValidateCoordinates(lat, lng *float64) error {
	if lat == nil && lng == nil {
		return nil
	}
	if lat == nil || lng == nil {
		return fmt.Errorf("широта и долгота задаются вместе")
	}
	if *lat < -90 || *lat > 90 {
		return fmt.Errorf("широта должна быть в диапазоне [-90, 90]")
	}
	if *lng < -180 || *lng > 180 {
		return fmt.Errorf("долгота должна быть в диапазоне [-180, 180]")
	}
	return nil
}

// ValidateLocationLabel проверяет подпись точки маршрута.
func ValidateLocationLabel(label string) error {
	return ValidateLength("адрес", strings.TrimSpace(label), MinLocationLabelLength, MaxLocationLabelLength)
}
