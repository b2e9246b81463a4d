package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Константы валидации
const (
	MinErrandTitleLength       = 3
	MaxErrandTitleLength       = 200
	MinErrandDescriptionLength = 10
	MaxErrandDescriptionLength = 5000
	MinLocationLabelLength     = 3
	MaxLocationLabelLength     = 300
	MaxLocationsCount          = 10
	MaxMediaCount              = 10
	MinPrice                   = 1.0
	MaxPrice                   = 100000000.0
	MinMessageLength           = 1
	MaxMessageLength           = 5000
	MinReviewLength            = 3
	MaxReviewLength            = 2000
	MaxURLLength               = 2048
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart, domainPart := parts[0], parts[1]
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}
	return nil
}

// ValidateMessageText проверяет текст сообщения чата.
func ValidateMessageText(text string) error {
	if err := ValidateNonEmpty("сообщение", text); err != nil {
		return err
	}
	return ValidateLength("сообщение", text, MinMessageLength, MaxMessageLength)
}

// ValidateReview проверяет необязательный текст отзыва.
func ValidateReview(review *string) error {
	if review == nil {
		return nil
	}
	return ValidateLength("отзыв", strings.TrimSpace(*review), MinReviewLength, MaxReviewLength)
}

// ValidateURL проверяет абсолютный http(s) адрес.
func ValidateURL(fieldName, raw string) error {
	if len(raw) > MaxURLLength {
		return fmt.Errorf("%s слишком длинный", fieldName)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s должен быть ссылкой http(s)", fieldName)
	}
	return nil
}

// ValidateTimeWindow проверяет, что окно времени задано полностью и конец позже начала.
func ValidateTimeWindow(start, end *time.Time) error {
	if start == nil && end == nil {
		return nil
	}
	if start == nil || end == nil {
		return fmt.Errorf("окно времени должно иметь начало и конец")
	}
	if !end.After(*start) {
		return fmt.Errorf("конец окна времени должен быть позже начала")
	}
	return nil
}
