package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("Runner.One@Example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("a@b"))
	assert.Error(t, ValidateEmail("a@@b.com"))
}

func TestValidateMessageText(t *testing.T) {
	assert.NoError(t, ValidateMessageText("на месте через 5 минут"))
	assert.Error(t, ValidateMessageText("   "))
	assert.Error(t, ValidateMessageText(strings.Repeat("я", MaxMessageLength+1)))
}

func TestValidateReview(t *testing.T) {
	assert.NoError(t, ValidateReview(nil))
	assert.NoError(t, ValidateReview(ptr("отлично")))
	assert.Error(t, ValidateReview(ptr("ok")))
}

func TestValidateTimeWindow(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)

	assert.NoError(t, ValidateTimeWindow(nil, nil))
	assert.NoError(t, ValidateTimeWindow(&now, &later))
	assert.Error(t, ValidateTimeWindow(&later, &now))
	assert.Error(t, ValidateTimeWindow(&now, nil))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("url", "https://res.cloudinary.com/demo/image/upload/sample.jpg"))
	assert.Error(t, ValidateURL("url", "ftp://host/file"))
	assert.Error(t, ValidateURL("url", "not a url"))
}

func TestValidateErrandFields(t *testing.T) {
	assert.NoError(t, ValidateErrandText("Купить продукты", "Молоко, хлеб и яйца из магазина у дома"))
	assert.Error(t, ValidateErrandText("Hi", "Молоко, хлеб и яйца"))
	assert.Error(t, ValidateErrandText("Купить", "коротко"))

	assert.NoError(t, ValidatePrice(1000, nil))
	assert.NoError(t, ValidatePrice(1000, ptr(0.0)))
	assert.Error(t, ValidatePrice(0, nil))
	assert.Error(t, ValidatePrice(1000, ptr(-1.0)))

	assert.NoError(t, ValidateCoordinates(nil, nil))
	assert.NoError(t, ValidateCoordinates(ptr(6.5244), ptr(3.3792)))
	assert.Error(t, ValidateCoordinates(ptr(6.5), nil))
	assert.Error(t, ValidateCoordinates(ptr(91.0), ptr(0.0)))
	assert.Error(t, ValidateCoordinates(ptr(0.0), ptr(-181.0)))

	assert.NoError(t, ValidateLocationLabel("Ikeja City Mall"))
	assert.Error(t, ValidateLocationLabel("ab"))
}
