package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_MapsHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeNotFound:     http.StatusNotFound,
		ErrCodeUnauthorized: http.StatusUnauthorized,
		ErrCodeForbidden:    http.StatusForbidden,
		ErrCodeBadRequest:   http.StatusBadRequest,
		ErrCodeConflict:     http.StatusConflict,
		ErrCodeInvalidState: http.StatusUnprocessableEntity,
		ErrCodeUnavailable:  http.StatusServiceUnavailable,
		ErrCodeInternal:     http.StatusInternalServerError,
	}

	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestCodeOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("service: %w", Conflict("уже принято"))

	assert.Equal(t, ErrCodeConflict, CodeOf(err))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestCodeOf_UnknownError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Unavailable(cause, "платёжный шлюз недоступен")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UNAVAILABLE")
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus)
}
