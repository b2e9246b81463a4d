package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Shortcuts для частых кодов.
func NotFound(message string) *AppError     { return New(ErrCodeNotFound, message) }
func Forbidden(message string) *AppError    { return New(ErrCodeForbidden, message) }
func BadRequest(message string) *AppError   { return New(ErrCodeBadRequest, message) }
func Conflict(message string) *AppError     { return New(ErrCodeConflict, message) }
func InvalidState(message string) *AppError { return New(ErrCodeInvalidState, message) }

// Unavailable оборачивает отказ внешней системы (шлюз, хранилище).
func Unavailable(err error, message string) *AppError {
	return Wrap(err, ErrCodeUnavailable, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInvalidState:
		return http.StatusUnprocessableEntity
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return Is(err, ErrCodeForbidden)
}

func IsConflict(err error) bool {
	return Is(err, ErrCodeConflict)
}

func IsInvalidState(err error) bool {
	return Is(err, ErrCodeInvalidState)
}

var (
	ErrErrandNotFound  = New(ErrCodeNotFound, "задание не найдено")
	ErrPaymentNotFound = New(ErrCodeNotFound, "платёж не найден")
	ErrUnauthorized    = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrNotParticipant  = New(ErrCodeForbidden, "вы не участник этого задания")
)
