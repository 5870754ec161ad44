package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"castmux/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	ErrCodeInvalidTarget          ErrorCode = "INVALID_TARGET"
	ErrCodeInvalidConfig          ErrorCode = "INVALID_CONFIG"
	ErrCodeConnectionCreateFailed ErrorCode = "CONNECTION_CREATE_FAILED"
	ErrCodeNoActiveSession        ErrorCode = "NO_ACTIVE_SESSION"
	ErrCodeUnsupportedCapability  ErrorCode = "UNSUPPORTED_CAPABILITY"
	ErrCodeFlipInProgress         ErrorCode = "FLIP_IN_PROGRESS"
	ErrCodeCameraNotFound         ErrorCode = "CAMERA_NOT_FOUND"
	ErrCodeSessionClosed          ErrorCode = "SESSION_CLOSED"
	ErrCodeDeviceBusy             ErrorCode = "DEVICE_BUSY"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
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

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	appErr := NewAppError(code, message, httpStatus)
	appErr.Cause = err
	return appErr
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

var domainErrors = []struct {
	err    error
	code   ErrorCode
	status int
}{
	{domain.ErrInvalidTarget, ErrCodeInvalidTarget, http.StatusBadRequest},
	{domain.ErrInvalidConfig, ErrCodeInvalidConfig, http.StatusBadRequest},
	{domain.ErrConnectionCreateFailed, ErrCodeConnectionCreateFailed, http.StatusBadGateway},
	{domain.ErrNoActiveSession, ErrCodeNoActiveSession, http.StatusConflict},
	{domain.ErrFlipInProgress, ErrCodeFlipInProgress, http.StatusConflict},
	{domain.ErrUnsupportedCapability, ErrCodeUnsupportedCapability, http.StatusUnprocessableEntity},
	{domain.ErrCameraNotFound, ErrCodeCameraNotFound, http.StatusNotFound},
	{domain.ErrSnapshotNotFound, ErrCodeNotFound, http.StatusNotFound},
	{domain.ErrSessionClosed, ErrCodeSessionClosed, http.StatusServiceUnavailable},
	{domain.ErrDeviceBusy, ErrCodeDeviceBusy, http.StatusConflict},
}

// FromDomain maps err onto an AppError. AppErrors pass through unchanged and
// unrecognised errors become INTERNAL_ERROR.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	for _, d := range domainErrors {
		if stderrors.Is(err, d.err) {
			return WrapError(err, d.code, err.Error(), d.status)
		}
	}
	return WrapError(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
}

func IsAppError(err error) bool {
	return GetAppError(err) != nil
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
