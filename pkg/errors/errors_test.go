package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"castmux/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	assert.Equal(t, "INVALID_INPUT: test error", err.Error())

	wrapped := WrapError(errors.New("original error"), ErrCodeInternal, "wrapped error", 500)
	assert.Contains(t, wrapped.Error(), "original error")
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	assert.Equal(t, "value", err.Context["field"])
	assert.Equal(t, 42, err.Context["count"])
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"invalid target", fmt.Errorf("resolve: %w", domain.ErrInvalidTarget), ErrCodeInvalidTarget, http.StatusBadRequest},
		{"create failed", fmt.Errorf("%w: handle -1", domain.ErrConnectionCreateFailed), ErrCodeConnectionCreateFailed, http.StatusBadGateway},
		{"no session", domain.ErrNoActiveSession, ErrCodeNoActiveSession, http.StatusConflict},
		{"flip in progress", domain.ErrFlipInProgress, ErrCodeFlipInProgress, http.StatusConflict},
		{"camera not found", domain.ErrCameraNotFound, ErrCodeCameraNotFound, http.StatusNotFound},
		{"snapshot not found", domain.ErrSnapshotNotFound, ErrCodeNotFound, http.StatusNotFound},
		{"device busy", fmt.Errorf("start: %w", domain.ErrDeviceBusy), ErrCodeDeviceBusy, http.StatusConflict},
		{"unknown", context.DeadlineExceeded, ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromDomain(tt.err)
			require.NotNil(t, appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}

	assert.Nil(t, FromDomain(nil))
}

func TestFromDomain_PassesAppErrorThrough(t *testing.T) {
	original := NewRateLimitError()
	assert.Same(t, original, FromDomain(fmt.Errorf("middleware: %w", original)))
}

func TestGetAppError(t *testing.T) {
	appErr := NewNotFoundError("camera")
	assert.Same(t, appErr, GetAppError(fmt.Errorf("wrapped: %w", appErr)))
	assert.Nil(t, GetAppError(errors.New("plain")))
	assert.True(t, IsAppError(appErr))
	assert.False(t, IsAppError(nil))
}
