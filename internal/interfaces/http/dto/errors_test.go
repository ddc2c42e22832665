package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeInvalidTransition, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusConflict},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInsufficientBalance, http.StatusUnprocessableEntity},
		{ErrCodeVoucherInactive, http.StatusUnprocessableEntity},
		{ErrCodeIntegrity, http.StatusInternalServerError},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Voucher not found", "req-test-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Voucher not found", resp.Error.Message)
	assert.Equal(t, "req-test-123", resp.Error.RequestID)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_FOUND","message":"Voucher not found","request_id":"req-test-123"}}`, string(data))
}

func TestNewErrorResponseWithDetails(t *testing.T) {
	resp := NewErrorResponseWithDetails(ErrCodeIntegrity, "mismatch", "", map[string]string{"code": "VC-1"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, map[string]string{"code": "VC-1"}, resp.Error.Details)
	assert.Empty(t, resp.Error.RequestID)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	t.Run("should round total pages up", func(t *testing.T) {
		resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)

		assert.True(t, resp.Success)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 3, resp.Meta.TotalPages)
		assert.Equal(t, int64(41), resp.Meta.Total)
	})

	t.Run("should tolerate zero page size", func(t *testing.T) {
		resp := NewSuccessResponseWithMeta(nil, 5, 1, 0)
		assert.Equal(t, 0, resp.Meta.TotalPages)
	})
}
