package dto

import (
	"net/http"

	"github.com/erp/refunds/internal/domain/shared"
)

// Domain error codes are exposed unchanged as error.code
const (
	ErrCodeValidation          = shared.CodeValidation
	ErrCodeNotFound            = shared.CodeNotFound
	ErrCodeInvalidState        = shared.CodeInvalidState
	ErrCodeInvalidTransition   = shared.CodeInvalidTransition
	ErrCodeInsufficientBalance = shared.CodeInsufficientBalance
	ErrCodeVoucherInactive     = shared.CodeVoucherInactive
	ErrCodeIntegrity           = shared.CodeIntegrity
	ErrCodeConflict            = shared.CodeConflict
)

// Transport error codes
const (
	// ErrCodeBadRequest is used for malformed requests and unparsable IDs
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeUnauthorized is used when the actor cannot be identified
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeTokenExpired is used when the bearer token has expired
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	// ErrCodeForbidden is used when the caller's address may not reach an endpoint
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeRateLimited is used when a client exceeds the lookup rate limit
	ErrCodeRateLimited = "RATE_LIMITED"
	// ErrCodeInternal is used for unexpected failures
	ErrCodeInternal = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInvalidState:        http.StatusConflict,
	ErrCodeInvalidTransition:   http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,
	ErrCodeVoucherInactive:     http.StatusUnprocessableEntity,
	ErrCodeIntegrity:           http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeForbidden:       http.StatusForbidden,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
