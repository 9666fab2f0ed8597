package core

import "errors"

// ErrorCode is a stable, machine-readable identifier for an error category.
type ErrorCode string

// Error code constants, one per ErrorType.
const (
	ErrCodeUnknown           ErrorCode = "UNKNOWN"
	ErrCodeNetwork           ErrorCode = "NETWORK_ERROR"
	ErrCodeTimeout           ErrorCode = "TIMEOUT"
	ErrCodeRateLimit         ErrorCode = "RATE_LIMIT"
	ErrCodeAuth              ErrorCode = "AUTH_ERROR"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeServerError       ErrorCode = "SERVER_ERROR"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidOrder      ErrorCode = "INVALID_ORDER"
)

// Code returns the ErrorCode for the error type.
func (t ErrorType) Code() ErrorCode {
	return [...]ErrorCode{
		ErrCodeUnknown,
		ErrCodeNetwork,
		ErrCodeTimeout,
		ErrCodeRateLimit,
		ErrCodeAuth,
		ErrCodeBadRequest,
		ErrCodeNotFound,
		ErrCodeServerError,
		ErrCodeInsufficientFunds,
		ErrCodeInvalidOrder,
	}[t]
}

// IsErrorCode checks if err is an *APIError whose type maps to code.
func IsErrorCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type.Code() == code
	}
	return false
}
