package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		name      string
		errorType ErrorType
		want      string
	}{
		{"unknown", ErrorTypeUnknown, "UNKNOWN"},
		{"network", ErrorTypeNetwork, "NETWORK"},
		{"timeout", ErrorTypeTimeout, "TIMEOUT"},
		{"rate_limit", ErrorTypeRateLimit, "RATE_LIMIT"},
		{"authentication", ErrorTypeAuthentication, "AUTHENTICATION"},
		{"bad_request", ErrorTypeBadRequest, "BAD_REQUEST"},
		{"not_found", ErrorTypeNotFound, "NOT_FOUND"},
		{"server_error", ErrorTypeServerError, "SERVER_ERROR"},
		{"insufficient_funds", ErrorTypeInsufficientFunds, "INSUFFICIENT_FUNDS"},
		{"invalid_order", ErrorTypeInvalidOrder, "INVALID_ORDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.errorType.String())
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewAPIError("Balance", ErrorTypeServerError, 503, "service unavailable")
	assert.Equal(t, "[Balance] SERVER_ERROR (503): service unavailable", err.Error())

	err = FromKrakenErrors("AddOrder", 200, []string{"EOrder:Insufficient funds"})
	assert.Equal(t, "[AddOrder] INSUFFICIENT_FUNDS (200/EOrder:Insufficient funds): EOrder:Insufficient funds", err.Error())
}

func TestClassifyKrakenError(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorType
	}{
		{"EAPI:Rate limit exceeded", ErrorTypeRateLimit},
		{"EAPI:Invalid key", ErrorTypeAuthentication},
		{"EAPI:Invalid signature", ErrorTypeAuthentication},
		{"EAPI:Invalid nonce", ErrorTypeAuthentication},
		{"EOrder:Insufficient funds", ErrorTypeInsufficientFunds},
		{"EOrder:Invalid price", ErrorTypeInvalidOrder},
		{"EOrder:Rate limit exceeded", ErrorTypeRateLimit},
		{"EGeneral:Invalid arguments:volume", ErrorTypeBadRequest},
		{"EQuery:Unknown asset pair", ErrorTypeBadRequest},
		{"EGeneral:Unknown method", ErrorTypeNotFound},
		{"EService:Unavailable", ErrorTypeServerError},
		{"EService:Busy", ErrorTypeServerError},
		{"EFunding:Unknown", ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyKrakenError(tt.msg))
		})
	}
}

func TestFromKrakenErrors(t *testing.T) {
	err := FromKrakenErrors("Balance", 200, []string{"EAPI:Invalid key", "EGeneral:Temporary lockout"})

	assert.Equal(t, ErrorTypeAuthentication, err.Type)
	assert.Equal(t, "EAPI:Invalid key", err.Code)
	assert.Len(t, err.Errors, 2)
	assert.Equal(t, "EAPI:Invalid key, EGeneral:Temporary lockout", err.Message)
	assert.False(t, err.Timestamp.IsZero())

	empty := FromKrakenErrors("Time", 500, nil)
	assert.Equal(t, ErrorTypeUnknown, empty.Type)
	assert.Empty(t, empty.Code)
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("call failed: %w", FromKrakenErrors("AddOrder", 200, []string{"EAPI:Rate limit exceeded"}))

	assert.True(t, IsRateLimitError(wrapped))
	assert.False(t, IsAuthenticationError(wrapped))
	assert.False(t, IsTerminalError(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrCodeRateLimit))

	assert.True(t, IsNetworkError(NewAPIError("Time", ErrorTypeNetwork, 0, "reset")))
	assert.True(t, IsTimeoutError(NewAPIError("Time", ErrorTypeTimeout, 0, "deadline")))
	assert.True(t, IsTerminalError(NewAPIError("AddOrder", ErrorTypeInvalidOrder, 200, "bad")))
	assert.True(t, IsTerminalError(NewAPIError("AddOrder", ErrorTypeInsufficientFunds, 200, "poor")))

	plain := errors.New("boom")
	assert.False(t, IsRateLimitError(plain))
	assert.False(t, IsErrorCode(plain, ErrCodeRateLimit))
}

func TestErrorType_Code(t *testing.T) {
	assert.Equal(t, ErrCodeAuth, ErrorTypeAuthentication.Code())
	assert.Equal(t, ErrCodeInvalidOrder, ErrorTypeInvalidOrder.Code())
	assert.Equal(t, ErrCodeUnknown, ErrorTypeUnknown.Code())
}

func TestParseError(t *testing.T) {
	cause := errors.New("unexpected end of input")
	err := error(&ParseError{Text: "{not json", Err: cause})

	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "{not json")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "{not json", parseErr.Text)
}

func TestParseError_TruncatesLongText(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	err := &ParseError{Text: string(long), Err: errors.New("bad")}
	assert.Less(t, len(err.Error()), 120)
}
