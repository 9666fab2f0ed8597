package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of an API error.
type ErrorType int

// Error type constants categorize errors for proper handling and retry logic.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a network connectivity issue.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates rate limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates invalid key, signature or nonce.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested method or resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates the venue is unavailable or busy.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates venue rules.
	ErrorTypeInvalidOrder
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	return [...]string{
		"UNKNOWN",
		"NETWORK",
		"TIMEOUT",
		"RATE_LIMIT",
		"AUTHENTICATION",
		"BAD_REQUEST",
		"NOT_FOUND",
		"SERVER_ERROR",
		"INSUFFICIENT_FUNDS",
		"INVALID_ORDER",
	}[t]
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrCircuitBreakerOpen is returned when circuit breaker is open.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when a private endpoint is called without credentials.
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrNoAPIKey is returned when every configured key is disabled.
	ErrNoAPIKey = errors.New("no available API key")
	// ErrEmptyResult is returned when a response carries neither errors nor a result.
	ErrEmptyResult = errors.New("response has no result")

	// ErrConnectionFailed is returned when the streaming transport cannot be established.
	ErrConnectionFailed = errors.New("connection failed")
	// ErrTransport wraps a failure of an established streaming transport.
	ErrTransport = errors.New("transport error")
	// ErrNotConnected is returned when a command is issued on a session that is not connected.
	ErrNotConnected = errors.New("session not connected")
	// ErrSendFailed is returned when a command cannot be queued because the connection ended.
	ErrSendFailed = errors.New("send failed")
	// ErrInvalidState is returned when a lifecycle operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrParse is wrapped by every *ParseError.
	ErrParse = errors.New("parse error")
)

// ParseError reports a text frame that is not valid JSON.
type ParseError struct {
	// Text is the raw frame payload.
	Text string
	// Err is the decoder error.
	Err error
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse message %q: %v", truncate(e.Text, 64), e.Err)
}

// Unwrap exposes both ErrParse and the decoder error to errors.Is.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// APIError represents a structured error returned by the REST API.
// Kraken reports failures as a list of "Category:Message" strings in the response envelope.
type APIError struct {
	// Type categorizes the error for programmatic handling.
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status code from the response.
	StatusCode int `json:"status_code"`
	// Code is the first venue error string, e.g. "EAPI:Invalid key".
	Code string `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
	// Errors holds every error string from the envelope.
	Errors []string `json:"errors,omitempty"`
	// Endpoint identifies which REST method returned this error.
	Endpoint string `json:"endpoint"`
	// Timestamp is when the error occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (%d/%s): %s",
			e.Endpoint, e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%d): %s",
		e.Endpoint, e.Type, e.StatusCode, e.Message)
}

// NewAPIError creates a new APIError with the specified details.
// The timestamp is automatically set to the current time.
func NewAPIError(endpoint string, errorType ErrorType, statusCode int, message string) *APIError {
	return &APIError{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Endpoint:   endpoint,
		Timestamp:  time.Now(),
	}
}

// FromKrakenErrors builds an APIError from the envelope's error list.
// The first entry decides the type.
func FromKrakenErrors(endpoint string, statusCode int, errs []string) *APIError {
	e := NewAPIError(endpoint, ErrorTypeUnknown, statusCode, strings.Join(errs, ", "))
	e.Errors = errs
	if len(errs) > 0 {
		e.Code = errs[0]
		e.Type = ClassifyKrakenError(errs[0])
	}
	return e
}

var krakenErrorPrefixes = []struct {
	prefix string
	typ    ErrorType
}{
	{"EAPI:Rate limit", ErrorTypeRateLimit},
	{"EOrder:Rate limit", ErrorTypeRateLimit},
	{"EGeneral:Too many requests", ErrorTypeRateLimit},
	{"EAPI:Invalid key", ErrorTypeAuthentication},
	{"EAPI:Invalid signature", ErrorTypeAuthentication},
	{"EAPI:Invalid nonce", ErrorTypeAuthentication},
	{"EGeneral:Permission denied", ErrorTypeAuthentication},
	{"EOrder:Insufficient funds", ErrorTypeInsufficientFunds},
	{"EOrder:", ErrorTypeInvalidOrder},
	{"EGeneral:Invalid arguments", ErrorTypeBadRequest},
	{"EQuery:Unknown asset pair", ErrorTypeBadRequest},
	{"EGeneral:Unknown method", ErrorTypeNotFound},
	{"EService:", ErrorTypeServerError},
	{"EGeneral:Internal error", ErrorTypeServerError},
}

// ClassifyKrakenError maps a venue error string to an ErrorType by prefix.
func ClassifyKrakenError(msg string) ErrorType {
	for _, p := range krakenErrorPrefixes {
		if strings.HasPrefix(msg, p.prefix) {
			return p.typ
		}
	}
	return ErrorTypeUnknown
}

func apiErrorType(err error) (ErrorType, bool) {
	var e *APIError
	if errors.As(err, &e) {
		return e.Type, true
	}
	return ErrorTypeUnknown, false
}

// IsNetworkError returns true if the error is a network connectivity issue.
// Network errors are typically retryable.
func IsNetworkError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeNetwork
}

// IsTimeoutError returns true if the error is a timeout.
func IsTimeoutError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeTimeout
}

// IsRateLimitError returns true if the error is a rate limit violation.
// Rate limit errors should be retried after a delay.
func IsRateLimitError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeRateLimit
}

// IsAuthenticationError returns true if the error is an authentication failure.
func IsAuthenticationError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && t == ErrorTypeAuthentication
}

// IsTerminalError returns true if retrying the request cannot succeed.
func IsTerminalError(err error) bool {
	t, ok := apiErrorType(err)
	return ok && (t == ErrorTypeInsufficientFunds ||
		t == ErrorTypeInvalidOrder ||
		t == ErrorTypeNotFound ||
		t == ErrorTypeBadRequest)
}
