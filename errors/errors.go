package errors

import (
	"errors"
	"fmt"
	"os"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrUnauthorized        = 401
	ErrForbidden           = 403
	ErrNotFound            = 404
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Game and ledger error codes (1000+)
	ErrInsufficientFunds = 1001
	ErrNoPendingFunds    = 1002
	ErrFairnessViolation = 1003
	ErrStoreError        = 1004
	ErrSequenceError     = 1005
	ErrTransientNetwork  = 1101
	ErrLedgerApplication = 1102
	ErrReplayedNonce     = 1103
)

// AppError represents a custom application error.
// Retryable tells the calling layer whether resubmitting the same request
// can succeed (transient transport failures, rate limiting).
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Retryable    bool   `json:"retryable"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: retryableByDefault(code),
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
		Retryable:    retryableByDefault(code),
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: retryableByDefault(code),
		Err:       err,
	}
}

// WithRetryable overrides the default retryable flag
func (e *AppError) WithRetryable(retryable bool) *AppError {
	e.Retryable = retryable
	return e
}

// retryableByDefault maps the taxonomy to its retry semantics. Validation and
// business-rule errors are never retryable. Ledger application errors and
// replayed nonces require operator intervention, not resubmission.
func retryableByDefault(code int) bool {
	switch code {
	case ErrTransientNetwork, ErrServiceUnavailable:
		return true
	default:
		return false
	}
}

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"code":      e.Code,
		"message":   e.Message,
		"retryable": e.Retryable,
	}

	// Include debug message in development environment
	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" {
		response["debug_message"] = e.DebugMessage
	}

	return response
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode extracts error code from an error
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// IsRetryable reports whether resubmitting the failed request may succeed
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest:
		return 400
	case ErrUnauthorized:
		return 401
	case ErrForbidden:
		return 403
	case ErrNotFound:
		return 404
	case ErrInternalServerError:
		return 500
	case ErrServiceUnavailable:
		return 503
	case ErrInsufficientFunds, ErrNoPendingFunds:
		return 400
	case ErrFairnessViolation:
		return 409
	case ErrStoreError, ErrSequenceError:
		return 500
	case ErrTransientNetwork, ErrLedgerApplication, ErrReplayedNonce:
		return 502
	default:
		return 500
	}
}
