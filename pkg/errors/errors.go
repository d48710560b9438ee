package errors

import "fmt"

// ErrorType classifies pipeline failures so callers can decide whether to
// retry, skip, or abort.
type ErrorType string

const (
	// ErrorTypeFetch is an upstream catalog fetch failure. The cycle's fetch
	// step is aborted; the prior row store and checkpoints are kept.
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypeWrapTransient is a link-wrapping call failure worth retrying.
	ErrorTypeWrapTransient ErrorType = "wrap_transient"
	// ErrorTypeRateLimit is a remote 429. Retried like a transient error but
	// with longer backoff.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeWrapPermanent means the retry budget is exhausted. The row is
	// left unwrapped and processing continues.
	ErrorTypeWrapPermanent ErrorType = "wrap_permanent"
	// ErrorTypeCheckpointCorruption is an unreadable checkpoint file. Callers
	// fall back to offset 0 and rely on the per-row skip check.
	ErrorTypeCheckpointCorruption ErrorType = "checkpoint_corruption"
	// ErrorTypePersistence is a write failure to the row store or checkpoint
	// store. The current batch aborts without advancing the checkpoint.
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a pipeline error with type information. Code carries the
// HTTP status for remote-call failures, 0 otherwise.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error.
func New(errorType ErrorType, message string, code int) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// IsRetryable checks if an error type should be retried.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeWrapTransient, ErrorTypeRateLimit, ErrorTypeFetch:
		return true
	case ErrorTypeWrapPermanent, ErrorTypeNotFound, ErrorTypeParsing,
		ErrorTypeCheckpointCorruption, ErrorTypePersistence:
		return false
	default:
		return false
	}
}

// TypeForStatusCode maps an HTTP status from a remote call into the taxonomy.
// Rate limits and missing resources get their own types; for everything else
// the status's retryability decides transient versus permanent.
func TypeForStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 404:
		return ErrorTypeNotFound
	case IsRetryableStatusCode(statusCode):
		return ErrorTypeWrapTransient
	default:
		return ErrorTypeWrapPermanent
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
