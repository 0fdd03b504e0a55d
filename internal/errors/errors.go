package errors

import (
	stderrors "errors"
	"fmt"
)

// ShopError is the structured error type for shoprank.
// It carries enough context for transport mapping, logging, and CLI output.
type ShopError struct {
	// Code is the unique error code (e.g., "ERR_402_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ShopError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ShopError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against the sentinel values below.
func (e *ShopError) Is(target error) bool {
	if t, ok := target.(*ShopError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ShopError) WithDetail(key, value string) *ShopError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ShopError) WithSuggestion(suggestion string) *ShopError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ShopError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ShopError {
	return &ShopError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ShopError from an existing error.
func Wrap(code string, err error) *ShopError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound             = New(ErrCodeNotFound, "not found", nil)
	ErrRetrievalUnavailable = New(ErrCodeRetrievalUnavailable, "retrieval unavailable", nil)
	ErrLoadFailure          = New(ErrCodeLoadFailure, "load failure", nil)
	ErrInvalidInput         = New(ErrCodeInvalidInput, "invalid input", nil)
	ErrLLMUnavailable       = New(ErrCodeLLMUnavailable, "llm unavailable", nil)
)

// NotFound reports an unknown product id in a single-product lookup.
func NotFound(productID string) *ShopError {
	return New(ErrCodeNotFound, fmt.Sprintf("product %s not found", productID), nil).
		WithDetail("product_id", productID)
}

// RetrievalUnavailable reports an embedding or index failure during search.
func RetrievalUnavailable(message string, cause error) *ShopError {
	return New(ErrCodeRetrievalUnavailable, message, cause).
		WithSuggestion("Check that the embedding provider and vector index are reachable")
}

// LoadFailure reports a missing or inconsistent artifact at startup.
func LoadFailure(message string, cause error) *ShopError {
	return New(ErrCodeLoadFailure, message, cause).
		WithSuggestion("Run 'shoprank build' to regenerate the catalog artifacts")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ShopError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *ShopError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ShopError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first ShopError in err's chain.
func As(err error) (*ShopError, bool) {
	var se *ShopError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if se, ok := As(err); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if se, ok := As(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code. Returns empty string if err carries no ShopError.
func GetCode(err error) string {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string if err carries no ShopError.
func GetCategory(err error) Category {
	if se, ok := As(err); ok {
		return se.Category
	}
	return ""
}
