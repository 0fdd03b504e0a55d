// Package errors provides the coded error taxonomy for shoprank.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Artifact and IO errors (startup loading)
//   - 3XX: Network errors (embedding, index, LLM services)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the process must not continue serving.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the current request failed.
	SeverityError Severity = "ERROR"
	// SeverityWarning means the request continued in a degraded mode.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// Artifact errors (200-299). All of these are startup-fatal.
	ErrCodeLoadFailure          = "ERR_201_LOAD_FAILURE"
	ErrCodeArtifactMissing      = "ERR_202_ARTIFACT_MISSING"
	ErrCodeArtifactInconsistent = "ERR_203_ARTIFACT_INCONSISTENT"

	// Network errors (300-399)
	ErrCodeRetrievalUnavailable = "ERR_301_RETRIEVAL_UNAVAILABLE"
	ErrCodeLLMUnavailable       = "ERR_302_LLM_UNAVAILABLE"
	ErrCodeTimeout              = "ERR_303_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeNotFound     = "ERR_402_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeExplanationDegraded = "ERR_502_EXPLANATION_DEGRADED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_INVALID"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeLoadFailure, ErrCodeArtifactMissing, ErrCodeArtifactInconsistent:
		return SeverityFatal
	case ErrCodeExplanationDegraded:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeRetrievalUnavailable, ErrCodeLLMUnavailable, ErrCodeTimeout:
		return true
	default:
		return false
	}
}
