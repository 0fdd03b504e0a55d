package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShopError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := errors.New("connection refused")

	// When: wrapping it as a retrieval failure
	err := RetrievalUnavailable("embed query", cause)

	// Then: the chain still reaches the cause
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestShopError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *ShopError
		expected string
	}{
		{
			name:     "not found",
			err:      NotFound("P0042"),
			expected: "[ERR_402_NOT_FOUND] product P0042 not found",
		},
		{
			name:     "load failure",
			err:      LoadFailure("features missing for P0001", nil),
			expected: "[ERR_201_LOAD_FAILURE] features missing for P0001",
		},
		{
			name:     "config",
			err:      ConfigError("search.pool_size must be positive", nil),
			expected: "[ERR_101_CONFIG_INVALID] search.pool_size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestShopError_Is_MatchesSentinelThroughWrapping(t *testing.T) {
	// Given: a coded error wrapped by fmt.Errorf
	err := fmt.Errorf("search: %w", RetrievalUnavailable("index down", nil))

	// Then: errors.Is matches the sentinel by code
	assert.True(t, errors.Is(err, ErrRetrievalUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeLoadFailure, CategoryIO, SeverityFatal, false},
		{ErrCodeArtifactInconsistent, CategoryIO, SeverityFatal, false},
		{ErrCodeRetrievalUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeLLMUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeNotFound, CategoryValidation, SeverityError, false},
		{ErrCodeExplanationDegraded, CategoryInternal, SeverityWarning, false},
		{"bad", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestHelpers_WorkThroughWrappedChains(t *testing.T) {
	// Given: a fatal error wrapped twice
	err := fmt.Errorf("startup: %w", fmt.Errorf("catalog: %w", LoadFailure("mapping mismatch", nil)))

	// Then: helpers find the coded error
	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, ErrCodeLoadFailure, GetCode(err))
	assert.Equal(t, CategoryIO, GetCategory(err))

	// And: plain errors yield zero values
	plain := errors.New("plain")
	assert.False(t, IsFatal(plain))
	assert.Empty(t, GetCode(plain))
	assert.Empty(t, GetCategory(plain))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestNotFound_CarriesProductDetail(t *testing.T) {
	err := NotFound("P0007")
	assert.Equal(t, "P0007", err.Details["product_id"])
}

func TestFormatForCLI(t *testing.T) {
	// Given: a load failure with a suggestion
	err := LoadFailure("products_features.json missing", nil)

	// When: formatting for the CLI
	out := FormatForCLI(err)

	// Then: message, hint, and code are present
	assert.Contains(t, out, "Error: products_features.json missing")
	assert.Contains(t, out, "Hint: Run 'shoprank build'")
	assert.Contains(t, out, "Code: ERR_201_LOAD_FAILURE")

	// And: plain errors are rendered as internal
	assert.Contains(t, FormatForCLI(errors.New("boom")), "Code: ERR_501_INTERNAL")
	assert.Empty(t, FormatForCLI(nil))
}

func TestLogAttrs(t *testing.T) {
	attrs := LogAttrs(NotFound("P0001"))
	assert.Len(t, attrs, 5)
	assert.Len(t, LogAttrs(errors.New("x")), 1)
	assert.Nil(t, LogAttrs(nil))
}
