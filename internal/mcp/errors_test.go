package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"not found", shoperrors.NotFound("P1"), ErrCodeInvalidParams},
		{"invalid input", shoperrors.ValidationError("bad top_k", nil), ErrCodeInvalidParams},
		{"retrieval", shoperrors.RetrievalUnavailable("index down", nil), ErrCodeRetrievalUnavailable},
		{"load failure", shoperrors.LoadFailure("missing artifacts", nil), ErrCodeCatalogUnavailable},
		{"wrapped", fmt.Errorf("outer: %w", shoperrors.NotFound("P1")), ErrCodeInvalidParams},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
		{"already mapped", NewInvalidParamsError("x"), ErrCodeInvalidParams},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, MapError(tc.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_AppendsSuggestion(t *testing.T) {
	got := MapError(shoperrors.LoadFailure("catalog missing", nil))

	assert.Contains(t, got.Message, "catalog missing")
	assert.Contains(t, got.Message, "shoprank build")
}

func TestMapError_HidesInternalDetail(t *testing.T) {
	got := MapError(shoperrors.InternalError("nil pointer in scorer", nil))

	assert.Equal(t, "Internal server error.", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := &MCPError{Code: ErrCodeInvalidParams, Message: "bad"}

	assert.Equal(t, "MCP error -32602: bad", err.Error())
}
