// Package mcp exposes the ranking engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	shoperrors "github.com/shoprank/shoprank/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeCatalogUnavailable indicates the catalog artifacts could not be loaded.
	ErrCodeCatalogUnavailable = -32001

	// ErrCodeRetrievalUnavailable indicates the embedder or vector index failed.
	ErrCodeRetrievalUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}
	if se, ok := shoperrors.As(err); ok {
		return mapShopError(se)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Resource '%s' not found.", uri)}
}

func mapShopError(se *shoperrors.ShopError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case shoperrors.ErrCodeNotFound, shoperrors.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case shoperrors.ErrCodeRetrievalUnavailable:
		return &MCPError{Code: ErrCodeRetrievalUnavailable, Message: message}
	case shoperrors.ErrCodeTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case shoperrors.ErrCodeLoadFailure, shoperrors.ErrCodeArtifactMissing, shoperrors.ErrCodeArtifactInconsistent:
		return &MCPError{Code: ErrCodeCatalogUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}
