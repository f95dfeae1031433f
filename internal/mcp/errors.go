// Package mcp serves the manual knowledge base over the Model Context
// Protocol: retrieval, grounded answers and index status as tools, and
// each ingested manual as a readable resource.
package mcp

import (
	"context"
	"errors"
	"fmt"

	amerrors "github.com/Aman-CERP/mindual/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexUnavailable indicates the search index could not be queried.
	ErrCodeIndexUnavailable = -32001

	// ErrCodeExternalFailed indicates the LLM call failed.
	ErrCodeExternalFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeNotConfigured indicates a tool needs configuration that is missing.
	ErrCodeNotConfigured = -32004

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

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	}

	var ce *amerrors.CodedError
	if errors.As(err, &ce) {
		return mapCodedError(ce)
	}

	return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
}

// mapCodedError keeps the coded message and suggestion, which are written
// for users, and picks the MCP code from the error's category.
func mapCodedError(ce *amerrors.CodedError) *MCPError {
	message := ce.Message
	if ce.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ce.Message, ce.Suggestion)
	}

	switch {
	case ce.Code == amerrors.ErrCodeSearchFailed || ce.Code == amerrors.ErrCodeIndexFailed:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	case ce.Code == amerrors.ErrCodeMissingAPIKey:
		return &MCPError{Code: ErrCodeNotConfigured, Message: message}
	case ce.Category == amerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case ce.Category == amerrors.CategoryExternal:
		return &MCPError{Code: ErrCodeExternalFailed, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
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
