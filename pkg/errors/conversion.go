package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

// ToJSONRPCError converts any error to a JSON-RPC error object. MCP errors
// keep their code, message and data; anything else becomes an internal error.
func ToJSONRPCError(err error) *protocol.Error {
	if err == nil {
		return nil
	}

	if rpcErr, ok := err.(*protocol.Error); ok {
		return rpcErr
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return &protocol.Error{
			Code:    protocol.ErrorCode(mcpErr.Code()),
			Message: mcpErr.Message(),
			Data:    mcpErr.Data(),
		}
	}

	return &protocol.Error{
		Code:    protocol.InternalError,
		Message: err.Error(),
	}
}

// FromJSONRPCError converts an error object received from the peer to an MCPError.
func FromJSONRPCError(rpcErr *protocol.Error) MCPError {
	if rpcErr == nil {
		return nil
	}

	code := int(rpcErr.Code)
	err := NewError(code, rpcErr.Message, GetErrorCodeCategory(code), GetErrorCodeSeverity(code))
	if rpcErr.Data != nil {
		err = err.WithData(rpcErr.Data)
	}
	return err
}

// ConvertStandardError maps common Go errors raised while handling method to
// MCP errors. MCP errors pass through unchanged.
func ConvertStandardError(method string, err error) MCPError {
	if err == nil {
		return nil
	}

	if mcpErr, ok := AsMCPError(err); ok {
		return mcpErr
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return RequestCancelled(method)
	case stderrors.Is(err, context.DeadlineExceeded):
		return RequestTimeout(method)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &syntaxErr) || stderrors.As(err, &typeErr) {
		return WrapError(err, CodeInvalidParams, "Invalid params: "+err.Error(), CategoryValidation, SeverityError)
	}

	return InternalError(method, err)
}
