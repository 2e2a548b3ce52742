package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      MCPError
		wantCode int
		wantCat  Category
	}{
		{"duplicate registration", DuplicateRegistration("tool", "echo"), CodeDuplicateRegistration, CategoryConfiguration},
		{"capabilities locked", CapabilitiesLocked(), CodeCapabilitiesLocked, CategoryConfiguration},
		{"capability not declared", CapabilityNotDeclared("client", "sampling", "sampling/createMessage"), CodeCapabilityRequired, CategoryConfiguration},
		{"invalid template", InvalidTemplate("mem://{", fmt.Errorf("unclosed")), CodeInvalidDefinition, CategoryConfiguration},
		{"invalid schema", InvalidSchema("tool echo", fmt.Errorf("bad type")), CodeInvalidDefinition, CategoryConfiguration},
		{"not connected", NotConnected("ping"), CodeNotConnected, CategoryConfiguration},
		{"tool not found", ToolNotFound("nope"), CodeInvalidParams, CategoryNotFound},
		{"prompt not found", PromptNotFound("nope"), CodeInvalidParams, CategoryNotFound},
		{"resource not found", ResourceNotFoundByURI("mem://other"), CodeInvalidParams, CategoryNotFound},
		{"invalid arguments", InvalidArguments("tool echo", fmt.Errorf("missing text"), nil), CodeInvalidParams, CategoryValidation},
		{"cancelled", RequestCancelled("tools/call"), CodeRequestCancelled, CategoryCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code())
			assert.Equal(t, tt.wantCat, tt.err.Category())
			assert.NotEmpty(t, tt.err.Error())
			assert.NotNil(t, tt.err.Context())
		})
	}
}

func TestResourceNotFoundNamesURI(t *testing.T) {
	err := ResourceNotFoundByURI("mem://other")
	assert.Contains(t, err.Message(), "mem://other")
	data, ok := err.Data().(*ResourceErrorData)
	require.True(t, ok)
	assert.Equal(t, "mem://other", data.URI)
}

func TestCapabilityNotDeclaredData(t *testing.T) {
	err := CapabilityNotDeclared("server", "tools", "tools/call")
	data, ok := err.Data().(*CapabilityErrorData)
	require.True(t, ok)
	assert.Equal(t, "tools", data.Capability)
	assert.Equal(t, "tools/call", data.Method)
	assert.Equal(t, "server", data.Side)
	assert.True(t, IsCategory(err, CategoryConfiguration))
}

func TestWithContextDoesNotMutate(t *testing.T) {
	err := InvalidParams("bad")
	withCtx := err.WithContext(&Context{RequestID: "123", Method: "tools/call"})
	assert.Equal(t, "123", withCtx.Context().RequestID)
	assert.Empty(t, err.Context().RequestID)
}

func TestWithDetailAppends(t *testing.T) {
	err := InvalidParams("bad").WithDetail("first").WithDetail("second")
	assert.Equal(t, "first; second", err.Details())
	assert.Equal(t, "bad: first; second", err.Error())
}

func TestUnwrapAndAs(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := InternalError("resources/read", cause)
	assert.Same(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))

	wrapped := fmt.Errorf("outer: %w", ToolNotFound("x"))
	mcpErr, ok := AsMCPError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidParams, mcpErr.Code())
	assert.True(t, IsCode(wrapped, CodeInvalidParams))

	_, ok = AsMCPError(fmt.Errorf("plain"))
	assert.False(t, ok)
	_, ok = AsMCPError(nil)
	assert.False(t, ok)
}

func TestSentinels(t *testing.T) {
	err := fmt.Errorf("registering: %w", DuplicateRegistration("prompt", "greet"))
	assert.True(t, stderrors.Is(err, ErrDuplicateRegistration))
	assert.False(t, stderrors.Is(err, ErrCapabilitiesLocked))
	assert.True(t, IsConfiguration(err))

	assert.True(t, stderrors.Is(CapabilitiesLocked(), ErrCapabilitiesLocked))
	assert.True(t, stderrors.Is(NotConnected("ping"), ErrNotConnected))
	assert.True(t, stderrors.Is(InvalidSchema("tool x", fmt.Errorf("bad")), ErrInvalidDefinition))

	// Protocol errors share codes with nothing configuration-side.
	assert.False(t, IsConfiguration(ToolNotFound("x")))
	assert.False(t, stderrors.Is(ToolNotFound("x"), ErrInvalidDefinition))
}

func TestToJSONRPCError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToJSONRPCError(nil))
	})

	t.Run("mcp error keeps code and data", func(t *testing.T) {
		rpcErr := ToJSONRPCError(ResourceNotFoundByURI("mem://x"))
		assert.Equal(t, protocol.InvalidParams, rpcErr.Code)
		assert.Contains(t, rpcErr.Message, "mem://x")
		assert.IsType(t, &ResourceErrorData{}, rpcErr.Data)
	})

	t.Run("wrapped mcp error", func(t *testing.T) {
		rpcErr := ToJSONRPCError(fmt.Errorf("ctx: %w", InvalidParams("nope")))
		assert.Equal(t, protocol.InvalidParams, rpcErr.Code)
	})

	t.Run("plain error is internal", func(t *testing.T) {
		rpcErr := ToJSONRPCError(fmt.Errorf("disk on fire"))
		assert.Equal(t, protocol.InternalError, rpcErr.Code)
		assert.Equal(t, "disk on fire", rpcErr.Message)
	})

	t.Run("protocol error passes through", func(t *testing.T) {
		orig := &protocol.Error{Code: protocol.MethodNotFound, Message: "x"}
		assert.Same(t, orig, ToJSONRPCError(orig))
	})
}

func TestFromJSONRPCError(t *testing.T) {
	assert.Nil(t, FromJSONRPCError(nil))

	err := FromJSONRPCError(&protocol.Error{Code: protocol.InvalidParams, Message: "bad", Data: "d"})
	assert.Equal(t, CodeInvalidParams, err.Code())
	assert.Equal(t, CategoryValidation, err.Category())
	assert.Equal(t, "d", err.Data())

	unknown := FromJSONRPCError(&protocol.Error{Code: -1, Message: "custom"})
	assert.Equal(t, CategoryProtocol, unknown.Category())
}

func TestConvertStandardError(t *testing.T) {
	assert.Nil(t, ConvertStandardError("ping", nil))

	assert.Equal(t, CodeRequestCancelled, ConvertStandardError("ping", context.Canceled).Code())
	assert.Equal(t, CodeRequestTimeout, ConvertStandardError("ping", fmt.Errorf("wait: %w", context.DeadlineExceeded)).Code())

	var v struct{ A int }
	jsonErr := json.Unmarshal([]byte(`{"A":"x"}`), &v)
	require.Error(t, jsonErr)
	assert.Equal(t, CodeInvalidParams, ConvertStandardError("tools/call", jsonErr).Code())

	orig := ToolNotFound("x")
	assert.Equal(t, orig, ConvertStandardError("tools/call", orig))

	internal := ConvertStandardError("resources/read", fmt.Errorf("boom"))
	assert.Equal(t, CodeInternalError, internal.Code())
	assert.Equal(t, "resources/read", internal.Context().Method)
}

func TestErrorCodeRegistry(t *testing.T) {
	info, ok := GetErrorCodeInfo(CodeCapabilityRequired)
	require.True(t, ok)
	assert.Equal(t, CategoryConfiguration, info.Category)
	assert.Equal(t, "DuplicateRegistration", GetErrorCodeName(CodeDuplicateRegistration))
	assert.Equal(t, "UnknownError", GetErrorCodeName(12345))
	assert.Equal(t, SeverityError, GetErrorCodeSeverity(12345))
}
