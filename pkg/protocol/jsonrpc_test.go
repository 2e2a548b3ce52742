package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	t.Run("nil params", func(t *testing.T) {
		req, err := NewRequest("req-1", MethodPing, nil)
		require.NoError(t, err)
		assert.Equal(t, JSONRPCVersion, req.JSONRPC)
		assert.Equal(t, "req-1", req.ID)
		assert.Equal(t, MethodPing, req.Method)
		assert.Empty(t, req.Params)
	})

	t.Run("struct params", func(t *testing.T) {
		req, err := NewRequest(7, MethodReadResource, ReadResourceParams{URI: "mem://a"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"uri":"mem://a"}`, string(req.Params))
	})

	t.Run("raw params pass through", func(t *testing.T) {
		raw := json.RawMessage(`{"name":"echo"}`)
		req, err := NewRequest(1, MethodCallTool, raw)
		require.NoError(t, err)
		assert.Equal(t, raw, req.Params)
	})

	t.Run("unmarshalable params", func(t *testing.T) {
		_, err := NewRequest(1, MethodCallTool, map[string]interface{}{"ch": make(chan int)})
		assert.Error(t, err)
	})
}

func TestNewResponse(t *testing.T) {
	resp, err := NewResponse(3, EmptyResult{})
	require.NoError(t, err)
	assert.Equal(t, JSONRPCVersion, resp.JSONRPC)
	assert.JSONEq(t, `{}`, string(resp.Result))
	assert.Nil(t, resp.Error)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(4, &Error{Code: InvalidParams, Message: "bad"})
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":4,"error":{"code":-32602,"message":"bad"}}`, string(data))
}

func TestErrorImplementsError(t *testing.T) {
	var err error = &Error{Code: MethodNotFound, Message: "no such method"}
	assert.Contains(t, err.Error(), "-32601")
	assert.Contains(t, err.Error(), "no such method")
}

func TestNewNotification(t *testing.T) {
	n, err := NewNotification(NotificationResourceUpdated, ResourceUpdatedParams{URI: "file:///x"})
	require.NoError(t, err)
	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/resources/updated","params":{"uri":"file:///x"}}`, string(data))
}

func TestDecodeParams(t *testing.T) {
	t.Run("raw message", func(t *testing.T) {
		var p CallToolParams
		require.NoError(t, DecodeParams(json.RawMessage(`{"name":"echo","arguments":{"text":"hi"}}`), &p))
		assert.Equal(t, "echo", p.Name)
		assert.JSONEq(t, `{"text":"hi"}`, string(p.Arguments))
	})

	t.Run("nil and null leave zero value", func(t *testing.T) {
		var p ReadResourceParams
		require.NoError(t, DecodeParams(nil, &p))
		require.NoError(t, DecodeParams(json.RawMessage("null"), &p))
		assert.Empty(t, p.URI)
	})

	t.Run("go value", func(t *testing.T) {
		var p ReadResourceParams
		require.NoError(t, DecodeParams(map[string]string{"uri": "mem://x"}, &p))
		assert.Equal(t, "mem://x", p.URI)
	})

	t.Run("malformed", func(t *testing.T) {
		var p ReadResourceParams
		assert.Error(t, DecodeParams(json.RawMessage(`{"uri":`), &p))
	})
}
