package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

// Transport is the message correlation and dispatch engine the server core
// is built on. Implementations own ID assignment, response matching and
// framing; the core only sends by method name and registers handlers.
type Transport interface {
	// SendRequest sends a request and blocks until the peer answers or ctx
	// ends. The result is the raw JSON result; decode it with
	// protocol.DecodeParams.
	SendRequest(ctx context.Context, method string, params interface{}) (interface{}, error)
	SendNotification(ctx context.Context, method string, params interface{}) error

	RegisterRequestHandler(method string, handler RequestHandler)
	RegisterNotificationHandler(method string, handler NotificationHandler)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	HandleResponse(response *protocol.Response)
	HandleRequest(ctx context.Context, request *protocol.Request) (*protocol.Response, error)
	HandleNotification(ctx context.Context, notification *protocol.Notification) error

	GenerateID() string
}

// RequestHandler handles an inbound request. params is the raw JSON params.
type RequestHandler func(ctx context.Context, params interface{}) (interface{}, error)

// NotificationHandler handles an inbound notification.
type NotificationHandler func(ctx context.Context, params interface{}) error

var (
	ErrNoHandler       = errors.New("no handler registered")
	ErrTransportClosed = errors.New("transport closed")
)

// BaseTransport is the receiving half shared by transports: the handler
// tables, dispatch with error translation, response correlation and ID
// generation. Concrete transports embed it and add the sending side.
type BaseTransport struct {
	mu            sync.RWMutex
	requests      map[string]RequestHandler
	notifications map[string]NotificationHandler
	sessionID     string

	pendingMu sync.Mutex
	pending   map[string]chan *protocol.Response

	lastID   atomic.Int64
	idPrefix string
}

func NewBaseTransport() *BaseTransport {
	return &BaseTransport{
		requests:      make(map[string]RequestHandler),
		notifications: make(map[string]NotificationHandler),
		pending:       make(map[string]chan *protocol.Response),
		idPrefix:      "req",
	}
}

// SetSessionID sets the session ID reported to handlers through RequestExtra.
func (t *BaseTransport) SetSessionID(id string) {
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
}

// SessionID returns the session ID, empty when the transport has none.
func (t *BaseTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *BaseTransport) RegisterRequestHandler(method string, handler RequestHandler) {
	t.mu.Lock()
	t.requests[method] = handler
	t.mu.Unlock()
}

func (t *BaseTransport) RegisterNotificationHandler(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.notifications[method] = handler
	t.mu.Unlock()
}

// HasRequestHandler reports whether a handler is registered for method.
func (t *BaseTransport) HasRequestHandler(method string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.requests[method]
	return ok
}

// HandleRequest dispatches request to its handler and always answers with
// a response: unknown methods get MethodNotFound, handler errors keep their
// MCP code, and panics become InternalError.
func (t *BaseTransport) HandleRequest(ctx context.Context, request *protocol.Request) (resp *protocol.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = errorResponse(request.ID, protocol.InternalError,
				fmt.Sprintf("internal error processing %s: %v", request.Method, r))
			err = nil
		}
	}()

	t.mu.RLock()
	handler, ok := t.requests[request.Method]
	sessionID := t.sessionID
	t.mu.RUnlock()
	if !ok {
		return errorResponse(request.ID, protocol.MethodNotFound, "Method not found: "+request.Method), nil
	}

	ctx = ContextWithRequestExtra(ctx, RequestExtra{
		RequestID: request.ID,
		SessionID: sessionID,
		Meta:      extractMeta(request.Params),
	})

	result, err := handler(ctx, request.Params)
	if err != nil {
		converted := mcperrors.ConvertStandardError(request.Method, err)
		return protocol.NewErrorResponse(request.ID, mcperrors.ToJSONRPCError(converted)), nil
	}
	if resp, err = protocol.NewResponse(request.ID, result); err != nil {
		return errorResponse(request.ID, protocol.InternalError, err.Error()), nil
	}
	return resp, nil
}

func errorResponse(id interface{}, code protocol.ErrorCode, message string) *protocol.Response {
	return protocol.NewErrorResponse(id, &protocol.Error{Code: code, Message: message})
}

// HandleNotification dispatches notification to its handler. Panics are
// returned as errors; a missing handler is ErrNoHandler.
func (t *BaseTransport) HandleNotification(ctx context.Context, notification *protocol.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error processing notification %s: %v", notification.Method, r)
		}
	}()

	t.mu.RLock()
	handler, ok := t.notifications[notification.Method]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w for notification %s", ErrNoHandler, notification.Method)
	}
	return handler(ctx, notification.Params)
}

// ExpectResponse reserves a slot for the response to id. Call it before the
// request is sent so a fast reply is not dropped.
func (t *BaseTransport) ExpectResponse(id string) <-chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()
	return ch
}

// HandleResponse delivers response to the matching ExpectResponse slot.
// Responses nobody waits for are dropped.
func (t *BaseTransport) HandleResponse(response *protocol.Response) {
	if ch := t.release(fmt.Sprint(response.ID)); ch != nil {
		ch <- response
	}
}

// WaitForResponse blocks until the response for id arrives on ch or ctx ends.
func (t *BaseTransport) WaitForResponse(ctx context.Context, id string, ch <-chan *protocol.Response) (*protocol.Response, error) {
	select {
	case response, ok := <-ch:
		if !ok {
			return nil, ErrTransportClosed
		}
		return response, nil
	case <-ctx.Done():
		t.release(id)
		return nil, ctx.Err()
	}
}

func (t *BaseTransport) release(id string) chan *protocol.Response {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	ch := t.pending[id]
	delete(t.pending, id)
	return ch
}

func (t *BaseTransport) isPending(id string) bool {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	_, ok := t.pending[id]
	return ok
}

// Cleanup fails every pending request with ErrTransportClosed.
func (t *BaseTransport) Cleanup() {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}

// GetNextID returns the next request number, starting at 1.
func (t *BaseTransport) GetNextID() int64 {
	return t.lastID.Add(1)
}

// GenerateID returns a request ID such as "req_7".
func (t *BaseTransport) GenerateID() string {
	return fmt.Sprintf("%s_%d", t.idPrefix, t.GetNextID())
}

func extractMeta(params json.RawMessage) protocol.Meta {
	if len(params) == 0 || params[0] != '{' {
		return nil
	}
	var envelope struct {
		Meta protocol.Meta `json:"_meta"`
	}
	if err := json.Unmarshal(params, &envelope); err != nil {
		return nil
	}
	return envelope.Meta
}
