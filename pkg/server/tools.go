package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/schema"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

var defaultInputSchema = json.RawMessage(`{"type":"object"}`)

// ToolDefinition describes a tool. InputSchema is optional; without it the
// tool accepts any arguments.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *schema.Shape
}

// ToolCallback runs a tool. args holds the validated arguments; it is nil
// for a tool registered without an input schema. A returned error, or a panic, is reported to the
// client as an isError result rather than a protocol error.
type ToolCallback func(ctx context.Context, args map[string]any, extra transport.RequestExtra) (*protocol.CallToolResult, error)

type registeredTool struct {
	name        string
	description string
	shape       *schema.Shape
	callback    ToolCallback
}

// RegisterTool adds a tool. Names are unique; the first registration wins.
func (m *MCPServer) RegisterTool(def ToolDefinition, callback ToolCallback) error {
	if def.Name == "" {
		return invalidDefinition("tool name must not be empty")
	}
	if callback == nil {
		return invalidDefinition(fmt.Sprintf("tool %q has no callback", def.Name))
	}

	m.tools.mu.Lock()
	if m.tools.has(def.Name) {
		m.tools.mu.Unlock()
		return mcperrors.DuplicateRegistration("tool", def.Name)
	}
	err := m.ensureInstalled(&m.toolsInstalled,
		protocol.Capabilities{Tools: &protocol.ToolsCapability{ListChanged: true}},
		map[string]transport.RequestHandler{
			protocol.MethodListTools: m.handleListTools,
			protocol.MethodCallTool:  m.handleCallTool,
		})
	if err != nil {
		m.tools.mu.Unlock()
		return err
	}
	m.tools.add(def.Name, &registeredTool{
		name:        def.Name,
		description: def.Description,
		shape:       def.InputSchema,
		callback:    callback,
	})
	m.tools.mu.Unlock()

	m.announceListChanged(protocol.NotificationToolsListChanged)
	return nil
}

// AddTool registers a tool whose arguments decode into A. The input schema
// is reflected from A.
func AddTool[A any](m *MCPServer, name, description string, fn func(ctx context.Context, args A, extra transport.RequestExtra) (*protocol.CallToolResult, error)) error {
	shape, err := schema.For[A]()
	if err != nil {
		return mcperrors.InvalidSchema("tool "+name, err)
	}

	return m.RegisterTool(ToolDefinition{Name: name, Description: description, InputSchema: shape},
		func(ctx context.Context, args map[string]any, extra transport.RequestExtra) (*protocol.CallToolResult, error) {
			var typed A
			if err := remarshal(args, &typed); err != nil {
				return nil, err
			}
			return fn(ctx, typed, extra)
		})
}

func (m *MCPServer) handleListTools(ctx context.Context, params interface{}) (interface{}, error) {
	tools := m.tools.snapshot()

	result := &protocol.ListToolsResult{Tools: make([]protocol.Tool, 0, len(tools))}
	for _, t := range tools {
		inputSchema := defaultInputSchema
		if t.shape != nil {
			inputSchema = t.shape.JSONSchema()
		}
		result.Tools = append(result.Tools, protocol.Tool{
			Name:        t.name,
			Description: t.description,
			InputSchema: inputSchema,
		})
	}
	return result, nil
}

func (m *MCPServer) handleCallTool(ctx context.Context, params interface{}) (interface{}, error) {
	var req protocol.CallToolParams
	if err := protocol.DecodeParams(params, &req); err != nil {
		return nil, mcperrors.InvalidParams(fmt.Sprintf("invalid tools/call params: %v", err))
	}

	tool, ok := m.tools.get(req.Name)
	if !ok {
		return nil, mcperrors.ToolNotFound(req.Name)
	}

	// A tool without an input shape takes no arguments; whatever the
	// client sent is ignored.
	var args map[string]any
	if tool.shape != nil {
		validated, err := tool.shape.Validate(req.Arguments)
		if err != nil {
			return nil, mcperrors.InvalidArguments("tool "+tool.name, err, validationDetails(err))
		}
		args = validated
	}

	m.server.annotate(ctx, observability.AttrToolName.String(tool.name))

	start := time.Now()
	result := m.invokeTool(ctx, tool, args)
	m.server.annotate(ctx, observability.AttrToolIsError.Bool(result.IsError))

	if metrics := m.server.metrics; metrics != nil {
		status := observability.StatusSuccess
		if result.IsError {
			status = observability.StatusToolError
		}
		metrics.RecordToolCall(ctx, tool.name, status, time.Since(start))
	}
	return result, nil
}

// invokeTool is the only place where callback failures are caught.
func (m *MCPServer) invokeTool(ctx context.Context, tool *registeredTool, args map[string]any) (result *protocol.CallToolResult) {
	defer func() {
		if r := recover(); r != nil {
			m.server.logger.Error("tool panicked",
				logging.String("tool", tool.name),
				logging.Any("panic", r),
			)
			result = protocol.NewToolResultError(fmt.Sprint(r))
		}
	}()

	res, err := tool.callback(ctx, args, transport.RequestExtraFromContext(ctx))
	if err != nil {
		m.server.logger.Debug("tool returned an error",
			logging.String("tool", tool.name),
			logging.ErrorField(err),
		)
		return protocol.NewToolResultError(err.Error())
	}
	if res == nil {
		return &protocol.CallToolResult{Content: []protocol.Content{}}
	}
	// The callback owns res; copy before filling in defaults.
	out := *res
	if out.Content == nil {
		out.Content = []protocol.Content{}
	}
	return &out
}

func validationDetails(err error) interface{} {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return verr.Problems
	}
	return nil
}

func invalidDefinition(msg string) error {
	return mcperrors.NewError(mcperrors.CodeInvalidDefinition, msg, mcperrors.CategoryConfiguration, mcperrors.SeverityError)
}

// remarshal converts validated arguments into a typed value.
func remarshal(in interface{}, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
