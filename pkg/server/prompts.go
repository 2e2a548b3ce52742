package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/schema"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// PromptDefinition describes a prompt. Arguments, when set, must be an
// object shape whose properties are strings.
type PromptDefinition struct {
	Name        string
	Description string
	Arguments   *schema.Shape
}

// PromptCallback renders a prompt from its (validated) arguments.
type PromptCallback func(ctx context.Context, args map[string]string, extra transport.RequestExtra) (*protocol.GetPromptResult, error)

type registeredPrompt struct {
	name        string
	description string
	shape       *schema.Shape
	callback    PromptCallback
}

// RegisterPrompt adds a prompt. Names are unique.
func (m *MCPServer) RegisterPrompt(def PromptDefinition, callback PromptCallback) error {
	if def.Name == "" {
		return invalidDefinition("prompt name must not be empty")
	}
	if callback == nil {
		return invalidDefinition(fmt.Sprintf("prompt %q has no callback", def.Name))
	}

	m.prompts.mu.Lock()
	if m.prompts.has(def.Name) {
		m.prompts.mu.Unlock()
		return mcperrors.DuplicateRegistration("prompt", def.Name)
	}
	err := m.ensureInstalled(&m.promptsInstalled,
		protocol.Capabilities{Prompts: &protocol.PromptsCapability{ListChanged: true}},
		map[string]transport.RequestHandler{
			protocol.MethodListPrompts: m.handleListPrompts,
			protocol.MethodGetPrompt:   m.handleGetPrompt,
		})
	if err != nil {
		m.prompts.mu.Unlock()
		return err
	}
	m.prompts.add(def.Name, &registeredPrompt{
		name:        def.Name,
		description: def.Description,
		shape:       def.Arguments,
		callback:    callback,
	})
	m.prompts.mu.Unlock()

	m.announceListChanged(protocol.NotificationPromptsListChanged)
	return nil
}

// AddPrompt registers a prompt whose arguments decode into A, a struct of
// string fields.
func AddPrompt[A any](m *MCPServer, name, description string, fn func(ctx context.Context, args A, extra transport.RequestExtra) (*protocol.GetPromptResult, error)) error {
	shape, err := schema.For[A]()
	if err != nil {
		return mcperrors.InvalidSchema("prompt "+name, err)
	}

	return m.RegisterPrompt(PromptDefinition{Name: name, Description: description, Arguments: shape},
		func(ctx context.Context, args map[string]string, extra transport.RequestExtra) (*protocol.GetPromptResult, error) {
			var typed A
			if err := remarshal(args, &typed); err != nil {
				return nil, err
			}
			return fn(ctx, typed, extra)
		})
}

func (m *MCPServer) handleListPrompts(ctx context.Context, params interface{}) (interface{}, error) {
	prompts := m.prompts.snapshot()

	result := &protocol.ListPromptsResult{Prompts: make([]protocol.Prompt, 0, len(prompts))}
	for _, p := range prompts {
		entry := protocol.Prompt{Name: p.name, Description: p.description}
		if p.shape != nil {
			for _, prop := range p.shape.Properties() {
				entry.Arguments = append(entry.Arguments, protocol.PromptArgument{
					Name:        prop.Name,
					Description: prop.Description,
					Required:    prop.Required,
				})
			}
		}
		result.Prompts = append(result.Prompts, entry)
	}
	return result, nil
}

func (m *MCPServer) handleGetPrompt(ctx context.Context, params interface{}) (interface{}, error) {
	var req protocol.GetPromptParams
	if err := protocol.DecodeParams(params, &req); err != nil {
		return nil, mcperrors.InvalidParams(fmt.Sprintf("invalid prompts/get params: %v", err))
	}

	prompt, ok := m.prompts.get(req.Name)
	if !ok {
		return nil, mcperrors.PromptNotFound(req.Name)
	}

	if prompt.shape != nil {
		raw, err := json.Marshal(req.Arguments)
		if err != nil {
			return nil, mcperrors.InvalidArguments("prompt "+prompt.name, err, nil)
		}
		if _, err := prompt.shape.Validate(raw); err != nil {
			return nil, mcperrors.InvalidArguments("prompt "+prompt.name, err, validationDetails(err))
		}
	}

	m.server.annotate(ctx, observability.AttrPromptName.String(prompt.name))

	start := time.Now()
	result, err := prompt.callback(ctx, req.Arguments, transport.RequestExtraFromContext(ctx))

	if metrics := m.server.metrics; metrics != nil {
		status := observability.StatusSuccess
		if err != nil {
			status = observability.StatusError
		}
		metrics.RecordPromptExecution(ctx, prompt.name, status, time.Since(start))
	}

	if err != nil {
		return nil, err
	}
	if result == nil {
		return &protocol.GetPromptResult{Messages: []protocol.PromptMessage{}}, nil
	}
	if result.Messages == nil {
		out := *result
		out.Messages = []protocol.PromptMessage{}
		return &out, nil
	}
	return result, nil
}
