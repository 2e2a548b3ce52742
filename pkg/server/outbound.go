package server

import (
	"context"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

func (s *Server) request(ctx context.Context, method string, params, result interface{}) error {
	if err := s.assertCapabilityForMethod(method); err != nil {
		return err
	}
	t := s.currentTransport()
	if t == nil {
		return mcperrors.NotConnected(method)
	}

	raw, err := t.SendRequest(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := protocol.DecodeParams(raw, result); err != nil {
		return mcperrors.InternalError(method, err)
	}
	return nil
}

func (s *Server) notify(ctx context.Context, method string, params interface{}) error {
	if err := s.assertNotificationCapability(method); err != nil {
		return err
	}
	t := s.currentTransport()
	if t == nil {
		return mcperrors.NotConnected(method)
	}
	return t.SendNotification(ctx, method, params)
}

// Ping checks that the client is responsive.
func (s *Server) Ping(ctx context.Context) error {
	return s.request(ctx, protocol.MethodPing, nil, nil)
}

// CreateMessage asks the client to sample from its LLM. The client must have
// declared sampling.
func (s *Server) CreateMessage(ctx context.Context, params *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
	var result protocol.CreateMessageResult
	if err := s.request(ctx, protocol.MethodCreateMessage, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRoots asks the client for its roots. The client must have declared roots.
func (s *Server) ListRoots(ctx context.Context) (*protocol.ListRootsResult, error) {
	var result protocol.ListRootsResult
	if err := s.request(ctx, protocol.MethodListRoots, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendResourceUpdated tells a subscribed client that uri changed.
func (s *Server) SendResourceUpdated(ctx context.Context, uri string) error {
	return s.notify(ctx, protocol.NotificationResourceUpdated, &protocol.ResourceUpdatedParams{URI: uri})
}

// SendResourceListChanged tells the client to list resources again.
func (s *Server) SendResourceListChanged(ctx context.Context) error {
	return s.notify(ctx, protocol.NotificationResourcesListChanged, nil)
}

// SendToolListChanged tells the client to list tools again.
func (s *Server) SendToolListChanged(ctx context.Context) error {
	return s.notify(ctx, protocol.NotificationToolsListChanged, nil)
}

// SendPromptListChanged tells the client to list prompts again.
func (s *Server) SendPromptListChanged(ctx context.Context) error {
	return s.notify(ctx, protocol.NotificationPromptsListChanged, nil)
}

// SendProgress reports progress for the request that carried params.ProgressToken.
func (s *Server) SendProgress(ctx context.Context, params *protocol.ProgressParams) error {
	return s.notify(ctx, protocol.NotificationProgress, params)
}

// SendCancelled tells the client this side abandoned one of its requests.
func (s *Server) SendCancelled(ctx context.Context, params *protocol.CancelledParams) error {
	return s.notify(ctx, protocol.NotificationCancelled, params)
}
