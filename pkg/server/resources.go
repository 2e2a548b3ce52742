package server

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// ResourceMetadata is the optional listing information of a resource or
// template. Meta carries any further descriptive fields; it is listed as
// "_meta".
type ResourceMetadata struct {
	Description string
	MimeType    string
	Annotations *protocol.Annotations
	Meta        protocol.Meta
}

// ReadResourceCallback reads a fixed resource.
type ReadResourceCallback func(ctx context.Context, uri string, extra transport.RequestExtra) (*protocol.ReadResourceResult, error)

// ReadResourceTemplateCallback reads a resource addressed through a
// template; vars holds the values the URI matched.
type ReadResourceTemplateCallback func(ctx context.Context, uri string, vars Variables, extra transport.RequestExtra) (*protocol.ReadResourceResult, error)

type registeredResource struct {
	name     string
	uri      string
	metadata ResourceMetadata
	read     ReadResourceCallback
}

type registeredResourceTemplate struct {
	name     string
	template *ResourceTemplate
	metadata ResourceMetadata
	read     ReadResourceTemplateCallback
}

// RegisterResource adds a resource at a fixed URI. URIs are unique.
func (m *MCPServer) RegisterResource(name, uri string, metadata ResourceMetadata, read ReadResourceCallback) error {
	if uri == "" {
		return invalidDefinition(fmt.Sprintf("resource %q has no URI", name))
	}
	if read == nil {
		return invalidDefinition(fmt.Sprintf("resource %q has no read callback", uri))
	}

	m.resources.mu.Lock()
	if m.resources.has(uri) {
		m.resources.mu.Unlock()
		return mcperrors.DuplicateRegistration("resource", uri)
	}
	if err := m.installResourceHandlers(); err != nil {
		m.resources.mu.Unlock()
		return err
	}
	m.resources.add(uri, &registeredResource{name: name, uri: uri, metadata: metadata, read: read})
	m.resources.mu.Unlock()

	m.announceListChanged(protocol.NotificationResourcesListChanged)
	return nil
}

// RegisterResourceTemplate adds a templated resource. Template names are unique.
func (m *MCPServer) RegisterResourceTemplate(name string, template *ResourceTemplate, metadata ResourceMetadata, read ReadResourceTemplateCallback) error {
	if name == "" {
		return invalidDefinition("resource template name must not be empty")
	}
	if template == nil || read == nil {
		return invalidDefinition(fmt.Sprintf("resource template %q needs a template and a read callback", name))
	}

	m.templates.mu.Lock()
	if m.templates.has(name) {
		m.templates.mu.Unlock()
		return mcperrors.DuplicateRegistration("resource template", name)
	}
	if err := m.installResourceHandlers(); err != nil {
		m.templates.mu.Unlock()
		return err
	}
	m.templates.add(name, &registeredResourceTemplate{name: name, template: template, metadata: metadata, read: read})
	m.templates.mu.Unlock()

	m.announceListChanged(protocol.NotificationResourcesListChanged)
	return nil
}

func (m *MCPServer) installResourceHandlers() error {
	return m.ensureInstalled(&m.resourcesInstalled,
		protocol.Capabilities{Resources: &protocol.ResourcesCapability{ListChanged: true}},
		map[string]transport.RequestHandler{
			protocol.MethodListResources:         m.handleListResources,
			protocol.MethodListResourceTemplates: m.handleListResourceTemplates,
			protocol.MethodReadResource:          m.handleReadResource,
		})
}

func (m *MCPServer) handleListResources(ctx context.Context, params interface{}) (interface{}, error) {
	start := time.Now()
	result, err := m.listResources(ctx)
	m.recordResourceOperation(ctx, observability.OperationList, "", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// listResources returns fixed resources first, then whatever each template
// enumerates, both in registration order. Template callbacks run
// concurrently; the first error fails the whole listing.
func (m *MCPServer) listResources(ctx context.Context) (*protocol.ListResourcesResult, error) {
	fixed := m.resources.snapshot()
	templates := m.templates.snapshot()
	extra := transport.RequestExtraFromContext(ctx)

	enumerated := make([][]protocol.Resource, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range templates {
		list := t.template.ListCallback()
		if list == nil {
			continue
		}
		i, t := i, t
		g.Go(func() error {
			found, err := list(gctx, extra)
			if err != nil {
				return fmt.Errorf("listing resources of template %q: %w", t.name, err)
			}
			// found belongs to the callback and may be shared between calls.
			listed := make([]protocol.Resource, len(found))
			for j, r := range found {
				listed[j] = withTemplateMetadata(r, t.metadata)
			}
			enumerated[i] = listed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &protocol.ListResourcesResult{Resources: make([]protocol.Resource, 0, len(fixed))}
	for _, r := range fixed {
		result.Resources = append(result.Resources, protocol.Resource{
			URI:         r.uri,
			Name:        r.name,
			Description: r.metadata.Description,
			MimeType:    r.metadata.MimeType,
			Annotations: r.metadata.Annotations,
			Meta:        r.metadata.Meta,
		})
	}
	for _, found := range enumerated {
		result.Resources = append(result.Resources, found...)
	}
	return result, nil
}

// withTemplateMetadata overlays the template's metadata on r, a copy of the
// enumerated entry; the template's fields win where set. Meta is merged key
// by key into a fresh map.
func withTemplateMetadata(r protocol.Resource, md ResourceMetadata) protocol.Resource {
	if md.Description != "" {
		r.Description = md.Description
	}
	if md.MimeType != "" {
		r.MimeType = md.MimeType
	}
	if md.Annotations != nil {
		r.Annotations = md.Annotations
	}
	if len(md.Meta) > 0 {
		merged := make(protocol.Meta, len(r.Meta)+len(md.Meta))
		for k, v := range r.Meta {
			merged[k] = v
		}
		for k, v := range md.Meta {
			merged[k] = v
		}
		r.Meta = merged
	}
	return r
}

func (m *MCPServer) handleListResourceTemplates(ctx context.Context, params interface{}) (interface{}, error) {
	start := time.Now()
	templates := m.templates.snapshot()

	result := &protocol.ListResourceTemplatesResult{
		ResourceTemplates: make([]protocol.ResourceTemplate, 0, len(templates)),
	}
	for _, t := range templates {
		result.ResourceTemplates = append(result.ResourceTemplates, protocol.ResourceTemplate{
			URITemplate: t.template.String(),
			Name:        t.name,
			Description: t.metadata.Description,
			MimeType:    t.metadata.MimeType,
			Annotations: t.metadata.Annotations,
			Meta:        t.metadata.Meta,
		})
	}

	m.recordResourceOperation(ctx, observability.OperationListTemplates, "", nil, time.Since(start))
	return result, nil
}

func (m *MCPServer) handleReadResource(ctx context.Context, params interface{}) (interface{}, error) {
	var req protocol.ReadResourceParams
	if err := protocol.DecodeParams(params, &req); err != nil {
		return nil, mcperrors.InvalidParams(fmt.Sprintf("invalid resources/read params: %v", err))
	}
	m.server.annotate(ctx, observability.AttrResourceURI.String(req.URI))

	start := time.Now()
	result, name, err := m.readResource(ctx, req.URI)
	m.recordResourceOperation(ctx, observability.OperationRead, name, err, time.Since(start))
	if name != "" {
		m.server.annotate(ctx, observability.AttrResource.String(name))
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// readResource tries the exact URI first and then each template in
// registration order. It also returns the name of the registration that
// served the read. Callback errors are returned unchanged.
func (m *MCPServer) readResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, string, error) {
	extra := transport.RequestExtraFromContext(ctx)

	if r, ok := m.resources.get(uri); ok {
		result, err := nonNilContents(r.read(ctx, uri, extra))
		return result, r.name, err
	}

	for _, t := range m.templates.snapshot() {
		if vars, ok := t.template.Match(uri); ok {
			result, err := nonNilContents(t.read(ctx, uri, vars, extra))
			return result, t.name, err
		}
	}

	return nil, "", mcperrors.ResourceNotFoundByURI(uri)
}

func nonNilContents(result *protocol.ReadResourceResult, err error) (*protocol.ReadResourceResult, error) {
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{}}, nil
	}
	if result.Contents == nil {
		out := *result
		out.Contents = []protocol.ResourceContents{}
		return &out, nil
	}
	return result, nil
}

func (m *MCPServer) recordResourceOperation(ctx context.Context, operation, resource string, err error, d time.Duration) {
	metrics := m.server.metrics
	if metrics == nil {
		return
	}
	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
	}
	metrics.RecordResourceOperation(ctx, operation, resource, status, d)
}
