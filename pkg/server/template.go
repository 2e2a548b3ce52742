package server

import (
	"context"

	"github.com/yosida95/uritemplate/v3"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// ListResourcesCallback enumerates the concrete resources a template
// currently stands for.
type ListResourcesCallback func(ctx context.Context, extra transport.RequestExtra) ([]protocol.Resource, error)

// Variables holds the values a URI matched for each template variable.
// Explode modifiers can capture several values for one name.
type Variables map[string][]string

// Get returns the first value captured for name, or "".
func (v Variables) Get(name string) string {
	if vals := v[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// ResourceTemplate is an RFC 6570 URI template with an optional callback
// listing the resources it covers.
type ResourceTemplate struct {
	tmpl *uritemplate.Template
	list ListResourcesCallback
}

// NewResourceTemplate parses pattern. list may be nil when the template's
// resources cannot be enumerated.
func NewResourceTemplate(pattern string, list ListResourcesCallback) (*ResourceTemplate, error) {
	tmpl, err := uritemplate.New(pattern)
	if err != nil {
		return nil, mcperrors.InvalidTemplate(pattern, err)
	}
	return &ResourceTemplate{tmpl: tmpl, list: list}, nil
}

// MustResourceTemplate is like NewResourceTemplate but panics on error.
func MustResourceTemplate(pattern string, list ListResourcesCallback) *ResourceTemplate {
	t, err := NewResourceTemplate(pattern, list)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template source.
func (t *ResourceTemplate) String() string {
	return t.tmpl.Raw()
}

// VariableNames lists the template's variables in order of appearance.
func (t *ResourceTemplate) VariableNames() []string {
	return t.tmpl.Varnames()
}

// Match reports whether uri is an expansion of the template. A template
// without variables matches its literal text with empty Variables.
func (t *ResourceTemplate) Match(uri string) (Variables, bool) {
	values := t.tmpl.Match(uri)
	if values == nil {
		return nil, false
	}

	vars := make(Variables, len(values))
	for name, value := range values {
		if value.T == uritemplate.ValueTypeString {
			vars[name] = []string{value.String()}
		} else {
			vars[name] = value.List()
		}
	}
	return vars, true
}

// Expand fills the template with vars.
func (t *ResourceTemplate) Expand(vars map[string]string) (string, error) {
	values := make(uritemplate.Values, len(vars))
	for name, v := range vars {
		values.Set(name, uritemplate.String(v))
	}
	return t.tmpl.Expand(values)
}

// ListCallback returns the enumeration callback, nil if there is none.
func (t *ResourceTemplate) ListCallback() ListResourcesCallback {
	return t.list
}
