// Package schema compiles JSON Schema documents into argument shapes and
// validates tool and prompt arguments against them.
//
// A Shape is built either from a raw JSON Schema (NewShape) or reflected
// from a Go type (For). Validation uses the draft 2020-12 rules of
// github.com/santhosh-tekuri/jsonschema/v6; reflection uses
// github.com/invopop/jsonschema.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const shapeURL = "mcp://shape.json"

// Shape is a compiled argument schema. It is immutable and safe for
// concurrent use.
type Shape struct {
	raw      json.RawMessage
	outline  outline
	compiled *validator.Schema
}

// outline is the part of the document Properties needs. Property order is
// kept from the source.
type outline struct {
	Properties *orderedmap.OrderedMap[string, json.RawMessage] `json:"properties,omitempty"`
	Required   []string                                        `json:"required,omitempty"`
}

// Property describes one top-level property of an object shape.
type Property struct {
	Name        string
	Description string
	Required    bool
}

// NewShape compiles a JSON Schema document.
func NewShape(raw json.RawMessage) (*Shape, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty schema")
	}

	value, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	c := validator.NewCompiler()
	c.DefaultDraft(validator.Draft2020)
	c.AssertFormat()
	if err := c.AddResource(shapeURL, value); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	compiled, err := c.Compile(shapeURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	var o outline
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("reading schema properties: %w", err)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	return &Shape{
		raw:      compact.Bytes(),
		outline:  o,
		compiled: compiled,
	}, nil
}

// MustShape is like NewShape but panics on error. Intended for package-level
// schema literals.
func MustShape(raw string) *Shape {
	s, err := NewShape(json.RawMessage(raw))
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return s
}

// For reflects the JSON Schema of T. Struct fields follow encoding/json
// naming; fields without omitempty are required and unknown properties are
// rejected. Use `jsonschema:"description=..."` tags to document fields.
func For[T any]() (*Shape, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(new(T))
	s.Version = ""
	s.ID = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding reflected schema: %w", err)
	}
	return NewShape(raw)
}

// JSONSchema returns the schema document in compact form.
func (s *Shape) JSONSchema() json.RawMessage {
	out := make(json.RawMessage, len(s.raw))
	copy(out, s.raw)
	return out
}

// Properties lists the top-level properties in declaration order.
func (s *Shape) Properties() []Property {
	if s.outline.Properties == nil {
		return nil
	}

	required := make(map[string]bool, len(s.outline.Required))
	for _, name := range s.outline.Required {
		required[name] = true
	}

	props := make([]Property, 0, s.outline.Properties.Len())
	for el := s.outline.Properties.Oldest(); el != nil; el = el.Next() {
		p := Property{Name: el.Key, Required: required[el.Key]}
		var annotations struct {
			Description string `json:"description"`
		}
		if json.Unmarshal(el.Value, &annotations) == nil {
			p.Description = annotations.Description
		}
		props = append(props, p)
	}
	return props
}
