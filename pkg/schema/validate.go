package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	validator "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Problem is a single validation failure. Path is a JSON pointer into the
// arguments; it is empty for failures at the root.
type Problem struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// ValidationError lists every leaf failure found while validating.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return strings.Join(parts, "; ")
}

// Validate checks raw arguments against the shape and returns them decoded.
// Absent or null arguments are treated as an empty object.
func (s *Shape) Validate(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	value, err := validator.UnmarshalJSON(bytes.NewReader(trimmed))
	if err != nil {
		return nil, &ValidationError{Problems: []Problem{{Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}

	if err := s.compiled.Validate(value); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			return nil, &ValidationError{Problems: collectProblems(verr)}
		}
		return nil, &ValidationError{Problems: []Problem{{Message: err.Error()}}}
	}

	var args map[string]any
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, &ValidationError{Problems: []Problem{{Message: "arguments must be an object"}}}
	}
	return args, nil
}

func collectProblems(root *validator.ValidationError) []Problem {
	seen := make(map[Problem]bool)
	var problems []Problem

	var walk func(*validator.ValidationError)
	walk = func(e *validator.ValidationError) {
		if e.ErrorKind != nil && len(e.Causes) == 0 {
			msg := e.ErrorKind.LocalizedString(printer)
			// Reference wrappers carry no information of their own.
			if !strings.HasPrefix(msg, "$ref ") && !strings.HasPrefix(msg, "doesn't validate with") {
				p := Problem{Message: msg}
				if len(e.InstanceLocation) > 0 {
					p.Path = "/" + strings.Join(e.InstanceLocation, "/")
				}
				if !seen[p] {
					seen[p] = true
					problems = append(problems, p)
				}
			}
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(root)

	if len(problems) == 0 {
		problems = append(problems, Problem{Message: root.Error()})
	}
	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Path < problems[j].Path })
	return problems
}
