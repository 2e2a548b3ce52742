// Package errors provides the structured errors raised by the MCP server core.
//
// Every error carries a JSON-RPC code, a category and a severity. Errors in
// CategoryConfiguration are raised synchronously to the embedding
// application and never reach the peer. Protocol errors are converted to
// JSON-RPC error objects by ToJSONRPCError.
package errors

import (
	stderrors "errors"
	"time"
)

// Category groups error codes by who is at fault.
type Category string

const (
	// CategoryConfiguration marks misuse by the embedding application:
	// duplicate registrations, late capability changes, undeclared
	// capabilities.
	CategoryConfiguration Category = "configuration"
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategoryTransport     Category = "transport"
	CategoryInternal      Category = "internal"
	CategoryTimeout       Category = "timeout"
	CategoryCancelled     Category = "cancelled"
	CategoryProtocol      Category = "protocol"
)

// Severity is how loudly an error should be reported.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Context records where an error was raised.
type Context struct {
	RequestID string    `json:"request_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Method    string    `json:"method,omitempty"`
	Kind      string    `json:"kind,omitempty"` // tool, resource, prompt, ...
	Timestamp time.Time `json:"timestamp"`
}

// MCPError is implemented by every error this module raises.
type MCPError interface {
	error

	// Code is the JSON-RPC error code.
	Code() int
	// Message is the text sent to the peer.
	Message() string
	// Details is local diagnostic text; it is not sent.
	Details() string
	// Data is the structured payload of the JSON-RPC error object.
	Data() interface{}
	Category() Category
	Severity() Severity
	Context() *Context

	WithContext(ctx *Context) MCPError
	WithDetail(detail string) MCPError
	WithData(data interface{}) MCPError

	Unwrap() error
}

type mcpError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

func newError(cause error, code int, message string, category Category, severity Severity) *mcpError {
	return &mcpError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context:  &Context{Timestamp: time.Now()},
		cause:    cause,
	}
}

// NewError creates an error with the given code and message.
func NewError(code int, message string, category Category, severity Severity) MCPError {
	return newError(nil, code, message, category, severity)
}

// WrapError creates an error that unwraps to err.
func WrapError(err error, code int, message string, category Category, severity Severity) MCPError {
	return newError(err, code, message, category, severity)
}

func (e *mcpError) Error() string {
	if e.details == "" {
		return e.message
	}
	return e.message + ": " + e.details
}

func (e *mcpError) Code() int          { return e.code }
func (e *mcpError) Message() string    { return e.message }
func (e *mcpError) Details() string    { return e.details }
func (e *mcpError) Data() interface{}  { return e.data }
func (e *mcpError) Category() Category { return e.category }
func (e *mcpError) Severity() Severity { return e.severity }
func (e *mcpError) Context() *Context  { return e.context }
func (e *mcpError) Unwrap() error      { return e.cause }

func (e *mcpError) clone() *mcpError {
	c := *e
	return &c
}

// Is matches another MCPError with the same code, so callers can test
// against the sentinels below with errors.Is.
func (e *mcpError) Is(target error) bool {
	t, ok := target.(*mcpError)
	return ok && t.message == "" && t.code == e.code
}

// WithContext returns a copy of e carrying ctx.
func (e *mcpError) WithContext(ctx *Context) MCPError {
	c := e.clone()
	c.context = ctx
	return c
}

// WithDetail returns a copy of e with detail appended to its details.
func (e *mcpError) WithDetail(detail string) MCPError {
	c := e.clone()
	if c.details != "" {
		c.details += "; " + detail
	} else {
		c.details = detail
	}
	return c
}

// WithData returns a copy of e carrying data.
func (e *mcpError) WithData(data interface{}) MCPError {
	c := e.clone()
	c.data = data
	return c
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrDuplicateRegistration error = &mcpError{code: CodeDuplicateRegistration}
	ErrCapabilitiesLocked    error = &mcpError{code: CodeCapabilitiesLocked}
	ErrCapabilityRequired    error = &mcpError{code: CodeCapabilityRequired}
	ErrInvalidDefinition     error = &mcpError{code: CodeInvalidDefinition}
	ErrAlreadyConnected      error = &mcpError{code: CodeAlreadyConnected}
	ErrNotConnected          error = &mcpError{code: CodeNotConnected}
)

// AsMCPError finds the first MCPError in err's chain.
func AsMCPError(err error) (MCPError, bool) {
	var mcpErr MCPError
	if err != nil && stderrors.As(err, &mcpErr) {
		return mcpErr, true
	}
	return nil, false
}

// IsConfiguration reports whether err is a local misuse error that was
// never sent to the peer.
func IsConfiguration(err error) bool {
	return IsCategory(err, CategoryConfiguration)
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	mcpErr, ok := AsMCPError(err)
	return ok && mcpErr.Category() == category
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	mcpErr, ok := AsMCPError(err)
	return ok && mcpErr.Code() == code
}
