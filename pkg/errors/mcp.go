package errors

import (
	"fmt"
	"time"
)

// CapabilityErrorData is attached to capability guard failures.
type CapabilityErrorData struct {
	Capability string `json:"capability"`
	Method     string `json:"method"`
	// Side is "client" when the peer lacks the capability and "server"
	// when this side never declared it.
	Side string `json:"side"`
}

// RegistrationErrorData identifies the clashing registration.
type RegistrationErrorData struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// ResourceErrorData is attached to unresolved resource reads.
type ResourceErrorData struct {
	URI string `json:"uri"`
}

// ArgumentErrorData carries the validation failure for a tool or prompt call.
type ArgumentErrorData struct {
	Target string      `json:"target"`
	Errors interface{} `json:"errors,omitempty"`
}

// Configuration errors

// DuplicateRegistration reports a second registration under the same key.
// kind is "tool", "resource", "resource template" or "prompt".
func DuplicateRegistration(kind, key string) MCPError {
	return NewError(
		CodeDuplicateRegistration,
		fmt.Sprintf("%s %q is already registered", kind, key),
		CategoryConfiguration,
		SeverityError,
	).WithData(&RegistrationErrorData{Kind: kind, Key: key})
}

// CapabilitiesLocked reports a capability change after a transport was attached.
func CapabilitiesLocked() MCPError {
	return NewError(
		CodeCapabilitiesLocked,
		"cannot register capabilities after connecting to transport",
		CategoryConfiguration,
		SeverityError,
	)
}

// CapabilityNotDeclared reports that method needs capability on side.
func CapabilityNotDeclared(side, capability, method string) MCPError {
	return NewError(
		CodeCapabilityRequired,
		fmt.Sprintf("%s does not support %s (required for %s)", side, capability, method),
		CategoryConfiguration,
		SeverityError,
	).WithData(&CapabilityErrorData{Capability: capability, Method: method, Side: side})
}

// InvalidTemplate reports a URI template that failed to parse.
func InvalidTemplate(pattern string, cause error) MCPError {
	return WrapError(
		cause,
		CodeInvalidDefinition,
		fmt.Sprintf("invalid URI template %q", pattern),
		CategoryConfiguration,
		SeverityError,
	).WithDetail(cause.Error())
}

// InvalidSchema reports an input shape that could not be compiled.
func InvalidSchema(owner string, cause error) MCPError {
	return WrapError(
		cause,
		CodeInvalidDefinition,
		fmt.Sprintf("invalid input schema for %s", owner),
		CategoryConfiguration,
		SeverityError,
	).WithDetail(cause.Error())
}

// AlreadyConnected reports a second Connect on the same server.
func AlreadyConnected() MCPError {
	return NewError(CodeAlreadyConnected, "server is already connected to a transport", CategoryConfiguration, SeverityError)
}

// NotConnected reports an outbound call made before Connect.
func NotConnected(method string) MCPError {
	return NewError(
		CodeNotConnected,
		fmt.Sprintf("cannot send %s: not connected", method),
		CategoryConfiguration,
		SeverityError,
	)
}

// Protocol errors

// InvalidParams reports malformed request parameters.
func InvalidParams(message string) MCPError {
	return NewError(CodeInvalidParams, message, CategoryValidation, SeverityError)
}

// ToolNotFound reports a tools/call for an unregistered tool.
func ToolNotFound(name string) MCPError {
	return NewError(
		CodeInvalidParams,
		fmt.Sprintf("Tool %s not found", name),
		CategoryNotFound,
		SeverityError,
	).WithData(&RegistrationErrorData{Kind: "tool", Key: name})
}

// PromptNotFound reports a prompts/get for an unregistered prompt.
func PromptNotFound(name string) MCPError {
	return NewError(
		CodeInvalidParams,
		fmt.Sprintf("Prompt %s not found", name),
		CategoryNotFound,
		SeverityError,
	).WithData(&RegistrationErrorData{Kind: "prompt", Key: name})
}

// ResourceNotFoundByURI reports a resources/read no resource or template matched.
func ResourceNotFoundByURI(uri string) MCPError {
	return NewError(
		CodeInvalidParams,
		fmt.Sprintf("Resource %s not found", uri),
		CategoryNotFound,
		SeverityError,
	).WithData(&ResourceErrorData{URI: uri})
}

// InvalidArguments reports arguments that failed validation for target,
// e.g. "tool echo". details is attached as the error data.
func InvalidArguments(target string, cause error, details interface{}) MCPError {
	return WrapError(
		cause,
		CodeInvalidParams,
		fmt.Sprintf("Invalid arguments for %s: %s", target, cause.Error()),
		CategoryValidation,
		SeverityError,
	).WithData(&ArgumentErrorData{Target: target, Errors: details})
}

// Runtime errors

// RequestCancelled reports a request abandoned through its context.
func RequestCancelled(method string) MCPError {
	return NewError(
		CodeRequestCancelled,
		fmt.Sprintf("Request %s was cancelled", method),
		CategoryCancelled,
		SeverityInfo,
	)
}

// RequestTimeout reports a request whose context deadline passed.
func RequestTimeout(method string) MCPError {
	return NewError(
		CodeRequestTimeout,
		fmt.Sprintf("Request %s timed out", method),
		CategoryTimeout,
		SeverityError,
	)
}

// InternalError wraps an unexpected failure while handling method.
func InternalError(method string, cause error) MCPError {
	return WrapError(
		cause,
		CodeInternalError,
		cause.Error(),
		CategoryInternal,
		SeverityError,
	).WithContext(&Context{Method: method, Timestamp: time.Now()})
}
