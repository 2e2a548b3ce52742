package errors

// JSON-RPC 2.0 standard error codes
const (
	CodeParseError     int = -32700
	CodeInvalidRequest int = -32600
	CodeMethodNotFound int = -32601
	CodeInvalidParams  int = -32602
	CodeInternalError  int = -32603
)

// MCP server error codes
const (
	// Request lifecycle (-32300 to -32399)
	CodeRequestCancelled int = -32300 // Request was cancelled
	CodeRequestTimeout   int = -32301 // Request timed out

	// Capability errors (-32400 to -32409)
	CodeCapabilityRequired int = -32401 // Capability required by the method is not declared

	// Configuration errors (-32410 to -32419); raised locally, never sent
	CodeDuplicateRegistration int = -32410 // Name or URI already registered
	CodeCapabilitiesLocked    int = -32411 // Capabilities changed after Connect
	CodeInvalidDefinition     int = -32412 // Malformed template or schema
	CodeAlreadyConnected      int = -32413 // Connect called twice
	CodeNotConnected          int = -32414 // Outbound call before Connect
)

// ErrorCodeInfo describes a registered error code.
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	CodeRequestCancelled: {CodeRequestCancelled, "RequestCancelled", "Request cancelled", CategoryCancelled, SeverityInfo},
	CodeRequestTimeout:   {CodeRequestTimeout, "RequestTimeout", "Request timed out", CategoryTimeout, SeverityError},

	CodeCapabilityRequired: {CodeCapabilityRequired, "CapabilityRequired", "Required capability not declared", CategoryConfiguration, SeverityError},

	CodeDuplicateRegistration: {CodeDuplicateRegistration, "DuplicateRegistration", "Already registered", CategoryConfiguration, SeverityError},
	CodeCapabilitiesLocked:    {CodeCapabilitiesLocked, "CapabilitiesLocked", "Capabilities cannot change after connect", CategoryConfiguration, SeverityError},
	CodeInvalidDefinition:     {CodeInvalidDefinition, "InvalidDefinition", "Invalid template or schema", CategoryConfiguration, SeverityError},
	CodeAlreadyConnected:      {CodeAlreadyConnected, "AlreadyConnected", "Server already connected", CategoryConfiguration, SeverityError},
	CodeNotConnected:          {CodeNotConnected, "NotConnected", "Server not connected", CategoryConfiguration, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code. Unknown codes
// received from a peer are treated as protocol errors.
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryProtocol
}

// GetErrorCodeSeverity returns the severity of an error code
func GetErrorCodeSeverity(code int) Severity {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Severity
	}
	return SeverityError
}
