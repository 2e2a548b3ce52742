package protocol

import "encoding/json"

// LatestProtocolVersion is the newest protocol revision this module speaks.
const LatestProtocolVersion = "2025-03-26"

// SupportedProtocolVersions lists, newest first, every revision a peer may
// request during the handshake. A request for any other revision is answered with
// LatestProtocolVersion.
var SupportedProtocolVersions = []string{
	LatestProtocolVersion,
	"2024-11-05",
	"2024-10-07",
}

// IsSupportedProtocolVersion reports whether v appears in SupportedProtocolVersions.
func IsSupportedProtocolVersion(v string) bool {
	for _, s := range SupportedProtocolVersions {
		if s == v {
			return true
		}
	}
	return false
}

const (
	// Lifecycle
	MethodInitialize        = "initialize"
	NotificationInitialized = "notifications/initialized"
	MethodPing              = "ping"

	// Tools
	MethodListTools              = "tools/list"
	MethodCallTool               = "tools/call"
	NotificationToolsListChanged = "notifications/tools/list_changed"

	// Resources
	MethodListResources              = "resources/list"
	MethodListResourceTemplates      = "resources/templates/list"
	MethodReadResource               = "resources/read"
	NotificationResourceUpdated      = "notifications/resources/updated"
	NotificationResourcesListChanged = "notifications/resources/list_changed"

	// Prompts
	MethodListPrompts              = "prompts/list"
	MethodGetPrompt                = "prompts/get"
	NotificationPromptsListChanged = "notifications/prompts/list_changed"

	// Client features requested by the server
	MethodCreateMessage = "sampling/createMessage"
	MethodListRoots     = "roots/list"

	// Logging
	MethodSetLogLevel   = "logging/setLevel"
	NotificationMessage = "notifications/message"

	// Utilities
	NotificationCancelled = "notifications/cancelled"
	NotificationProgress  = "notifications/progress"
)

// Meta is the free-form "_meta" object a request may carry.
type Meta map[string]interface{}

// ProgressToken returns the progress token the peer attached, if any.
func (m Meta) ProgressToken() (interface{}, bool) {
	tok, ok := m["progressToken"]
	return tok, ok && tok != nil
}

// Implementation names a client or server and its version.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is sent by the client to open a session.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// EmptyResult is returned by methods whose success carries no data, such as ping.
type EmptyResult struct{}

// LoggingLevel follows the syslog severities used by notifications/message.
type LoggingLevel string

const (
	LoggingLevelDebug     LoggingLevel = "debug"
	LoggingLevelInfo      LoggingLevel = "info"
	LoggingLevelNotice    LoggingLevel = "notice"
	LoggingLevelWarning   LoggingLevel = "warning"
	LoggingLevelError     LoggingLevel = "error"
	LoggingLevelCritical  LoggingLevel = "critical"
	LoggingLevelAlert     LoggingLevel = "alert"
	LoggingLevelEmergency LoggingLevel = "emergency"
)

// SetLevelParams is sent by the client to adjust server log verbosity.
type SetLevelParams struct {
	Level LoggingLevel `json:"level"`
}

// LoggingMessageParams is the payload of notifications/message.
type LoggingMessageParams struct {
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
	Data   interface{}  `json:"data"`
}

// ProgressParams is the payload of notifications/progress.
type ProgressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress"`
	Total         float64     `json:"total,omitempty"`
	Message       string      `json:"message,omitempty"`
}

// CancelledParams is the payload of notifications/cancelled.
type CancelledParams struct {
	RequestID interface{} `json:"requestId"`
	Reason    string      `json:"reason,omitempty"`
}

// DecodeParams unmarshals raw handler params into v. Missing params decode
// into the zero value.
func DecodeParams(params interface{}, v interface{}) error {
	var raw []byte
	switch p := params.(type) {
	case nil:
		return nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		raw = b
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
