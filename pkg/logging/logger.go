// Package logging provides the structured logger used by the MCP server core.
//
// A Logger and every logger derived from it through WithFields, WithContext
// or WithError share one sink: the output, the formatter, the level and the
// hooks. Changing the level on a derived logger changes it for all of them.
// Hooks see every entry that passes the level, which is how the server
// forwards its own log lines to the client as notifications/message.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

// Level is the severity of a log entry.
type Level int

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	// FatalLevel entries exit the process after they are written.
	FatalLevel
)

var levelNames = map[Level]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	FatalLevel: "FATAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a level name such as "debug" or "WARN" to a Level.
// The empty string is info.
func ParseLevel(name string) (Level, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "info":
		return InfoLevel, nil
	case "warning":
		return WarnLevel, nil
	default:
		for level, levelName := range levelNames {
			if strings.ToLower(levelName) == n {
				return level, nil
			}
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// FromProtocolLevel maps an MCP logging level onto the local levels. notice
// folds into info; critical, alert and emergency fold into error.
func FromProtocolLevel(l protocol.LoggingLevel) Level {
	switch l {
	case protocol.LoggingLevelDebug:
		return DebugLevel
	case protocol.LoggingLevelInfo, protocol.LoggingLevelNotice:
		return InfoLevel
	case protocol.LoggingLevelWarning:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// ToProtocolLevel maps a local level onto the MCP logging levels.
func ToProtocolLevel(l Level) protocol.LoggingLevel {
	switch {
	case l <= DebugLevel:
		return protocol.LoggingLevelDebug
	case l == InfoLevel:
		return protocol.LoggingLevelInfo
	case l == WarnLevel:
		return protocol.LoggingLevelWarning
	case l == ErrorLevel:
		return protocol.LoggingLevelError
	default:
		return protocol.LoggingLevelCritical
	}
}

// Field is one key-value pair attached to an entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Time(key string, value time.Time) Field         { return Field{Key: key, Value: value} }
func Any(key string, value interface{}) Field        { return Field{Key: key, Value: value} }

// ErrorField attaches err under the "error" key.
func ErrorField(err error) Field { return Field{Key: "error", Value: err} }

// Keys lifted out of the fields into the entry header.
const (
	RequestIDKey = "request_id"
	ComponentKey = "component"
	MethodKey    = "method"
)

// Logger writes structured entries.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal writes the entry and exits with status 1.
	Fatal(msg string, fields ...Field)

	WithFields(fields ...Field) Logger
	// WithContext attaches the request ID carried by ctx, if any.
	WithContext(ctx context.Context) Logger
	// WithError attaches err. MCP errors also contribute their code,
	// category and request context.
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level

	// AddHook registers h with the sink shared by this logger and every
	// logger derived from it.
	AddHook(h Hook)
}

// Entry is a single log line before formatting. RequestID, Component and
// Method are lifted out of Fields so formatters can print them in the
// header.
type Entry struct {
	Level     Level
	Message   string
	Fields    map[string]interface{}
	Timestamp time.Time
	RequestID string
	Component string
	Method    string
}

// Formatter renders an entry, newline included.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// sink is shared by a logger and everything derived from it.
type sink struct {
	level     atomic.Int32
	formatter Formatter

	writeMu sync.Mutex
	out     io.Writer

	hookMu sync.RWMutex
	hooks  []Hook
}

type logger struct {
	sink   *sink
	fields []Field
}

// New creates an info-level logger writing to output, which defaults to
// stdout. A nil formatter means a colored text formatter.
func New(output io.Writer, formatter Formatter) Logger {
	if output == nil {
		output = os.Stdout
	}
	if formatter == nil {
		formatter = NewTextFormatter()
	}
	s := &sink{formatter: formatter, out: output}
	s.level.Store(int32(InfoLevel))
	return &logger{sink: s}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	l := New(io.Discard, NewTextFormatter())
	l.SetLevel(FatalLevel + 1)
	return l
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *logger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	os.Exit(1)
}

func (l *logger) WithFields(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &logger{sink: l.sink, fields: merged}
}

func (l *logger) WithContext(ctx context.Context) Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return l.WithFields(String(RequestIDKey, requestID))
	}
	return l
}

func (l *logger) WithError(err error) Logger {
	fields := []Field{ErrorField(err)}

	if mcpErr, ok := mcperrors.AsMCPError(err); ok {
		fields = append(fields,
			Int("error_code", mcpErr.Code()),
			String("error_category", string(mcpErr.Category())),
		)
		if ctx := mcpErr.Context(); ctx != nil {
			for key, value := range map[string]string{
				RequestIDKey: ctx.RequestID,
				ComponentKey: ctx.Kind,
				MethodKey:    ctx.Method,
			} {
				if value != "" {
					fields = append(fields, String(key, value))
				}
			}
		}
	}
	return l.WithFields(fields...)
}

func (l *logger) SetLevel(level Level) { l.sink.level.Store(int32(level)) }
func (l *logger) GetLevel() Level      { return Level(l.sink.level.Load()) }

func (l *logger) AddHook(h Hook) {
	l.sink.hookMu.Lock()
	l.sink.hooks = append(l.sink.hooks, h)
	l.sink.hookMu.Unlock()
}

func (l *logger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}

	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Timestamp: time.Now(),
	}
	// Later fields win.
	for _, f := range l.fields {
		entry.Fields[f.Key] = f.Value
	}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}
	entry.RequestID, _ = entry.Fields[RequestIDKey].(string)
	entry.Component, _ = entry.Fields[ComponentKey].(string)
	entry.Method, _ = entry.Fields[MethodKey].(string)

	l.sink.write(entry)
	l.sink.fire(entry)
}

func (s *sink) write(entry *Entry) {
	data, err := s.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: format entry: %v\n", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "logging: write entry: %v\n", err)
	}
}

// fire runs the hooks outside every lock so a hook may log.
func (s *sink) fire(entry *Entry) {
	s.hookMu.RLock()
	hooks := s.hooks
	s.hookMu.RUnlock()

	for _, h := range hooks {
		h.Fire(entry)
	}
}

type contextKey struct{}

// ContextWithRequestID returns a context carrying requestID.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}
