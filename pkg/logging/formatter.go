package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TextFormatter renders entries as
//
//	2024-01-02 15:04:05.000 [INFO] [req-1] mcp-server/tools/call: message | k=v
//
// The header keys are not repeated among the trailing fields.
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
	// DisableSorting keeps fields in map order.
	DisableSorting bool
}

func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "2006-01-02 15:04:05.000"}
}

var levelColors = map[Level]string{
	DebugLevel: "\033[90m",
	InfoLevel:  "\033[34m",
	WarnLevel:  "\033[33m",
	ErrorLevel: "\033[31m",
	FatalLevel: "\033[31m",
}

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(f.TimestampFormat))
		buf.WriteByte(' ')
	}

	level := "[" + entry.Level.String() + "]"
	if color, ok := levelColors[entry.Level]; ok && !f.DisableColors {
		level = color + level + "\033[0m"
	}
	buf.WriteString(level)
	buf.WriteByte(' ')

	if entry.RequestID != "" {
		fmt.Fprintf(&buf, "[%s] ", entry.RequestID)
	}
	if h := header(entry); h != "" {
		buf.WriteString(h)
		buf.WriteString(": ")
	}
	buf.WriteString(entry.Message)

	if pairs := f.pairs(entry); len(pairs) > 0 {
		buf.WriteString(" | ")
		buf.WriteString(strings.Join(pairs, " "))
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// header is "component/method", either half alone, or "".
func header(entry *Entry) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{entry.Component, entry.Method} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

func (f *TextFormatter) pairs(entry *Entry) []string {
	inHeader := map[string]bool{
		RequestIDKey: entry.RequestID != "",
		ComponentKey: entry.Component != "",
		MethodKey:    entry.Method != "",
	}

	pairs := make([]string, 0, len(entry.Fields))
	for k, v := range entry.Fields {
		if !inHeader[k] {
			pairs = append(pairs, k+"="+textValue(v))
		}
	}
	if !f.DisableSorting {
		sort.Strings(pairs)
	}
	return pairs
}

func textValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	case fmt.Stringer:
		s = val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			b = []byte(fmt.Sprint(v))
		}
		s = string(b)
	}
	if strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// JSONFormatter renders one JSON object per line. Errors become their
// message and durations become milliseconds.
type JSONFormatter struct {
	PrettyPrint      bool
	TimestampFormat  string
	DisableTimestamp bool
}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	obj := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		switch val := v.(type) {
		case error:
			obj[k] = val.Error()
		case time.Duration:
			obj[k] = val.Milliseconds()
		default:
			obj[k] = v
		}
	}
	obj["level"] = entry.Level.String()
	obj["message"] = entry.Message
	if !f.DisableTimestamp {
		obj["timestamp"] = entry.Timestamp.Format(f.TimestampFormat)
	}

	var (
		out []byte
		err error
	)
	if f.PrettyPrint {
		out, err = json.MarshalIndent(obj, "", "  ")
	} else {
		out, err = json.Marshal(obj)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal log entry: %w", err)
	}
	return append(out, '\n'), nil
}
