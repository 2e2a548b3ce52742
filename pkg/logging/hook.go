package logging

// Hook observes entries after they are written. Hooks run synchronously on
// the logging goroutine and must not block for long.
type Hook interface {
	Fire(entry *Entry)
}

// HookFunc adapts a function to Hook.
type HookFunc func(entry *Entry)

func (f HookFunc) Fire(entry *Entry) { f(entry) }

// MinLevel returns a hook that only passes entries at or above level to h.
func MinLevel(level Level, h Hook) Hook {
	return HookFunc(func(entry *Entry) {
		if entry.Level >= level {
			h.Fire(entry)
		}
	})
}

// Data returns the entry as a flat map suitable for a notifications/message
// payload: the fields plus "message", with errors rendered as text.
func (e *Entry) Data() map[string]interface{} {
	data := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["message"] = e.Message
	return data
}
