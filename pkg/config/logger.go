package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
)

// NewLogger builds the logger described by cfg. The returned close function
// flushes and closes the log file, if any, and must be called on shutdown.
func NewLogger(cfg LogConfig) (logging.Logger, func() error, error) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg LogConfig, stdout io.Writer) (logging.Logger, func() error, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var formatter logging.Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = logging.NewTextFormatter()
	case "json":
		formatter = logging.NewJSONFormatter()
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	out := stdout
	closeFn := func() error { return nil }
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		out = rotating
		closeFn = rotating.Close
	}

	logger := logging.New(out, formatter)
	logger.SetLevel(level)
	return logger, closeFn, nil
}
