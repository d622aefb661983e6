package log

import (
	"fmt"
	"io"
	"strings"
)

// Config is the log section of herd.yaml.
type Config struct {
	// Level is the minimum level written: debug, info, warn or error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	EnableCaller  bool `json:"enable_caller" yaml:"enable_caller" mapstructure:"enable_caller"`
	DisableColors bool `json:"disable_colors" yaml:"disable_colors" mapstructure:"disable_colors"`
}

// ApplyConfig builds a root logger writing to w. A nil w means stdout
// with errors on stderr.
func ApplyConfig(cfg Config, w io.Writer) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = &JSONFormatter{EnableCaller: cfg.EnableCaller}
	case "text", "":
		tf := NewTextFormatter()
		tf.EnableCaller = cfg.EnableCaller
		tf.DisableColors = cfg.DisableColors
		formatter = tf
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	output := NewConsoleOutput(WithErrorToStderr())
	if w != nil {
		output = NewConsoleOutput(WithWriter(w))
	}
	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output)), nil
}

// ParseLevel parses a level name. The empty string is info.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
