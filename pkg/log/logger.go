// Package log provides the structured logging used across herd components.
//
// Loggers are cheap to derive: With, WithComponent and WithContext return
// children that share their parent's level, formatter and outputs. Work
// done on behalf of a lifecycle operation carries a Scope on its context,
// and collaborators call WithContext so their entries name the cluster,
// operation and task they belong to.
package log

import (
	"context"
	"sync/atomic"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Fields is a map of field names to values.
type Fields map[string]interface{}

// Well-known field keys.
const (
	ComponentKey = "component"
	OperationKey = "operation"
	ClusterKey   = "cluster"
	TaskIDKey    = "task_id"
)

// Entry is one formatted log record.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Caller    string
}

// Logger is the logging interface handed to every herd component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// Printf-style variants, used to adapt third-party loggers such as
	// badger's.
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})

	With(fields ...Field) Logger
	WithFields(fields Fields) Logger
	WithError(err error) Logger
	WithContext(ctx context.Context) Logger
	WithComponent(component string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Formatter turns an entry into bytes.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output receives formatted entries.
type Output interface {
	Write(entry *Entry, formattedEntry []byte) error
	Close() error
}

// Scope names the lifecycle operation a piece of work runs under.
type Scope struct {
	Cluster   string
	Operation string
	Task      string
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying s. Members left empty in s keep
// the value of any scope already on ctx, so a task scope survives the
// operation scope nested inside it.
func WithScope(ctx context.Context, s Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	outer := ScopeFrom(ctx)
	if s.Cluster == "" {
		s.Cluster = outer.Cluster
	}
	if s.Operation == "" {
		s.Operation = outer.Operation
	}
	if s.Task == "" {
		s.Task = outer.Task
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope on ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

// Fields returns the non-empty members of s keyed for log entries.
func (s Scope) Fields() Fields {
	f := Fields{}
	if s.Cluster != "" {
		f[ClusterKey] = s.Cluster
	}
	if s.Operation != "" {
		f[OperationKey] = s.Operation
	}
	if s.Task != "" {
		f[TaskIDKey] = s.Task
	}
	return f
}

type loggerHolder struct{ Logger }

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(loggerHolder{NewLogger()})
}

// SetDefaultLogger replaces the process-wide logger used by components
// constructed without one.
func SetDefaultLogger(logger Logger) {
	if logger != nil {
		defaultLogger.Store(loggerHolder{logger})
	}
}

// GetDefaultLogger returns the process-wide logger.
func GetDefaultLogger() Logger {
	return defaultLogger.Load().(loggerHolder).Logger
}

// LoggerOption configures a logger built by NewLogger.
type LoggerOption func(*core)

// NewLogger creates a root logger. Without WithOutput entries go to
// stdout, with errors on stderr.
func NewLogger(options ...LoggerOption) Logger {
	c := &core{formatter: NewTextFormatter()}
	c.level.Store(int32(InfoLevel))
	for _, option := range options {
		option(c)
	}
	if len(c.outputs) == 0 {
		c.outputs = []Output{NewConsoleOutput(WithErrorToStderr())}
	}
	return &BaseLogger{core: c, fields: Fields{}}
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(c *core) { c.level.Store(int32(level)) }
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(c *core) { c.formatter = formatter }
}

// WithOutput adds an output.
func WithOutput(output Output) LoggerOption {
	return func(c *core) { c.outputs = append(c.outputs, output) }
}
