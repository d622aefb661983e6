package log

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// core is shared by a root logger and every child derived from it.
type core struct {
	level     atomic.Int32
	formatter Formatter

	// mu keeps entries from concurrent tasks whole across all outputs.
	mu      sync.Mutex
	outputs []Output
}

func (c *core) enabled(level Level) bool {
	return int32(level) >= c.level.Load()
}

func (c *core) emit(entry *Entry) {
	formatted, err := c.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: format entry: %v\n", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, out := range c.outputs {
		if err := out.Write(entry, formatted); err != nil {
			fmt.Fprintf(os.Stderr, "log: write entry: %v\n", err)
		}
	}
}

func (c *core) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, out := range c.outputs {
		_ = out.Close()
	}
}

// BaseLogger is the Logger returned by NewLogger. Its fields are
// immutable; deriving a child copies them.
type BaseLogger struct {
	core   *core
	fields Fields
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// Fatal logs, closes the outputs and exits the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fields)
	l.core.close()
	os.Exit(1)
}

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.logf(DebugLevel, msg, args) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.logf(InfoLevel, msg, args) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.logf(WarnLevel, msg, args) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.logf(ErrorLevel, msg, args) }

// With returns a child logger carrying fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := l.copyFields(len(fields))
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &BaseLogger{core: l.core, fields: merged}
}

// WithFields returns a child logger carrying fields.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := l.copyFields(len(fields))
	for k, v := range fields {
		merged[k] = v
	}
	return &BaseLogger{core: l.core, fields: merged}
}

// WithError returns a child logger carrying err.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.With(Err(err))
}

// WithContext returns a child logger tagged with the Scope on ctx.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(ScopeFrom(ctx).Fields())
}

// WithComponent returns a child logger tagged with component.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel changes the level of this logger and every logger sharing its
// root.
func (l *BaseLogger) SetLevel(level Level) {
	l.core.level.Store(int32(level))
}

// GetLevel returns the minimum level written.
func (l *BaseLogger) GetLevel() Level {
	return Level(l.core.level.Load())
}

func (l *BaseLogger) copyFields(extra int) Fields {
	out := make(Fields, len(l.fields)+extra)
	for k, v := range l.fields {
		out[k] = v
	}
	return out
}

func (l *BaseLogger) logf(level Level, msg string, args []interface{}) {
	if !l.core.enabled(level) {
		return
	}
	l.write(level, fmt.Sprintf(msg, args...), nil, callerOf(3))
}

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if !l.core.enabled(level) {
		return
	}
	l.write(level, msg, fields, callerOf(3))
}

func (l *BaseLogger) write(level Level, msg string, fields []Field, caller string) {
	entryFields := l.copyFields(len(fields))
	for _, f := range fields {
		entryFields[f.Key] = f.Value
	}
	l.core.emit(&Entry{
		Level:     level,
		Message:   msg,
		Fields:    entryFields,
		Timestamp: time.Now(),
		Caller:    caller,
	})
}

// callerOf reports the call site skip frames up as dir/file.go:line.
func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
}
