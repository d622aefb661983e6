package log

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// TestEntry represents a captured log entry for testing
type TestEntry struct {
	Level   Level
	Message string
	Fields  []Field
}

type testSink struct {
	mu      sync.Mutex
	entries []TestEntry
}

// TestLogger captures entries instead of writing them. Child loggers
// created through With/WithComponent share the parent's capture buffer.
type TestLogger struct {
	sink   *testSink
	fields []Field
	level  Level
}

// NewTestLogger creates a new TestLogger for use in unit tests
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testSink{}, level: DebugLevel}
}

// GetEntries returns a copy of all captured log entries
func (l *TestLogger) GetEntries() []TestEntry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]TestEntry, len(l.sink.entries))
	copy(out, l.sink.entries)
	return out
}

// ClearEntries clears all captured log entries
func (l *TestLogger) ClearEntries() {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = nil
}

func (l *TestLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = append(l.sink.entries, TestEntry{Level: level, Message: msg, Fields: all})
}

func (l *TestLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *TestLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *TestLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *TestLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// Fatal records the entry but does not exit.
func (l *TestLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields) }

func (l *TestLogger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...), nil)
}
func (l *TestLogger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}
func (l *TestLogger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...), nil)
}
func (l *TestLogger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// With returns a child logger sharing the capture buffer.
func (l *TestLogger) With(fields ...Field) Logger {
	n := &TestLogger{sink: l.sink, level: l.level}
	n.fields = append(append(n.fields, l.fields...), fields...)
	return n
}

// WithFields returns a child logger sharing the capture buffer.
func (l *TestLogger) WithFields(fields Fields) Logger {
	extra := make([]Field, 0, len(fields))
	for k, v := range fields {
		extra = append(extra, Any(k, v))
	}
	return l.With(extra...)
}

func (l *TestLogger) WithError(err error) Logger { return l.With(Err(err)) }

func (l *TestLogger) WithContext(ctx context.Context) Logger {
	return l.WithFields(ScopeFrom(ctx).Fields())
}

func (l *TestLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

func (l *TestLogger) SetLevel(level Level) { l.level = level }
func (l *TestLogger) GetLevel() Level      { return l.level }

// AssertLogged reports whether an entry at level containing msg was captured.
func (l *TestLogger) AssertLogged(level Level, containsMessage string) bool {
	for _, entry := range l.GetEntries() {
		if entry.Level == level && strings.Contains(entry.Message, containsMessage) {
			return true
		}
	}
	return false
}

// AssertLoggedWithField reports whether a matching entry carried key=value.
func (l *TestLogger) AssertLoggedWithField(level Level, containsMessage string, key string, value interface{}) bool {
	want := fmt.Sprintf("%v", value)
	for _, entry := range l.GetEntries() {
		if entry.Level != level || !strings.Contains(entry.Message, containsMessage) {
			continue
		}
		for _, field := range entry.Fields {
			if field.Key == key && fmt.Sprintf("%v", field.Value) == want {
				return true
			}
		}
	}
	return false
}
