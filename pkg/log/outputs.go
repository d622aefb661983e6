package log

import (
	"io"
	"os"
	"sync"
)

// ConsoleOutput writes log entries to stdout/stderr or a custom writer.
type ConsoleOutput struct {
	mu            sync.Mutex
	errorToStderr bool
	writer        io.Writer
}

// ConsoleOutputOption is a function that configures a ConsoleOutput.
type ConsoleOutputOption func(*ConsoleOutput)

// WithErrorToStderr sends error and fatal entries to stderr.
func WithErrorToStderr() ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.errorToStderr = true
	}
}

// WithWriter replaces stdout with w.
func WithWriter(w io.Writer) ConsoleOutputOption {
	return func(o *ConsoleOutput) {
		o.writer = w
	}
}

// NewConsoleOutput creates a new ConsoleOutput with the given options.
func NewConsoleOutput(options ...ConsoleOutputOption) *ConsoleOutput {
	o := &ConsoleOutput{}
	for _, option := range options {
		option(o)
	}
	return o
}

// Write writes the log entry to the console.
func (o *ConsoleOutput) Write(entry *Entry, formattedEntry []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var w io.Writer = os.Stdout
	if o.writer != nil {
		w = o.writer
	}
	if o.errorToStderr && entry.Level >= ErrorLevel {
		w = os.Stderr
	}

	_, err := w.Write(formattedEntry)
	return err
}

// Close is a no-op for console output.
func (o *ConsoleOutput) Close() error {
	return nil
}

// NullOutput discards everything.
type NullOutput struct{}

// NewNullOutput creates an output that drops all entries.
func NewNullOutput() *NullOutput { return &NullOutput{} }

// Write implements Output.
func (NullOutput) Write(*Entry, []byte) error { return nil }

// Close implements Output.
func (NullOutput) Close() error { return nil }
