package log

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// JSONFormatter writes one JSON object per entry. Entry fields sit at the
// top level next to timestamp, level and message.
type JSONFormatter struct {
	TimestampFormat string
	EnableCaller    bool
}

func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = time.RFC3339
	}

	data := make(Fields, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = v
	}
	data["timestamp"] = entry.Timestamp.Format(layout)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if f.EnableCaller && entry.Caller != "" {
		data["caller"] = entry.Caller
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// TextFormatter writes "time LEVEL message k=v ..." lines with fields
// sorted by key.
type TextFormatter struct {
	TimestampFormat string
	EnableCaller    bool
	DisableColors   bool
}

// NewTextFormatter returns a TextFormatter with millisecond timestamps.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{TimestampFormat: "2006-01-02T15:04:05.000"}
}

var (
	dimColor = color.New(color.FgHiBlack)
	keyColor = color.New(color.FgCyan)

	levelColors = map[Level]*color.Color{
		DebugLevel: color.New(color.FgBlue),
		InfoLevel:  color.New(color.FgGreen),
		WarnLevel:  color.New(color.FgYellow),
		ErrorLevel: color.New(color.FgRed),
		FatalLevel: color.New(color.FgRed, color.Bold),
	}
)

func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	paint := func(c *color.Color, s string) string {
		if f.DisableColors || c == nil {
			return s
		}
		return c.Sprint(s)
	}

	var b strings.Builder
	b.WriteString(paint(dimColor, entry.Timestamp.Format(f.TimestampFormat)))
	b.WriteByte(' ')
	b.WriteString(paint(levelColors[entry.Level], entry.Level.String()))
	if f.EnableCaller && entry.Caller != "" {
		fmt.Fprintf(&b, " (%s)", entry.Caller)
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", paint(keyColor, k), entry.Fields[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
