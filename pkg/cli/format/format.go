// Package format renders CLI output: colored status labels, violation
// lists and terminal-aware widths.
package format

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/rzbill/herd/pkg/types"
)

var (
	ErrorColor   = color.New(color.FgRed, color.Bold)
	WarningColor = color.New(color.FgYellow, color.Bold)
	SuccessColor = color.New(color.FgGreen, color.Bold)
	HeadingColor = color.New(color.FgHiWhite, color.Bold)
	DimColor     = color.New(color.FgHiBlack)
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 80

// EnableColor enables or disables colored output globally.
func EnableColor(enable bool) {
	color.NoColor = !enable
}

// IsColorEnabled returns whether colored output is enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or DefaultWidth.
func Width(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// StatusLabel colors a status by its meaning.
func StatusLabel(status string) string {
	switch strings.ToLower(status) {
	case "succeeded", "completed", "healthy", "ok":
		return SuccessColor.Sprint(status)
	case "running", "pending":
		return WarningColor.Sprint(status)
	case "failed", "cancelled", "unhealthy", "timeout":
		return ErrorColor.Sprint(status)
	default:
		return status
	}
}

// StatusSymbol returns a colored check mark or cross.
func StatusSymbol(ok bool) string {
	if ok {
		return SuccessColor.Sprint("✓")
	}
	return ErrorColor.Sprint("✗")
}

// Success prints a green message line to w.
func Success(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", StatusSymbol(true), fmt.Sprintf(format, a...))
}

// PrintError writes err to w. Validation errors list every violation on
// its own line.
func PrintError(w io.Writer, err error) {
	var ve *types.ValidationError
	if !errors.As(err, &ve) || len(ve.Violations) < 2 {
		fmt.Fprintf(w, "%s %s\n", ErrorColor.Sprint("Error:"), err)
		return
	}
	fmt.Fprintf(w, "%s %d violations\n", ErrorColor.Sprint("Error:"), len(ve.Violations))
	for _, v := range ve.Violations {
		fmt.Fprintf(w, "  %s %s\n", ErrorColor.Sprint("•"), v)
	}
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
