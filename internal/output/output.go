// Package output formats CLI results. Styling is applied only when the
// destination is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shoprank/shoprank/internal/ui"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	color  bool
	styles ui.Styles
}

// New creates a Writer, enabling color when out is a terminal.
func New(out io.Writer) *Writer {
	return NewWithColor(out, ui.IsTTY(out) && !ui.DetectNoColor())
}

// NewWithColor creates a Writer with explicit color choice.
func NewWithColor(out io.Writer, color bool) *Writer {
	return &Writer{out: out, color: color, styles: ui.GetStyles(!color)}
}

// Color reports whether styling is enabled.
func (w *Writer) Color() bool { return w.color }

func (w *Writer) render(style lipgloss.Style, s string) string {
	if !w.color {
		return s
	}
	return style.Render(s)
}

// Status prints a message prefixed with a marker.
func (w *Writer) Status(marker, msg string) {
	if marker == "" {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n", marker, msg)
}

// Statusf prints a formatted status message.
func (w *Writer) Statusf(marker, format string, args ...any) {
	w.Status(marker, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.render(w.styles.Success, "✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.render(w.styles.Warning, "!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.render(w.styles.Error, "✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Heading prints a bold section title.
func (w *Writer) Heading(title string) {
	_, _ = fmt.Fprintln(w.out, w.render(w.styles.Header, title))
}

// Dim returns s rendered in the secondary color.
func (w *Writer) Dim(s string) string {
	return w.render(w.styles.Dim, s)
}

// Accent returns s rendered in the accent color.
func (w *Writer) Accent(s string) string {
	return w.render(w.styles.Active, s)
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, width int, value any) {
	label := fmt.Sprintf("%-*s", width+1, key+":")
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.render(w.styles.Label, label), value)
}

// Line prints a raw line.
func (w *Writer) Line(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Code prints an indented block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Bar renders a fixed-width score bar for v in [0, 1].
func Bar(v float64, width int) string {
	filled := int(v*float64(width) + 0.5)
	filled = max(0, min(width, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
