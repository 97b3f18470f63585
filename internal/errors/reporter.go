// Package errors formats lexer, parser, semantic, and pass-manager
// diagnostics with Rust-like source-context styling.
package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a reported diagnostic.
type Level string

const (
	Error   Level = "error"
	Warning Level = "warning"
	Note    Level = "note"
	Help    Level = "help"
)

// Diagnostic is one structured error, warning, or note with its source
// location and optional remediation text.
type Diagnostic struct {
	Level    Level
	Code     string // e.g. "E0001"
	Message  string
	Line     int
	Column   int
	Length   int
	Notes    []string
	HelpText string

	// Order is a stable sequence number assigned by the Reporter at
	// report time, so diagnostics from independent passes can still be
	// sorted back into the order they were raised.
	Order int
}

// Reporter accumulates diagnostics against one named source and renders
// them with the offending line(s) shown in context.
type Reporter struct {
	filename string
	lines    []string
	diags    []Diagnostic
	nextOrd  int
}

// NewReporter builds a Reporter for filename/source.
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Report records one diagnostic and returns it (with Order filled in).
func (r *Reporter) Report(d Diagnostic) Diagnostic {
	d.Order = r.nextOrd
	r.nextOrd++
	r.diags = append(r.diags, d)
	return d
}

// Diagnostics returns every diagnostic reported so far, in report order.
func (r *Reporter) Diagnostics() []Diagnostic { return r.diags }

// HasErrors reports whether any recorded diagnostic is at Error level.
func (r *Reporter) HasErrors() bool {
	for _, d := range r.diags {
		if d.Level == Error {
			return true
		}
	}
	return false
}

// Format renders one diagnostic with surrounding source context.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	levelColor := levelColorFor(d.Level)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if d.Code != "" {
		out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message))
	} else {
		out.WriteString(fmt.Sprintf("%s: %s\n", levelColor(string(d.Level)), d.Message))
	}

	width := lineNumberWidth(d.Line)
	indent := strings.Repeat(" ", width)

	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Line, d.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Line > 1 && d.Line-1 <= len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, d.Line-1)), dim("│"), r.lines[d.Line-2]))
	}

	if d.Line > 0 && d.Line <= len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, d.Line)), dim("│"), r.lines[d.Line-1]))
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker(d.Column, d.Length, d.Level)))
	}

	if d.Line < len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			dim(fmt.Sprintf("%*d", width, d.Line+1)), dim("│"), r.lines[d.Line]))
	}

	for _, note := range d.Notes {
		noteColor := color.New(color.FgBlue).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), noteColor("note:"), note))
	}

	if d.HelpText != "" {
		helpColor := color.New(color.FgGreen).SprintFunc()
		out.WriteString(fmt.Sprintf("%s %s %s %s\n", indent, dim("│"), helpColor("help:"), d.HelpText))
	}

	out.WriteString("\n")
	return out.String()
}

// FormatAll renders every recorded diagnostic, in report order.
func (r *Reporter) FormatAll() string {
	var out strings.Builder
	for _, d := range r.diags {
		out.WriteString(r.Format(d))
	}
	return out.String()
}

func levelColorFor(level Level) func(...interface{}) string {
	switch level {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case Note:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	case Help:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func marker(column, length int, level Level) string {
	if length <= 0 {
		length = 1
	}
	col := column - 1
	if col < 0 {
		col = 0
	}
	spaces := strings.Repeat(" ", col)

	markerColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if level == Warning {
		markerColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	return spaces + markerColor(strings.Repeat("^", length))
}

func lineNumberWidth(line int) int {
	width := len(fmt.Sprintf("%d", line))
	if width < 3 {
		width = 3
	}
	return width
}
