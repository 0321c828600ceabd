package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI escape sequences.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"
	ansiBold   = "\033[1m"
)

// colorEnabled controls whether ANSI colors are used.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

func paint(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + ansiReset
}

// detailWidth is the column at which Detail is wrapped.
const detailWidth = 70

// Format returns the error formatted for terminal display: a header, the
// file location with surrounding lines, the detail, then hints.
func (e *Error) Format() string {
	var b strings.Builder
	b.WriteString("\n")
	e.writeHeader(&b)
	e.writeLocation(&b)
	for _, line := range wrapText(e.Detail, detailWidth) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if e.Detail != "" {
		b.WriteString("\n")
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s%s\n\n", paint(ansiCyan, "Hint: "), e.Suggestion)
	}
	if e.Example != "" {
		fmt.Fprintf(&b, "  %s\n", paint(ansiBlue, "Example:"))
		for _, line := range strings.Split(e.Example, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		b.WriteString("\n")
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s%s\n", paint(ansiGray, "Cause: "), e.Wrapped.Error())
	}
	return b.String()
}

func (e *Error) writeHeader(b *strings.Builder) {
	label := "ERROR: "
	if e.Code != "" {
		label = "ERROR " + e.Code + ": "
	}
	b.WriteString(paint(ansiRed+ansiBold, label))
	b.WriteString(paint(ansiBold, e.Message))
	b.WriteString("\n\n")
}

// writeLocation prints the location and, when known, the numbered context
// lines with the failing line marked.
func (e *Error) writeLocation(b *strings.Builder) {
	if e.Location == nil {
		return
	}
	fmt.Fprintf(b, "  %s\n\n", paint(ansiCyan, e.Location.String()))
	if len(e.Context) == 0 {
		return
	}

	first := e.Location.Line - len(e.Context)/2
	if first < 1 {
		first = 1
	}
	for i, line := range e.Context {
		n := first + i
		marker := "   "
		if n == e.Location.Line {
			marker = paint(ansiRed, "→  ")
		}
		fmt.Fprintf(b, "  %s%4d %s %s\n", marker, n, paint(ansiGray, "│"), line)
		if n == e.Location.Line && e.Location.Column > 0 {
			fmt.Fprintf(b, "  %s%s\n", strings.Repeat(" ", 10+e.Location.Column-1), paint(ansiYellow, "^"))
		}
	}
	b.WriteString("\n")
}

// FormatCompact returns "file:line: CODE: message".
func (e *Error) FormatCompact() string {
	var parts []string
	if loc := e.Location.String(); loc != "" {
		parts = append(parts, loc)
	}
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	parts = append(parts, e.Message)
	return strings.Join(parts, ": ")
}

type jsonLocation struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

type jsonError struct {
	Code       string        `json:"code,omitempty"`
	Category   Category      `json:"category"`
	Message    string        `json:"message"`
	Detail     string        `json:"detail,omitempty"`
	Location   *jsonLocation `json:"location,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	Cause      string        `json:"cause,omitempty"`
}

// FormatJSON returns the error as a JSON object for machine consumers.
func (e *Error) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
	}
	if e.Location != nil {
		out.Location = &jsonLocation{File: e.Location.File, Line: e.Location.Line, Column: e.Location.Column}
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// wrapText splits text into lines no longer than width, breaking on spaces.
// A single word longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	var (
		lines []string
		line  string
	)
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) > width:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	FprintError(os.Stderr, err)
}

// FprintError prints a formatted error to w. Coded errors get the full
// layout; anything else a single line.
func FprintError(w io.Writer, err error) {
	var e *Error
	if errors.As(err, &e) {
		fmt.Fprint(w, e.Format())
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", paint(ansiRed+ansiBold, "ERROR:"), err)
}
