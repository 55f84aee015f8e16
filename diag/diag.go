// Package diag implements the compiler's diagnostic engine: an append-only,
// ordered bag of severity-tagged messages shared across all compilation
// phases.
package diag

import (
	"fmt"
	"io"
	"strings"
)

// Severity classifies a diagnostic message.
type Severity int

const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	default:
		return "unknown"
	}
}

// Location is the source span a diagnostic (or an IR instruction) was
// produced from.
type Location struct {
	ByteStart uint32
	ByteEnd   uint32
	Line      uint32
	Column    uint32
}

// Diagnostic is a single reported message.
type Diagnostic struct {
	Severity Severity
	Message  string
	Location *Location
	File     string
}

// Engine collects diagnostics in report order. It never deduplicates and
// never fails: Report is infallible.
type Engine struct {
	file    string
	entries []Diagnostic
}

// NewEngine creates an engine that stamps every diagnostic with file as its
// originating file name for formatting.
func NewEngine(file string) *Engine {
	return &Engine{file: file}
}

// Report appends a diagnostic. loc may be nil for phase-level messages that
// have no single source location.
func (e *Engine) Report(sev Severity, message string, loc *Location) {
	e.entries = append(e.entries, Diagnostic{
		Severity: sev,
		Message:  message,
		Location: loc,
		File:     e.file,
	})
}

// HasErrors reports whether any entry has Error severity.
func (e *Engine) HasErrors() bool {
	for _, d := range e.entries {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Iter returns the diagnostics in report order. Callers must not mutate the
// returned slice.
func (e *Engine) Iter() []Diagnostic {
	return e.entries
}

// Clear empties the engine.
func (e *Engine) Clear() {
	e.entries = nil
}

// Counts returns the number of error- and warning-severity diagnostics.
func (e *Engine) Counts() (errors, warnings int) {
	for _, d := range e.entries {
		switch d.Severity {
		case Error:
			errors++
		case Warning:
			warnings++
		}
	}
	return
}

// Format renders every diagnostic as "<file>:<line>:<col>: <severity>: <msg>"
// followed by a summary line, optionally colorizing the severity tag.
func (e *Engine) Format(w io.Writer, colorize bool) {
	for _, d := range e.entries {
		fmt.Fprintln(w, d.line(colorize))
	}
	errs, warns := e.Counts()
	fmt.Fprintf(w, "%d error(s), %d warning(s)\n", errs, warns)
}

func (d Diagnostic) line(colorize bool) string {
	var loc string
	if d.Location != nil {
		loc = fmt.Sprintf("%d:%d", d.Location.Line, d.Location.Column)
	} else {
		loc = "-:-"
	}

	sev := d.Severity.String()
	if colorize {
		sev = colorFor(d.Severity) + sev + reset
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s: %s: %s", d.File, loc, sev, d.Message)
	return b.String()
}

const reset = "\x1b[0m"

func colorFor(s Severity) string {
	switch s {
	case Error:
		return "\x1b[31m"
	case Warning:
		return "\x1b[33m"
	default:
		return "\x1b[36m"
	}
}
