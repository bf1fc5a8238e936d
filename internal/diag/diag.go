// Package diag implements the diagnostic model shared by the semantic
// analyzer's error list and, with source-line rendering, the CLI driver.
// Grounded on the teacher's internal/errors/errors.go: a source location,
// a message, and an optional source line with a caret pointer.
package diag

import (
	"fmt"
	"strings"

	"compiscript/internal/token"
)

// Diagnostic is a single semantic error: "[line:col] message" per
// spec.md §4.1/§6.2. The analyzer never throws; it accumulates these.
type Diagnostic struct {
	Pos token.Position
	Msg string
}

func New(pos token.Position, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface with the required "[line:col] "
// prefix (spec.md §6.2).
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("[%d:%d] %s", d.Pos.Line, d.Pos.Col, d.Msg)
}

// Render renders a diagnostic together with the offending source line and
// a caret, in the style of the teacher's SentraError.Error().
func Render(d *Diagnostic, source string) string {
	var sb strings.Builder
	sb.WriteString(d.Error())
	lines := strings.Split(source, "\n")
	if d.Pos.Line >= 1 && d.Pos.Line <= len(lines) {
		line := lines[d.Pos.Line-1]
		sb.WriteString(fmt.Sprintf("\n  %d | %s\n", d.Pos.Line, line))
		gutter := fmt.Sprintf("  %d | ", d.Pos.Line)
		sb.WriteString(strings.Repeat(" ", len(gutter)))
		if d.Pos.Col > 0 {
			sb.WriteString(strings.Repeat(" ", d.Pos.Col-1))
		}
		sb.WriteString("^")
	}
	return sb.String()
}

// Join renders a flat error-interface slice (as returned by lexer/parser)
// as a slice of "[line:col] message" strings for uniform CLI output.
func Join(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
