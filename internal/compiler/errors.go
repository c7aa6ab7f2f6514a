package compiler

import (
	"errors"
	"fmt"

	"github.com/fabulist/fabula/internal/ir"
)

// CompileError describes one malformed rule in a batch. It carries the rule
// name (when known) and the source line of the offending construct so the
// author can find it; sibling rules are unaffected.
type CompileError struct {
	Format   ir.SourceFormat
	RuleName string
	Line     int
	Message  string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.RuleName != "" && e.Line > 0:
		return fmt.Sprintf("%s: rule %q (line %d): %s", e.Format, e.RuleName, e.Line, e.Message)
	case e.RuleName != "":
		return fmt.Sprintf("%s: rule %q: %s", e.Format, e.RuleName, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %s", e.Format, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Format, e.Message)
	}
}

// IsCompileError reports whether err is a CompileError.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
