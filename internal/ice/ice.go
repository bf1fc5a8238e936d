// Package ice ("internal compiler error") wraps the precondition
// violations the IR builder and backends raise when their input is not a
// semantically valid AST/IR — a bug, not a user diagnostic (spec.md §7:
// "Any violation of their preconditions ... is a bug and fails fast with a
// descriptive internal error identifying the offending instruction.").
//
// Built on github.com/pkg/errors, a teacher dependency that sentra itself
// declares but never imports (see DESIGN.md); its Wrap/Wrapf chain is
// exactly the "compiling x: compiling y: root cause" context stack this
// package needs.
package ice

import "github.com/pkg/errors"

// New creates a root internal-compiler-error.
func New(format string, args ...interface{}) error {
	return errors.Errorf("internal compiler error: "+format, args...)
}

// Wrap adds a "compiling <context>: " layer to an existing error, building
// a chain a caller can print top to bottom.
func Wrap(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
