package parser

import (
	"fmt"
	"strings"

	"github.com/skx/pcc/token"
)

// Kind categorizes a diagnostic, grounded on arm-emulator/parser/errors.go's
// ErrorKind; extended with the parse/codegen-facing categories spec §7
// names (unexpected token, unclosed string, unknown type identifier,
// redefinition, basic-type redefinition, index/field/deref on the wrong
// kind of operand, bad built-in argument type).
type Kind int

const (
	ErrSyntax Kind = iota
	ErrUnclosedString
	ErrUnknownType
	ErrRedefinition
	ErrBasicTypeRedefinition
	ErrIndexOfNonArray
	ErrFieldOfNonRecord
	ErrDerefOfNonPointer
	ErrBadArgumentType
	ErrUndefinedIdentifier
	ErrUnhandledNode
)

// Diagnostic is a single reported error, carrying the offending token's
// position and textual form per spec §7: "Each is reported once with the
// offending token's textual form".
type Diagnostic struct {
	Pos     token.Position
	Kind    Kind
	Message string
	Token   string
}

func (d *Diagnostic) String() string {
	if d.Token != "" {
		return fmt.Sprintf("%d:%d: %s: %q", d.Pos.Line, d.Pos.Column, d.Message, d.Token)
	}
	return fmt.Sprintf("%d:%d: %s", d.Pos.Line, d.Pos.Column, d.Message)
}

// Diagnostics accumulates parse/codegen-adjacent errors without halting
// the pipeline (spec §7: "reported, continue where possible"), grounded
// on arm-emulator/parser/errors.go's ErrorList.
type Diagnostics struct {
	items []*Diagnostic
}

// Add reports a new diagnostic.
func (d *Diagnostics) Add(pos token.Position, kind Kind, tok, format string, args ...interface{}) {
	d.items = append(d.items, &Diagnostic{
		Pos: pos, Kind: kind, Token: tok,
		Message: fmt.Sprintf(format, args...),
	})
}

// HasErrors reports whether any diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	return len(d.items) > 0
}

// All returns every recorded diagnostic, in report order.
func (d *Diagnostics) All() []*Diagnostic {
	return d.items
}

// Error renders every diagnostic, one per line, implementing the error
// interface so *Diagnostics can be returned/wrapped like any other error.
func (d *Diagnostics) Error() string {
	var sb strings.Builder
	for _, it := range d.items {
		sb.WriteString(it.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
