package codegen

import "fmt"

// literalPool is an insertion-ordered, linearly-searched table mapping a
// literal value to its NASM data label, deduplicating repeated literals
// (spec §5: "a literal seen twice reuses its first label"). Grounded on
// the teacher's compiler.Compiler.constants map, generalized from a bare
// existence-map to a pool that also remembers emission order (needed
// here since strings must preserve escaping and floats their exact
// textual form in the .data section).
type literalPool struct {
	prefix string
	keys   []string
	values []string
}

func newLiteralPool(prefix string) *literalPool {
	return &literalPool{prefix: prefix}
}

// Label returns the data label for value, minting a new one the first
// time value is seen and reusing it on every subsequent call.
func (lp *literalPool) Label(value string) string {
	for i, k := range lp.keys {
		if k == value {
			return lp.values[i]
		}
	}
	label := fmt.Sprintf("%s%d", lp.prefix, len(lp.keys))
	lp.keys = append(lp.keys, value)
	lp.values = append(lp.values, label)
	return label
}

// Entries returns (label, value) pairs in insertion order, for emitting
// the .data section.
func (lp *literalPool) Entries() []struct{ Label, Value string } {
	out := make([]struct{ Label, Value string }, len(lp.keys))
	for i := range lp.keys {
		out[i] = struct{ Label, Value string }{lp.values[i], lp.keys[i]}
	}
	return out
}
