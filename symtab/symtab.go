// Package symtab implements spec §4.2/§3: the two-level symbol table and
// the tagged-variant Symbol model. Symbols are stored in an arena and
// referred to by a small integer Handle (spec §9's "refer to symbols by
// small integer handles into an arena rather than heap pointers so
// forward-declaration stubs can be mutated in place") rather than by Go
// pointer, so a Stub's Target can be rewritten in place once, visible to
// every AST node that already captured the Handle.
package symtab

import "github.com/pkg/errors"

// Kind tags the variant a Symbol holds, per spec §3's table.
type Kind int

const (
	// KindNull is the sentinel null-type installed at arena index 0.
	KindNull Kind = iota
	KindBasic
	KindStub
	KindPointer
	KindSubrange
	KindRecord
	KindArray
	KindVariable
	KindConst
	KindFunction
)

// Handle is a small integer reference into a Table's arena.
type Handle int

// NullHandle is the sentinel null-type: "resolved type... never null"
// (spec §3) is satisfied by always pointing unresolved nodes at this
// handle instead of using Go's nil.
const NullHandle Handle = 0

// Field is one member of a Record symbol: name, type, and byte offset
// computed at record finalization (spec §3).
type Field struct {
	Name   string
	Type   Handle
	Offset int
}

// Symbol is the tagged-variant entry of spec §3. Only the fields
// relevant to Kind are meaningful; this mirrors a sum type using a
// single struct, which is the idiomatic compromise in a language without
// tagged unions (the same shape the teacher uses for instructions.Instruction,
// generalized from one payload field to several).
type Symbol struct {
	Kind Kind
	Name string

	// KindBasic
	Size int

	// KindStub: Target is NullHandle until set exactly once.
	Target Handle

	// KindPointer
	PointeeType Handle

	// KindSubrange (also used for materialized enum ranges, and as an
	// array's index domain)
	Low, High int

	// KindRecord
	Fields      []*Field
	recordSize  int
	recordAlign int

	// KindArray
	IndexType   Handle
	ElementType Handle

	// KindVariable
	VarType Handle
	Offset  int

	// KindConst
	ConstType   Handle
	IntValue    int64
	RealValue   float64
	StringValue string
	BoolValue   bool

	// KindFunction
	ResultType    Handle
	ArgTypes      []Handle
	Polymorphic   bool // write/writeln: resolved to writei/writef by arg type (strings keep write/writeln)
	ByRef         bool // read/readln: argument passed by address
	MangledName32 bool // eligible for the "32" float-trampoline suffix
}

// Table is the two-level symbol table of spec §4.2: level 0 holds
// built-ins, level 1 holds the program's own declarations.
type Table struct {
	arena  []*Symbol
	level0 map[string]Handle
	level1 map[string]Handle

	// frameOffset is the cumulative byte offset used when inserting
	// variables (spec §4.2's "running byte offset").
	frameOffset int
}

// New builds a Table with the null-type sentinel, the four basic types,
// and the built-in function table of spec §4.2 installed at level 0.
func New() *Table {
	t := &Table{
		arena:  []*Symbol{{Kind: KindNull, Name: "<null>"}},
		level0: make(map[string]Handle),
		level1: make(map[string]Handle),
	}
	t.installBasicTypes()
	t.installBuiltinFunctions()
	return t
}

func (t *Table) alloc(s *Symbol) Handle {
	t.arena = append(t.arena, s)
	return Handle(len(t.arena) - 1)
}

// Get dereferences a Handle. Looking up NullHandle returns the sentinel.
func (t *Table) Get(h Handle) *Symbol {
	if int(h) < 0 || int(h) >= len(t.arena) {
		return t.arena[0]
	}
	return t.arena[h]
}

// Lookup checks level 0 then level 1, per spec §4.2.
func (t *Table) Lookup(name string) (Handle, bool) {
	if h, ok := t.level0[name]; ok {
		return h, true
	}
	if h, ok := t.level1[name]; ok {
		return h, true
	}
	return NullHandle, false
}

// Insert installs a new level-1 symbol. It fails if name already exists
// at level 0 (basic types and built-ins are immutable), per spec §4.2.
func (t *Table) Insert(name string, sym *Symbol) (Handle, error) {
	if _, ok := t.level0[name]; ok {
		return NullHandle, errors.Errorf("%q is a built-in name and cannot be redefined", name)
	}
	sym.Name = name
	h := t.alloc(sym)
	t.level1[name] = h
	return h, nil
}

// InsertAnonymous allocates a symbol with no level-1 name binding, used
// for inline type references (array/record/pointer literals appearing
// directly in a var or field declaration) and when finalizing a
// previously forward-declared stub.
func (t *Table) InsertAnonymous(sym *Symbol) Handle {
	return t.alloc(sym)
}

// LookupOrInsertType returns the existing entry for name, or installs a
// Stub at level 1 with target NullHandle if it has never been seen. Used
// for forward references inside pointer declarations (spec §4.2/§4.3).
func (t *Table) LookupOrInsertType(name string) Handle {
	if h, ok := t.Lookup(name); ok {
		return h
	}
	h := t.alloc(&Symbol{Kind: KindStub, Name: name, Target: NullHandle})
	t.level1[name] = h
	return h
}

// BindStub sets a previously-installed Stub's target exactly once. It is
// an error to bind an already-bound stub (a redefinition, per spec §4.3).
func (t *Table) BindStub(h Handle, target Handle) error {
	sym := t.Get(h)
	if sym.Kind != KindStub {
		return errors.Errorf("%q is not a forward-declared type", sym.Name)
	}
	if sym.Target != NullHandle {
		return errors.Errorf("type %q is already defined", sym.Name)
	}
	sym.Target = target
	return nil
}

// InsertVariable installs a variable, advancing the table's running
// frame offset per spec §4.2: the variable's own offset is
// align_up(current, align_of(T)); the new running total is
// current + align_up(size_of(T), align_of(T)).
func (t *Table) InsertVariable(name string, varType Handle) (Handle, error) {
	align := t.AlignOf(varType)
	size := t.SizeOf(varType)

	offset := alignUp(t.frameOffset, align)
	t.frameOffset = offset + alignUp(size, align)

	return t.Insert(name, &Symbol{Kind: KindVariable, VarType: varType, Offset: offset, Size: size})
}

// FrameSize returns the total (so far) aligned variable-area size, used
// by the code generator's prologue to size the stack frame.
func (t *Table) FrameSize() int {
	return alignUp(t.frameOffset, 8)
}

// Resolve chases Stub targets to a ground type, short-circuiting a
// self-referential stub (spec §4.3's resolve(T), spec §9's cyclic-type
// guidance).
func (t *Table) Resolve(h Handle) Handle {
	seen := map[Handle]bool{}
	for {
		sym := t.Get(h)
		if sym.Kind != KindStub || sym.Target == NullHandle || sym.Target == h {
			return h
		}
		if seen[h] {
			return h
		}
		seen[h] = true
		h = sym.Target
	}
}

func alignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	if rem := n % align; rem != 0 {
		return n + (align - rem)
	}
	return n
}
