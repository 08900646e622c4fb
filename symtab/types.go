package symtab

// Well-known basic type handles, fixed by installBasicTypes below. Code
// generation and the parser both need to compare against these often
// enough that they are exposed as named handles rather than re-looked-up
// by string each time.
var (
	IntegerType Handle
	RealType    Handle
	CharType    Handle
	BooleanType Handle

	// StringType types a string-literal expression node. It is not
	// reachable by name (no variable may be declared of this type,
	// matching the language's Non-goal on string variables); it exists
	// purely so literal "write('...')" arguments have a resolved type.
	StringType Handle
)

func (t *Table) installBasicTypes() {
	IntegerType = t.mustInstallBasic("integer", 4)
	RealType = t.mustInstallBasic("real", 4)
	CharType = t.mustInstallBasic("char", 1)
	BooleanType = t.mustInstallBasic("boolean", 1)
	StringType = t.alloc(&Symbol{Kind: KindBasic, Name: "<string-literal>", Size: 4})
}

func (t *Table) mustInstallBasic(name string, size int) Handle {
	h := t.alloc(&Symbol{Kind: KindBasic, Name: name, Size: size})
	t.level0[name] = h
	return h
}

// AlignOf implements spec §3's alignment rule: basic → its size;
// pointer → 4; record/array → 8; stub/field → alignment of the resolved
// inner type.
func (t *Table) AlignOf(h Handle) int {
	sym := t.Get(h)
	switch sym.Kind {
	case KindBasic:
		return sym.Size
	case KindPointer:
		return 4
	case KindSubrange:
		return 4
	case KindRecord, KindArray:
		return 8
	case KindStub:
		if sym.Target == NullHandle {
			return 4
		}
		return t.AlignOf(sym.Target)
	default:
		return 4
	}
}

// SizeOf computes a type's size in bytes.
func (t *Table) SizeOf(h Handle) int {
	sym := t.Get(h)
	switch sym.Kind {
	case KindBasic:
		return sym.Size
	case KindPointer:
		return 4
	case KindSubrange:
		return 4
	case KindRecord:
		return sym.recordSize
	case KindArray:
		lo, hi := t.SubrangeBounds(sym.IndexType)
		count := hi - lo + 1
		if count < 0 {
			count = 0
		}
		return count * t.SizeOf(sym.ElementType)
	case KindStub:
		if sym.Target == NullHandle {
			return 0
		}
		return t.SizeOf(sym.Target)
	default:
		return 4
	}
}

// SubrangeBounds resolves h (chasing stubs) and returns its subrange
// bounds. Non-subrange handles return (0, -1), an empty interval.
func (t *Table) SubrangeBounds(h Handle) (low, high int) {
	sym := t.Get(t.Resolve(h))
	if sym.Kind != KindSubrange {
		return 0, -1
	}
	return sym.Low, sym.High
}

// NewRecord begins a record symbol; fields are appended with AddField and
// the layout is finalized with FinalizeRecord.
func NewRecord() *Symbol {
	return &Symbol{Kind: KindRecord}
}

// AddField appends a field to a record-in-progress. Offset is computed
// later, at FinalizeRecord, since a record's own alignment/size follows
// its last field.
func (t *Table) AddField(rec *Symbol, name string, fieldType Handle) {
	rec.Fields = append(rec.Fields, &Field{Name: name, Type: fieldType})
}

// FinalizeRecord computes each field's offset and the record's total
// size, per spec §3: "Field offset for the i-th field is
// align_up(prev_end, align_of(T_i)). Record size is align_up(last_end,
// record_align)" with record_align fixed at 8.
func (t *Table) FinalizeRecord(rec *Symbol) {
	end := 0
	for _, f := range rec.Fields {
		align := t.AlignOf(f.Type)
		f.Offset = alignUp(end, align)
		end = f.Offset + t.SizeOf(f.Type)
	}
	rec.recordSize = alignUp(end, 8)
	rec.recordAlign = 8
}

// FindField looks up a field by name on a (resolved) record symbol.
func (sym *Symbol) FindField(name string) (*Field, bool) {
	for _, f := range sym.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// installBuiltinFunctions seeds the built-in function signatures of
// spec §4.2.
func (t *Table) installBuiltinFunctions() {
	unary := func(name string, arg, result Handle, mangled32 bool) {
		h := t.alloc(&Symbol{
			Kind: KindFunction, Name: name,
			ArgTypes: []Handle{arg}, ResultType: result,
			MangledName32: mangled32,
		})
		t.level0[name] = h
	}

	unary("exp", RealType, RealType, true)
	unary("sin", RealType, RealType, true)
	unary("cos", RealType, RealType, true)
	unary("sqrt", RealType, RealType, true)
	unary("round", RealType, IntegerType, true)
	unary("iround", RealType, IntegerType, true)
	unary("ord", IntegerType, IntegerType, false) // identity cast; see DESIGN.md
	unary("new", IntegerType, IntegerType, false) // result is a raw address
	unary("writei", IntegerType, NullHandle, false)
	unary("writelni", IntegerType, NullHandle, false)
	unary("writef", RealType, NullHandle, true)
	unary("writelnf", RealType, NullHandle, true)

	// write/writeln are polymorphic: the parser resolves them to
	// writei/writef (or writelni/writelnf) by the argument's type
	// (spec §4.3's funcall reduction); a string argument keeps
	// write/writeln itself.
	for _, name := range []string{"write", "writeln"} {
		h := t.alloc(&Symbol{Kind: KindFunction, Name: name, Polymorphic: true})
		t.level0[name] = h
	}

	// read/readln take their argument by reference (the variable's
	// address, not its value); eof takes none. Supplemented per
	// SPEC_FULL.md since spec §4.4 does not describe their codegen.
	t.level0["read"] = t.alloc(&Symbol{Kind: KindFunction, Name: "read", ArgTypes: []Handle{NullHandle}, ByRef: true})
	t.level0["readln"] = t.alloc(&Symbol{Kind: KindFunction, Name: "readln", ArgTypes: []Handle{NullHandle}, ByRef: true})
	t.level0["eof"] = t.alloc(&Symbol{Kind: KindFunction, Name: "eof", ResultType: BooleanType})
}
