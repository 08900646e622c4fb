package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecordFieldOffsetsAndAlignment is spec §8 property 5.
func TestRecordFieldOffsetsAndAlignment(t *testing.T) {
	tab := New()

	rec := NewRecord()
	tab.AddField(rec, "flag", BooleanType) // size 1, align 1 -> offset 0, end 1
	tab.AddField(rec, "count", IntegerType) // size 4, align 4 -> offset 4, end 8
	tab.AddField(rec, "ch", CharType)        // size 1, align 1 -> offset 8, end 9
	tab.FinalizeRecord(rec)

	require.Len(t, rec.Fields, 3)
	assert.Equal(t, 0, rec.Fields[0].Offset)
	assert.Equal(t, 4, rec.Fields[1].Offset)
	assert.Equal(t, 8, rec.Fields[2].Offset)

	// total size padded up to record alignment (8)
	assert.Equal(t, 16, rec.recordSize)
}

// TestForwardReferenceResolvesThroughStub is spec §8 property 6:
// `pp = ^person; person = record x: integer end;` resolves to a pointer
// whose pointee-type has exactly one field named x of size 4.
func TestForwardReferenceResolvesThroughStub(t *testing.T) {
	tab := New()

	personStub := tab.LookupOrInsertType("person")
	pointerSym := &Symbol{Kind: KindPointer, PointeeType: personStub}
	ppHandle, err := tab.Insert("pp", pointerSym)
	require.NoError(t, err)

	rec := NewRecord()
	tab.AddField(rec, "x", IntegerType)
	tab.FinalizeRecord(rec)
	personHandle, err := tab.Insert("person", rec)
	require.NoError(t, err)
	require.NoError(t, tab.BindStub(personStub, personHandle))

	pp := tab.Get(ppHandle)
	require.Equal(t, KindPointer, pp.Kind)

	pointee := tab.Get(tab.Resolve(pp.PointeeType))
	require.Equal(t, KindRecord, pointee.Kind)
	require.Len(t, pointee.Fields, 1)
	assert.Equal(t, "x", pointee.Fields[0].Name)
	assert.Equal(t, 4, tab.SizeOf(pointee.Fields[0].Type))
}

// TestBasicTypeNamesCannotBeRedefined is spec §8 property 7.
func TestBasicTypeNamesCannotBeRedefined(t *testing.T) {
	tab := New()

	_, err := tab.Insert("integer", &Symbol{Kind: KindBasic, Size: 4})
	require.Error(t, err)

	// the level-0 entry must be untouched
	h, ok := tab.Lookup("integer")
	require.True(t, ok)
	assert.Equal(t, IntegerType, h)
	assert.Equal(t, 4, tab.Get(h).Size)
}

func TestLookupOrInsertTypeReusesExistingStub(t *testing.T) {
	tab := New()
	h1 := tab.LookupOrInsertType("node")
	h2 := tab.LookupOrInsertType("node")
	assert.Equal(t, h1, h2)
}

func TestBindStubRejectsDoubleBinding(t *testing.T) {
	tab := New()
	stub := tab.LookupOrInsertType("node")
	require.NoError(t, tab.BindStub(stub, IntegerType))
	require.Error(t, tab.BindStub(stub, RealType))
}

func TestInsertVariableAdvancesFrameOffset(t *testing.T) {
	tab := New()

	v1, err := tab.InsertVariable("flag", BooleanType)
	require.NoError(t, err)
	assert.Equal(t, 0, tab.Get(v1).Offset)

	v2, err := tab.InsertVariable("total", IntegerType)
	require.NoError(t, err)
	assert.Equal(t, 4, tab.Get(v2).Offset)

	assert.Equal(t, 8, tab.FrameSize())
}

func TestArraySize(t *testing.T) {
	tab := New()
	idx := &Symbol{Kind: KindSubrange, Low: 0, High: 9}
	idxH, err := tab.Insert("idxrange", idx)
	require.NoError(t, err)

	arr := &Symbol{Kind: KindArray, IndexType: idxH, ElementType: IntegerType}
	arrH, err := tab.Insert("arr", arr)
	require.NoError(t, err)

	assert.Equal(t, 40, tab.SizeOf(arrH))
	assert.Equal(t, 8, tab.AlignOf(arrH))
}

func TestBuiltinFunctionsInstalled(t *testing.T) {
	tab := New()
	for _, name := range []string{
		"exp", "sin", "cos", "sqrt", "round", "iround", "ord", "new",
		"write", "writeln", "writef", "writelnf", "writei", "writelni",
		"read", "readln", "eof",
	} {
		_, ok := tab.Lookup(name)
		assert.True(t, ok, "built-in %q should be installed", name)
	}
}
