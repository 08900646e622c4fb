package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/pcc/ast"
	"github.com/skx/pcc/lexer"
	"github.com/skx/pcc/symtab"
	"github.com/skx/pcc/token"
)

func parseBody(t *testing.T, src string) (*ast.Node, *symtab.Table) {
	t.Helper()
	l := lexer.New(src)
	body, tab, _, err := Parse(l)
	require.NoError(t, err)
	return body, tab
}

func program(body string) string {
	return "program t(output);\n" + body + "\n."
}

// TestPrecedenceGrouping is spec §8 property 9.
func TestPrecedenceGrouping(t *testing.T) {
	body, _ := parseBody(t, program(`
var a, b, c: integer;
begin
  a := a + b * c
end`))
	assign := body.Children[0]
	require.Equal(t, token.ASSIGN, assign.Kind)
	rhs := assign.Children[1]
	assert.Equal(t, token.PLUS, rhs.Kind)
	assert.Equal(t, token.ASTERISK, rhs.Children[1].Kind)
}

// TestAssignIsLowestPrecedence: "a := b = c" groups as "a := (b = c)"
// since ":=" is the lowest-precedence operator and so reduces last.
func TestAssignIsLowestPrecedence(t *testing.T) {
	body, _ := parseBody(t, program(`
var a, b, c: boolean;
begin
  a := b = c
end`))
	assign := body.Children[0]
	require.Equal(t, token.ASSIGN, assign.Kind)
	assert.Equal(t, token.EQUAL, assign.Children[1].Kind)
}

// TestNestedArrayIndexFoldsToAREF is spec §8 property 9's array case.
func TestNestedArrayIndexFoldsToAREF(t *testing.T) {
	body, _ := parseBody(t, program(`
var a: array[0..9] of array[0..9] of integer;
    i, j: integer;
begin
  a[i][j] := 1
end`))
	assign := body.Children[0]
	outer := assign.Children[0]
	require.Equal(t, token.AREF, outer.Kind)
	inner := outer.Children[0]
	require.Equal(t, token.AREF, inner.Kind)
}

// TestConstFoldsToLiteral is spec §8 property 10.
func TestConstFoldsToLiteral(t *testing.T) {
	body, _ := parseBody(t, program(`
const k = 7;
var a: integer;
begin
  a := k
end`))
	assign := body.Children[0]
	rhs := assign.Children[1]
	require.Equal(t, token.INTEGER, rhs.Kind)
	assert.EqualValues(t, 7, rhs.IntValue)
}

// TestForLoopDesugarsToLabelsIfsGotos is spec §4.3's exact desugaring
// template and spec §8 property 8.
func TestForLoopDesugarsToLabelsIfsGotos(t *testing.T) {
	body, _ := parseBody(t, program(`
var i: integer;
begin
  for i := 1 to 10 do i := i
end`))
	forBlock := body.Children[0]
	require.Len(t, forBlock.Children, 3)
	assert.Equal(t, token.ASSIGN, forBlock.Children[0].Kind) // i := 1
	assert.Equal(t, token.LABEL, forBlock.Children[1].Kind)
	ifNode := forBlock.Children[2]
	require.Equal(t, token.IF, ifNode.Kind)
	assert.Equal(t, token.LESSEQ, ifNode.Children[0].Kind)

	inner := ifNode.Children[1]
	require.Equal(t, token.PROGN, inner.Kind)
	require.Len(t, inner.Children, 3) // body, step assign, goto
	assert.Equal(t, token.GOTO, inner.Children[2].Kind)
}

func TestForDowntoSwapsComparisonAndStep(t *testing.T) {
	body, _ := parseBody(t, program(`
var i: integer;
begin
  for i := 10 downto 1 do i := i
end`))
	forBlock := body.Children[0]
	ifNode := forBlock.Children[2]
	assert.Equal(t, token.GREATEREQ, ifNode.Children[0].Kind)
	step := ifNode.Children[1].Children[1]
	assert.Equal(t, token.MINUS, step.Children[1].Kind)
}

func TestWhileDesugarsToLabelIfGoto(t *testing.T) {
	body, _ := parseBody(t, program(`
var i: integer;
begin
  while i < 10 do i := i
end`))
	block := body.Children[0]
	require.Len(t, block.Children, 2)
	assert.Equal(t, token.LABEL, block.Children[0].Kind)
	ifNode := block.Children[1]
	require.Equal(t, token.IF, ifNode.Kind)
	assert.Equal(t, token.LESS, ifNode.Children[0].Kind)
}

func TestRepeatDesugarsToLabelBodyIf(t *testing.T) {
	body, _ := parseBody(t, program(`
var i: integer;
begin
  repeat i := i until i > 10
end`))
	block := body.Children[0]
	require.Len(t, block.Children, 3)
	assert.Equal(t, token.LABEL, block.Children[0].Kind)
	assert.Equal(t, token.PROGN, block.Children[1].Kind)
	ifNode := block.Children[2]
	assert.Equal(t, token.GREATER, ifNode.Children[0].Kind)
	assert.Equal(t, token.GOTO, ifNode.Children[2].Kind)
}

func TestForwardPointerRecordResolves(t *testing.T) {
	_, tab := parseBody(t, program(`
type
  pp = ^node;
  node = record val: integer; next: pp end;
var n: pp;
begin
  n := nil
end`))
	h, ok := tab.Lookup("node")
	require.True(t, ok)
	sym := tab.Get(tab.Resolve(h))
	require.Equal(t, symtab.KindRecord, sym.Kind)
	require.Len(t, sym.Fields, 2)
}

func TestWriteResolvesToPolymorphicSpecialization(t *testing.T) {
	body, _ := parseBody(t, program(`
var x: real;
begin
  writeln(x)
end`))
	call := body.Children[0]
	require.Equal(t, token.FUNCALL, call.Kind)
	assert.Equal(t, "writelnf", call.Literal)
}

// TestWriteStringArgumentKeepsWriteSymbol guards against regressing to
// the writei/writelni split for string arguments: write/writeln of a
// string must stay write/writeln (the char*-taking runtime entry
// points), never the integer-printing specialization.
func TestWriteStringArgumentKeepsWriteSymbol(t *testing.T) {
	body, _ := parseBody(t, program(`
begin
  writeln('hi')
end`))
	call := body.Children[0]
	require.Equal(t, token.FUNCALL, call.Kind)
	assert.Equal(t, "writeln", call.Literal)
}

// TestOrdIsIdentityCast guards the non-blocking ord fix: ord(x) must not
// produce a FUNCALL node (there is no runtime "_ord" symbol), it should
// fold away into its integer-retyped argument.
func TestOrdIsIdentityCast(t *testing.T) {
	body, _ := parseBody(t, program(`
var c: char;
begin
  writeln(ord(c))
end`))
	call := body.Children[0]
	require.Equal(t, token.FUNCALL, call.Kind)
	arg := call.Children[0]
	assert.NotEqual(t, token.FUNCALL, arg.Kind)
	assert.Equal(t, symtab.IntegerType, arg.Type)
}

func TestUndefinedIdentifierIsReported(t *testing.T) {
	l := lexer.New(program(`
begin
  x := 1
end`))
	_, _, _, err := Parse(l)
	require.Error(t, err)
}
