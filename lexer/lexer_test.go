package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/pcc/token"
)

// next is a small helper that fails the test on a lexer error, mirroring
// the teacher's table-driven lexer tests but adapted for NextToken's
// (Token, error) signature.
func next(t *testing.T, l *Lexer) token.Token {
	t.Helper()
	tok, err := l.NextToken()
	require.NoError(t, err)
	return tok
}

// TestReservedWordsRoundTrip is spec §8 property 1: lexing each reserved
// word yields exactly one token of that keyword's kind.
func TestReservedWordsRoundTrip(t *testing.T) {
	words := []struct {
		text string
		kind token.Kind
	}{
		{"array", token.ARRAY}, {"begin", token.BEGINKW}, {"case", token.CASE},
		{"const", token.CONST}, {"do", token.DO}, {"downto", token.DOWNTO},
		{"else", token.ELSE}, {"end", token.END}, {"file", token.FILEKW},
		{"for", token.FOR}, {"function", token.FUNCTION}, {"goto", token.GOTO},
		{"if", token.IF}, {"label", token.LABEL}, {"nil", token.NIL},
		{"of", token.OF}, {"packed", token.PACKED}, {"procedure", token.PROCEDURE},
		{"program", token.PROGRAM}, {"record", token.RECORD}, {"repeat", token.REPEAT},
		{"set", token.SET}, {"then", token.THEN}, {"to", token.TO},
		{"type", token.TYPE}, {"until", token.UNTIL}, {"var", token.VAR},
		{"while", token.WHILE}, {"with", token.WITH},
	}
	for _, w := range words {
		l := New(w.text)
		tok := next(t, l)
		assert.Equal(t, w.kind, tok.Kind, "keyword %q", w.text)
		assert.Equal(t, token.EOF, next(t, l).Kind)
	}
}

// TestStringEscaping is spec §8 property 2.
func TestStringEscaping(t *testing.T) {
	l := New(`'Don''t'`)
	tok := next(t, l)
	assert.Equal(t, token.STRING, tok.Kind)
	assert.Equal(t, "Don't", tok.Literal)
	assert.Equal(t, token.EOF, next(t, l).Kind)
}

// TestUnclosedStringIsAnError.
func TestUnclosedStringIsAnError(t *testing.T) {
	l := New(`'oops`)
	_, err := l.NextToken()
	require.Error(t, err)
}

// TestSubrangeNeverTokenizesAsReal is spec §8 property 3.
func TestSubrangeNeverTokenizesAsReal(t *testing.T) {
	l := New("1..10")
	tok := next(t, l)
	assert.Equal(t, token.INTEGER, tok.Kind)
	assert.Equal(t, "1", tok.Literal)

	tok = next(t, l)
	assert.Equal(t, token.DOTDOT, tok.Kind)

	tok = next(t, l)
	assert.Equal(t, token.INTEGER, tok.Kind)
	assert.Equal(t, "10", tok.Literal)

	assert.Equal(t, token.EOF, next(t, l).Kind)
}

// TestCommentsAreFlatNotNested is spec §8 property 4: comment nesting is
// flat, so `(* world *)` inside `{ ... }` ends the *outer* comment at the
// first terminator encountered, leaving no tokens before EOF.
func TestCommentsAreFlatNotNested(t *testing.T) {
	l := New("{ hello (* world *) }")
	assert.Equal(t, token.EOF, next(t, l).Kind)
}

// TestMixedCommentTerminatorQuirk documents the preserved quirk from
// spec §9: a comment opened with `{` may be closed with `*)`.
func TestMixedCommentTerminatorQuirk(t *testing.T) {
	l := New("{ oops *) 42")
	tok := next(t, l)
	assert.Equal(t, token.INTEGER, tok.Kind)
	assert.Equal(t, "42", tok.Literal)
}

func TestRealNumberWithExponent(t *testing.T) {
	l := New("1.5e10 2E-3 3e+2")
	tok := next(t, l)
	assert.Equal(t, token.REAL, tok.Kind)
	assert.Equal(t, "1.5e10", tok.Literal)

	tok = next(t, l)
	assert.Equal(t, token.REAL, tok.Kind)
	assert.Equal(t, "2E-3", tok.Literal)

	tok = next(t, l)
	assert.Equal(t, token.REAL, tok.Kind)
	assert.Equal(t, "3e+2", tok.Literal)
}

func TestTwoCharacterOperators(t *testing.T) {
	input := ":= <> <= >= .. : < > = . + - * /"
	expected := []token.Kind{
		token.ASSIGN, token.NOTEQUAL, token.LESSEQ, token.GREATEREQ, token.DOTDOT,
		token.COLON, token.LESS, token.GREATER, token.EQUAL, token.DOT,
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.EOF,
	}
	l := New(input)
	for i, want := range expected {
		tok := next(t, l)
		assert.Equal(t, want, tok.Kind, "token %d", i)
	}
}

func TestUnaryMinusIsNotLexedIntoTheNumber(t *testing.T) {
	// Unlike the teacher's lexer, unary-minus disambiguation is a parser
	// concern (spec §4.3) — the lexer always emits MINUS then a separate
	// number token.
	l := New("-3")
	tok := next(t, l)
	assert.Equal(t, token.MINUS, tok.Kind)
	tok = next(t, l)
	assert.Equal(t, token.INTEGER, tok.Kind)
	assert.Equal(t, "3", tok.Literal)
}

func TestIdentifierAndUnknownByteSkip(t *testing.T) {
	l := New("foo $ bar")
	tok := next(t, l)
	assert.Equal(t, token.IDENTIFIER, tok.Kind)
	assert.Equal(t, "foo", tok.Literal)

	// The unknown byte '$' is skipped with a warning; lexing continues.
	tok = next(t, l)
	assert.Equal(t, token.IDENTIFIER, tok.Kind)
	assert.Equal(t, "bar", tok.Literal)
}
