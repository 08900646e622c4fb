// Package lexer implements spec §4.1: a two-character-lookahead scanner
// over the source text that produces one token.Token at a time.
package lexer

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/skx/pcc/token"
)

// Lexer holds our object-state. Shape (position/readPosition/ch/
// characters fields, readChar/peekChar helpers) is grounded on the
// teacher's lexer.Lexer; extended with line/column tracking and a
// pluggable logger for the "unknown byte skipped" warning of spec §4.1.
type Lexer struct {
	position     int    // current character position
	readPosition int    // next character position
	ch           rune   // current character
	characters   []rune // rune slice of input string

	line   int
	column int

	log *logrus.Logger
}

// New creates a Lexer instance from string input.
func New(input string) *Lexer {
	l := &Lexer{characters: []rune(input), line: 1, column: 0, log: logrus.New()}
	l.log.SetLevel(logrus.WarnLevel)
	l.readChar()
	return l
}

// SetLogger overrides the lexer's logger (used by the compiler facade to
// wire a shared, debug-level logger when -d/--debug is set).
func (l *Lexer) SetLogger(log *logrus.Logger) {
	if log != nil {
		l.log = log
	}
}

// read one character forward, tracking line/column.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.characters) {
		l.ch = rune(0)
	} else {
		l.ch = l.characters[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar looks one character ahead without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.characters) {
		return rune(0)
	}
	return l.characters[l.readPosition]
}

// peekChar2 looks two characters ahead, used by readNumber to check that
// an exponent sign ("e+"/"e-") is followed by a digit.
func (l *Lexer) peekChar2() rune {
	if l.readPosition+1 >= len(l.characters) {
		return rune(0)
	}
	return l.characters[l.readPosition+1]
}

// NextToken returns the next token, skipping whitespace and comments.
//
// Tokenization cycles exactly per spec §4.1: (1) consume whitespace and
// comments, (2) try keyword-or-identifier, number, string literal,
// two-char-then-one-char operator/delimiter, in that order.
func (l *Lexer) NextToken() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}

	pos := token.Position{Line: l.line, Column: l.column, Offset: l.position}

	switch {
	case l.ch == rune(0):
		return token.Token{Kind: token.EOF, Pos: pos}, nil

	case isLetter(l.ch):
		id := l.readIdentifier()
		return token.Token{Kind: token.LookupIdentifier(id), Literal: id, Pos: pos}, nil

	case isDigit(l.ch):
		return l.readNumber(pos), nil

	case l.ch == '\'':
		return l.readString(pos)

	default:
		return l.readOperator(pos)
	}
}

// skipWhitespaceAndComments consumes runs of whitespace and the two
// comment forms `{…}`/`(*…*)`. Per spec §4.1 and §9, comments are *flat*
// (not nested) and the two terminators are interchangeable: a comment
// opened with `{` may be closed with `*)` and vice versa. This quirk is
// preserved deliberately (see DESIGN.md Open Questions).
func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		for isWhitespace(l.ch) {
			l.readChar()
		}

		switch {
		case l.ch == '{':
			if err := l.consumeComment(); err != nil {
				return err
			}
			continue
		case l.ch == '(' && l.peekChar() == '*':
			l.readChar() // consume '('
			if err := l.consumeComment(); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

// consumeComment consumes characters until either `}` or `*)` is seen,
// starting from the opening delimiter (already positioned at it).
func (l *Lexer) consumeComment() error {
	l.readChar() // step past the opening '{' or '*'
	for {
		if l.ch == rune(0) {
			return errors.New("unterminated comment")
		}
		if l.ch == '}' {
			l.readChar()
			return nil
		}
		if l.ch == '*' && l.peekChar() == ')' {
			l.readChar()
			l.readChar()
			return nil
		}
		l.readChar()
	}
}

// readIdentifier reads a letter-then-alphanumerics run.
func (l *Lexer) readIdentifier() string {
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return sb.String()
}

// readNumber reads a digit run, optional ".digits", optional exponent.
// Per spec §4.1 ".." is never consumed as part of a number: subrange
// syntax takes priority over a trailing decimal point.
func (l *Lexer) readNumber(pos token.Position) token.Token {
	var sb strings.Builder
	isReal := false

	for isDigit(l.ch) {
		sb.WriteRune(l.ch)
		l.readChar()
	}

	if l.ch == '.' && l.peekChar() != '.' && isDigit(l.peekChar()) {
		isReal = true
		sb.WriteRune(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekChar2())) {
			isReal = true
			sb.WriteRune(l.ch)
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				sb.WriteRune(l.ch)
				l.readChar()
			}
			for isDigit(l.ch) {
				sb.WriteRune(l.ch)
				l.readChar()
			}
		}
	}

	kind := token.INTEGER
	if isReal {
		kind = token.REAL
	}
	return token.Token{Kind: kind, Literal: sb.String(), Pos: pos}
}

// readString reads a Pascal single-quote-delimited string literal; two
// consecutive single quotes inside the string encode one literal quote.
func (l *Lexer) readString(pos token.Position) (token.Token, error) {
	l.readChar() // consume opening quote
	var sb strings.Builder
	for {
		if l.ch == rune(0) {
			return token.Token{}, errors.Errorf("unclosed string literal at %d:%d", pos.Line, pos.Column)
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				sb.WriteRune('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // consume closing quote
			break
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return token.Token{Kind: token.STRING, Literal: sb.String(), Pos: pos}, nil
}

// readOperator handles every delimiter/operator in spec §6, preferring
// the two-character spellings (`..`, `:=`, `<>`, `<=`, `>=`) before
// falling back to the single-character ones. Unknown bytes are skipped
// with a warning to guarantee forward progress, per spec §4.1/§7.
func (l *Lexer) readOperator(pos token.Position) (token.Token, error) {
	ch := l.ch
	peek := l.peekChar()

	two := func(k token.Kind) (token.Token, error) {
		lit := string(ch) + string(peek)
		l.readChar()
		l.readChar()
		return token.Token{Kind: k, Literal: lit, Pos: pos}, nil
	}

	switch {
	case ch == '.' && peek == '.':
		return two(token.DOTDOT)
	case ch == ':' && peek == '=':
		return two(token.ASSIGN)
	case ch == '<' && peek == '>':
		return two(token.NOTEQUAL)
	case ch == '<' && peek == '=':
		return two(token.LESSEQ)
	case ch == '>' && peek == '=':
		return two(token.GREATEREQ)
	}

	single := map[rune]token.Kind{
		',': token.COMMA,
		';': token.SEMI,
		':': token.COLON,
		'(': token.LPAREN,
		')': token.RPAREN,
		'[': token.LBRACKET,
		']': token.RBRACKET,
		'+': token.PLUS,
		'-': token.MINUS,
		'*': token.ASTERISK,
		'/': token.SLASH,
		'=': token.EQUAL,
		'<': token.LESS,
		'>': token.GREATER,
		'^': token.CARET,
		'.': token.DOT,
	}

	if kind, ok := single[ch]; ok {
		l.readChar()
		return token.Token{Kind: kind, Literal: string(ch), Pos: pos}, nil
	}

	// Unknown byte: warn and skip it, to guarantee forward progress.
	l.log.Warnf("skipping unknown byte %q at %d:%d", ch, pos.Line, pos.Column)
	l.readChar()
	return l.NextToken()
}

func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isLetter(ch rune) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}
