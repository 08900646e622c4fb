// Package parser implements spec §4.3: recursive-descent declaration and
// statement parsing, loop desugaring at parse time, and the shift-reduce
// expression engine (expr.go). Diagnostics accumulate in a *Diagnostics
// (errors.go) instead of halting the pass, matching spec §7's "report
// once, continue where possible" design, grounded on
// lookbusy1344/arm-emulator's parser/errors.go ErrorList.
package parser

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/skx/pcc/ast"
	"github.com/skx/pcc/lexer"
	"github.com/skx/pcc/symtab"
	"github.com/skx/pcc/token"
)

// Parser holds the parser's state: a one-token lookahead buffer over the
// lexer (spec §3's lifecycle rule), the symbol table being built, the
// label list, and accumulated diagnostics.
type Parser struct {
	lex    *lexer.Lexer
	tab    *symtab.Table
	labels *ast.Labels
	diags  *Diagnostics
	log    *logrus.Logger

	cur  token.Token
	peek token.Token
}

// New creates a Parser reading from lex, with a fresh symbol table
// seeded with the built-ins of spec §4.2.
func New(lex *lexer.Lexer) *Parser {
	p := &Parser{
		lex:    lex,
		tab:    symtab.New(),
		labels: ast.NewLabels(),
		diags:  &Diagnostics{},
		log:    logrus.New(),
	}
	p.log.SetLevel(logrus.WarnLevel)
	p.cur = p.lexNext()
	p.peek = p.lexNext()
	return p
}

// SetLogger installs a shared logger and propagates it to the lexer.
// Parse does not call it: a parser created by Parse keeps the logger New
// gave it.
func (p *Parser) SetLogger(log *logrus.Logger) {
	if log == nil {
		return
	}
	p.log = log
	p.lex.SetLogger(log)
}

// Table exposes the symbol table built while parsing, consulted
// read-only by the code generator (spec §5).
func (p *Parser) Table() *symtab.Table { return p.tab }

// Labels exposes the label list built while parsing.
func (p *Parser) Labels() *ast.Labels { return p.labels }

// Diagnostics exposes every diagnostic recorded during parsing.
func (p *Parser) Diagnostics() *Diagnostics { return p.diags }

func (p *Parser) lexNext() token.Token {
	tok, err := p.lex.NextToken()
	if err != nil {
		p.diags.Add(token.Position{}, ErrUnclosedString, "", "%s", err.Error())
		return token.Token{Kind: token.EOF}
	}
	return tok
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lexNext()
}

// expect consumes the current token if it matches kind, reporting a
// diagnostic otherwise; it always advances, implementing the best-effort
// recovery of spec §7.
func (p *Parser) expect(k token.Kind) token.Token {
	tok := p.cur
	if tok.Kind != k {
		p.diags.Add(tok.Pos, ErrSyntax, tok.Literal, "expected %s, got %s", k, tok.Kind)
	}
	p.advance()
	return tok
}

// Parse runs the full program grammar of spec §4.3 and returns the
// resulting AST, the symbol table, the label list, and a non-nil error
// (the accumulated *Diagnostics) if anything was reported.
func Parse(lex *lexer.Lexer) (*ast.Node, *symtab.Table, *ast.Labels, error) {
	p := New(lex)
	body := p.program()
	if p.diags.HasErrors() {
		return body, p.tab, p.labels, p.diags
	}
	return body, p.tab, p.labels, nil
}

// program := "program" id "(" id ")" ";" block "."
func (p *Parser) program() *ast.Node {
	p.expect(token.PROGRAM)
	p.expect(token.IDENTIFIER)
	p.expect(token.LPAREN)
	p.expect(token.IDENTIFIER) // conventionally "output"; files other than output are a non-goal
	p.expect(token.RPAREN)
	p.expect(token.SEMI)
	body := p.block()
	p.expect(token.DOT)
	return body
}

// block := [labels] [consts] [types] [vars] begin_block
func (p *Parser) block() *ast.Node {
	if p.cur.Kind == token.LABEL {
		p.labelSection()
	}
	if p.cur.Kind == token.CONST {
		p.constSection()
	}
	if p.cur.Kind == token.TYPE {
		p.typeSection()
	}
	if p.cur.Kind == token.VAR {
		p.varSection()
	}
	return p.beginBlock()
}

// labelSection installs user label numbers in declaration order.
func (p *Parser) labelSection() {
	p.advance() // 'label'
	for {
		tok := p.expect(token.INTEGER)
		n, _ := strconv.Atoi(tok.Literal)
		p.labels.InsertUser(n)
		if p.cur.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.SEMI)
}

// constSection installs basic-typed constants; value tokens must be
// integer, real, string, or boolean (spec §4.3).
func (p *Parser) constSection() {
	p.advance() // 'const'
	for p.cur.Kind == token.IDENTIFIER {
		name := p.cur.Literal
		namePos := p.cur.Pos
		p.advance()
		p.expect(token.EQUAL)

		sym := p.constValue()
		p.expect(token.SEMI)

		if _, err := p.tab.Insert(name, sym); err != nil {
			p.diags.Add(namePos, ErrRedefinition, name, "%s", err.Error())
		}
	}
}

func (p *Parser) constValue() *symtab.Symbol {
	tok := p.cur
	switch tok.Kind {
	case token.INTEGER:
		p.advance()
		n, _ := strconv.ParseInt(tok.Literal, 10, 64)
		return &symtab.Symbol{Kind: symtab.KindConst, ConstType: symtab.IntegerType, IntValue: n}
	case token.MINUS:
		p.advance()
		inner := p.constValue()
		switch inner.ConstType {
		case symtab.RealType:
			inner.RealValue = -inner.RealValue
		default:
			inner.IntValue = -inner.IntValue
		}
		return inner
	case token.REAL:
		p.advance()
		f, _ := strconv.ParseFloat(tok.Literal, 64)
		return &symtab.Symbol{Kind: symtab.KindConst, ConstType: symtab.RealType, RealValue: f}
	case token.STRING:
		p.advance()
		return &symtab.Symbol{Kind: symtab.KindConst, ConstType: symtab.StringType, StringValue: tok.Literal}
	case token.BOOLEAN:
		p.advance()
		v, _ := token.BooleanLiteralValue(tok.Literal)
		return &symtab.Symbol{Kind: symtab.KindConst, ConstType: symtab.BooleanType, BoolValue: v}
	default:
		p.diags.Add(tok.Pos, ErrSyntax, tok.Literal, "const value must be integer, real, string, or boolean")
		p.advance()
		return &symtab.Symbol{Kind: symtab.KindConst, ConstType: symtab.IntegerType}
	}
}

// typeSection parses each right-hand side as one of: array, record,
// pointer, simple-type (spec §4.3).
func (p *Parser) typeSection() {
	p.advance() // 'type'
	for p.cur.Kind == token.IDENTIFIER {
		name := p.cur.Literal
		p.advance()
		p.expect(token.EQUAL)

		sym, enumIdents := p.typeRHS()
		handle := p.installType(name, sym)

		for i, id := range enumIdents {
			if _, err := p.tab.Insert(id, &symtab.Symbol{Kind: symtab.KindConst, ConstType: handle, IntValue: int64(i)}); err != nil {
				p.diags.Add(p.cur.Pos, ErrRedefinition, id, "%s", err.Error())
			}
		}

		p.expect(token.SEMI)
	}
}

// installType implements spec §4.3's stub-binding rule: a stub with a
// null target is updated in place; an already-bound stub is a
// redefinition error; basic-type names cannot be redefined.
func (p *Parser) installType(name string, sym *symtab.Symbol) symtab.Handle {
	existingHandle, exists := p.tab.Lookup(name)
	if !exists {
		h, err := p.tab.Insert(name, sym)
		if err != nil {
			p.diags.Add(p.cur.Pos, ErrRedefinition, name, "%s", err.Error())
		}
		return h
	}

	existing := p.tab.Get(existingHandle)
	switch existing.Kind {
	case symtab.KindBasic:
		p.diags.Add(p.cur.Pos, ErrBasicTypeRedefinition, name, "basic type %q cannot be redefined", name)
		return existingHandle
	case symtab.KindStub:
		if existing.Target != symtab.NullHandle {
			p.diags.Add(p.cur.Pos, ErrRedefinition, name, "type %q is already defined", name)
			return existingHandle
		}
		target := p.tab.InsertAnonymous(sym)
		if err := p.tab.BindStub(existingHandle, target); err != nil {
			p.diags.Add(p.cur.Pos, ErrRedefinition, name, "%s", err.Error())
		}
		return existingHandle
	default:
		p.diags.Add(p.cur.Pos, ErrRedefinition, name, "type %q is already defined", name)
		return existingHandle
	}
}

// typeRHS parses one type declaration's right-hand side. enumIdents is
// non-nil only for an enum declaration, whose member identifiers must be
// installed as consts against the handle installType ultimately assigns.
func (p *Parser) typeRHS() (sym *symtab.Symbol, enumIdents []string) {
	switch p.cur.Kind {
	case token.CARET:
		p.advance()
		targetName := p.expect(token.IDENTIFIER).Literal
		target := p.tab.LookupOrInsertType(targetName)
		return &symtab.Symbol{Kind: symtab.KindPointer, PointeeType: target}, nil

	case token.ARRAY:
		return p.arrayType(), nil

	case token.RECORD:
		return p.recordType(), nil

	case token.LPAREN:
		return p.enumType()

	case token.INTEGER, token.MINUS:
		return p.subrangeType(), nil

	case token.IDENTIFIER:
		aliasName := p.cur.Literal
		p.advance()
		target := p.tab.LookupOrInsertType(aliasName)
		return &symtab.Symbol{Kind: symtab.KindStub, Target: target}, nil

	default:
		p.diags.Add(p.cur.Pos, ErrUnknownType, p.cur.Literal, "expected a type definition")
		p.advance()
		return &symtab.Symbol{Kind: symtab.KindStub}, nil
	}
}

func (p *Parser) subrangeType() *symtab.Symbol {
	lo := p.parseIntLiteral()
	p.expect(token.DOTDOT)
	hi := p.parseIntLiteral()
	return &symtab.Symbol{Kind: symtab.KindSubrange, Low: lo, High: hi}
}

func (p *Parser) parseIntLiteral() int {
	neg := false
	if p.cur.Kind == token.MINUS {
		neg = true
		p.advance()
	}
	tok := p.expect(token.INTEGER)
	n, _ := strconv.Atoi(tok.Literal)
	if neg {
		n = -n
	}
	return n
}

// enumType parses "(a, b, c)". Member identifiers are returned so the
// caller can install them as integer consts against the final handle.
func (p *Parser) enumType() (*symtab.Symbol, []string) {
	p.advance() // '('
	var idents []string
	for {
		tok := p.expect(token.IDENTIFIER)
		idents = append(idents, tok.Literal)
		if p.cur.Kind == token.COMMA {
			p.advance()
			continue
		}
		break
	}
	p.expect(token.RPAREN)
	return &symtab.Symbol{Kind: symtab.KindSubrange, Low: 0, High: len(idents) - 1}, idents
}

func (p *Parser) arrayType() *symtab.Symbol {
	p.advance() // 'array'
	p.expect(token.LBRACKET)
	sub := p.subrangeType()
	idx := p.tab.InsertAnonymous(sub)
	p.expect(token.RBRACKET)
	p.expect(token.OF)
	elem := p.typeRef()
	return &symtab.Symbol{Kind: symtab.KindArray, IndexType: idx, ElementType: elem}
}

func (p *Parser) recordType() *symtab.Symbol {
	p.advance() // 'record'
	rec := symtab.NewRecord()
	for p.cur.Kind == token.IDENTIFIER {
		var names []string
		for {
			tok := p.expect(token.IDENTIFIER)
			names = append(names, tok.Literal)
			if p.cur.Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.COLON)
		fieldType := p.typeRef()
		for _, n := range names {
			p.tab.AddField(rec, n, fieldType)
		}
		if p.cur.Kind == token.SEMI {
			p.advance()
		}
	}
	p.expect(token.END)
	p.tab.FinalizeRecord(rec)
	return rec
}

// typeRef parses a type reference as it appears after a ':' in a var or
// field declaration.
func (p *Parser) typeRef() symtab.Handle {
	switch p.cur.Kind {
	case token.IDENTIFIER:
		name := p.cur.Literal
		p.advance()
		return p.tab.LookupOrInsertType(name)
	case token.ARRAY:
		return p.tab.InsertAnonymous(p.arrayType())
	case token.INTEGER, token.MINUS:
		return p.tab.InsertAnonymous(p.subrangeType())
	case token.CARET:
		p.advance()
		targetName := p.expect(token.IDENTIFIER).Literal
		target := p.tab.LookupOrInsertType(targetName)
		return p.tab.InsertAnonymous(&symtab.Symbol{Kind: symtab.KindPointer, PointeeType: target})
	default:
		p.diags.Add(p.cur.Pos, ErrUnknownType, p.cur.Literal, "expected a type reference")
		return symtab.NullHandle
	}
}

// varSection parses "id-list ':' type ;" entries, inserting each
// identifier with the shared type (spec §4.3).
func (p *Parser) varSection() {
	p.advance() // 'var'
	for p.cur.Kind == token.IDENTIFIER {
		var names []token.Token
		for {
			tok := p.expect(token.IDENTIFIER)
			names = append(names, tok)
			if p.cur.Kind == token.COMMA {
				p.advance()
				continue
			}
			break
		}
		p.expect(token.COLON)
		varType := p.typeRef()
		for _, tok := range names {
			if _, err := p.tab.InsertVariable(tok.Literal, varType); err != nil {
				p.diags.Add(tok.Pos, ErrRedefinition, tok.Literal, "%s", err.Error())
			}
		}
		p.expect(token.SEMI)
	}
}

// beginBlock parses a "begin ... end" block into a PROGN node.
func (p *Parser) beginBlock() *ast.Node {
	pos := p.cur.Pos
	p.expect(token.BEGINKW)
	var stmts []*ast.Node
	for p.cur.Kind != token.END && p.cur.Kind != token.EOF {
		stmts = append(stmts, p.statement())
		if p.cur.Kind == token.SEMI {
			p.advance()
		}
	}
	p.expect(token.END)
	return ast.Progn(pos, stmts...)
}

// statement dispatches on the leading token per spec §4.3's statement
// grammar; a leading "INTEGER ':'" is a statement label.
func (p *Parser) statement() *ast.Node {
	if p.cur.Kind == token.INTEGER && p.peek.Kind == token.COLON {
		pos := p.cur.Pos
		n, _ := strconv.Atoi(p.cur.Literal)
		p.advance() // int
		p.advance() // ':'

		idx, ok := p.labels.Index(n)
		if !ok {
			p.diags.Add(pos, ErrUndefinedIdentifier, strconv.Itoa(n), "label %d was not declared in a label section", n)
			idx = p.labels.InsertUser(n)
		}
		labelNode := ast.NewLeaf(token.LABEL, pos)
		labelNode.IntValue = int64(idx)

		return ast.Progn(pos, labelNode, p.statement())
	}

	switch p.cur.Kind {
	case token.BEGINKW:
		return p.beginBlock()
	case token.IF:
		return p.ifStatement()
	case token.WHILE:
		return p.whileStatement()
	case token.REPEAT:
		return p.repeatStatement()
	case token.FOR:
		return p.forStatement()
	case token.GOTO:
		return p.gotoStatement()
	default:
		return p.expression()
	}
}

func (p *Parser) ifStatement() *ast.Node {
	pos := p.cur.Pos
	p.advance() // 'if'
	cond := p.expression()
	p.expect(token.THEN)
	thenStmt := p.statement()

	children := []*ast.Node{cond, thenStmt}
	if p.cur.Kind == token.ELSE {
		p.advance()
		children = append(children, p.statement())
	}
	return ast.NewNode(token.IF, pos, children...)
}

// whileStatement desugars "while C do B" to
// "{ Lk: if C then { B; goto Lk } }" (spec §4.3), so the code generator
// only ever sees labels/ifs/gotos.
func (p *Parser) whileStatement() *ast.Node {
	pos := p.cur.Pos
	p.advance() // 'while'
	cond := p.expression()
	p.expect(token.DO)
	body := p.statement()

	lk := p.labels.Next()
	labelNode := p.labelLeaf(lk, pos)
	gotoNode := p.gotoLeaf(lk, pos)

	ifNode := ast.NewNode(token.IF, pos, cond, ast.Progn(pos, body, gotoNode))
	return ast.Progn(pos, labelNode, ifNode)
}

// repeatStatement desugars "repeat B until C" to
// "{ Lk: B; if C then {} else goto Lk }".
func (p *Parser) repeatStatement() *ast.Node {
	pos := p.cur.Pos
	p.advance() // 'repeat'

	var stmts []*ast.Node
	for p.cur.Kind != token.UNTIL && p.cur.Kind != token.EOF {
		stmts = append(stmts, p.statement())
		if p.cur.Kind == token.SEMI {
			p.advance()
		}
	}
	p.expect(token.UNTIL)
	cond := p.expression()

	lk := p.labels.Next()
	labelNode := p.labelLeaf(lk, pos)
	gotoNode := p.gotoLeaf(lk, pos)

	ifNode := ast.NewNode(token.IF, pos, cond, ast.Progn(pos), gotoNode)
	return ast.Progn(pos, labelNode, ast.Progn(pos, stmts...), ifNode)
}

// forStatement desugars "for v := S to E do B" to
// "{ v := S; Lk: if v <= E then { B; v := v+1; goto Lk } }"; downto
// swaps "<=" for ">=" and "+1" for "-1".
func (p *Parser) forStatement() *ast.Node {
	pos := p.cur.Pos
	p.advance() // 'for'
	varTok := p.expect(token.IDENTIFIER)
	start := p.expressionAfterAssign()

	downto := false
	switch p.cur.Kind {
	case token.TO:
		p.advance()
	case token.DOWNTO:
		downto = true
		p.advance()
	default:
		p.diags.Add(p.cur.Pos, ErrSyntax, p.cur.Literal, "expected 'to' or 'downto'")
	}
	end := p.expression()
	p.expect(token.DO)
	body := p.statement()

	initAssign := p.reduceBinary(token.ASSIGN, p.identifierRefNode(varTok), start, pos)

	lk := p.labels.Next()
	labelNode := p.labelLeaf(lk, pos)
	gotoNode := p.gotoLeaf(lk, pos)

	cmpKind := token.LESSEQ
	stepOp := token.PLUS
	if downto {
		cmpKind = token.GREATEREQ
		stepOp = token.MINUS
	}

	cond := p.reduceBinary(cmpKind, p.identifierRefNode(varTok), end, pos)
	one := ast.IntLiteral(1, symtab.IntegerType, pos)
	step := p.reduceBinary(stepOp, p.identifierRefNode(varTok), one, pos)
	stepAssign := p.reduceBinary(token.ASSIGN, p.identifierRefNode(varTok), step, pos)

	ifNode := ast.NewNode(token.IF, pos, cond, ast.Progn(pos, body, stepAssign, gotoNode))
	return ast.Progn(pos, initAssign, labelNode, ifNode)
}

// expressionAfterAssign parses the right-hand side of "v := expr" inside
// a for-loop header, where the ":=" has not yet been consumed as part of
// an ordinary expression (the loop variable is handled specially so it
// can be referenced again by the desugaring above).
func (p *Parser) expressionAfterAssign() *ast.Node {
	p.expect(token.ASSIGN)
	return p.expression()
}

func (p *Parser) gotoStatement() *ast.Node {
	pos := p.cur.Pos
	p.advance() // 'goto'
	tok := p.expect(token.INTEGER)
	n, _ := strconv.Atoi(tok.Literal)
	idx, ok := p.labels.Index(n)
	if !ok {
		p.diags.Add(pos, ErrUndefinedIdentifier, tok.Literal, "goto target %d was not declared as a label", n)
		idx = p.labels.InsertUser(n)
	}
	return p.gotoLeaf(idx, pos)
}

func (p *Parser) labelLeaf(index int, pos token.Position) *ast.Node {
	n := ast.NewLeaf(token.LABEL, pos)
	n.IntValue = int64(index)
	return n
}

func (p *Parser) gotoLeaf(index int, pos token.Position) *ast.Node {
	n := ast.NewLeaf(token.GOTO, pos)
	n.IntValue = int64(index)
	return n
}
