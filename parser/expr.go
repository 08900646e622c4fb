package parser

import (
	"strconv"

	"github.com/skx/pcc/ast"
	"github.com/skx/pcc/symtab"
	"github.com/skx/pcc/token"
)

// opFrame is one entry on the operator stack of the shift-reduce engine
// (spec §4.3/§9): an operator token plus its fixed precedence.
type opFrame struct {
	kind token.Kind
	pos  token.Position
	prec int
}

// precedence implements spec §4.3's fixed table:
// ":=" (1) < comparisons/"in" (2) < "+ - or" (3) < "* / and div mod" (4)
// < "not" (5, prefix-only) < ". ^" (6, postfix) < funcall (7, handled
// directly inside primary rather than via the operator stack).
func precedence(k token.Kind) int {
	switch k {
	case token.ASSIGN:
		return 1
	case token.EQUAL, token.NOTEQUAL, token.LESS, token.LESSEQ, token.GREATER, token.GREATEREQ, token.IN:
		return 2
	case token.PLUS, token.MINUS, token.OR:
		return 3
	case token.ASTERISK, token.SLASH, token.AND, token.DIV, token.MOD:
		return 4
	default:
		return 0
	}
}

// expression runs the shift-reduce engine: an operand stack and an
// operator stack, reducing whenever the incoming operator's precedence
// does not exceed the stack top's (spec §8 property 9: "a + b*c" groups
// as "a + (b*c)"; "a := b=c" groups as "a := (b=c)" since ":=" is the
// lowest-precedence operator and so is reduced last).
func (p *Parser) expression() *ast.Node {
	var operators []opFrame
	var operands []*ast.Node

	reduceWhile := func(minPrec int) {
		for len(operators) > 0 && operators[len(operators)-1].prec >= minPrec {
			top := operators[len(operators)-1]
			operators = operators[:len(operators)-1]
			right := p.pop(&operands, top.pos)
			left := p.pop(&operands, top.pos)
			operands = append(operands, p.reduceBinary(top.kind, left, right, top.pos))
		}
	}

	operands = append(operands, p.parseOperand())

	for {
		switch p.cur.Kind {
		case token.LBRACKET:
			base := p.pop(&operands, p.cur.Pos)
			operands = append(operands, p.parseIndexChain(base))
			continue
		case token.DOT:
			pos := p.cur.Pos
			p.advance()
			fieldTok := p.expect(token.IDENTIFIER)
			base := p.pop(&operands, pos)
			operands = append(operands, p.reduceField(base, fieldTok, pos))
			continue
		case token.CARET:
			pos := p.cur.Pos
			p.advance()
			base := p.pop(&operands, pos)
			operands = append(operands, p.reduceDeref(base, pos))
			continue
		}

		prec := precedence(p.cur.Kind)
		if prec == 0 {
			break
		}
		opPos := p.cur.Pos
		opKind := p.cur.Kind
		p.advance()

		reduceWhile(prec)

		operators = append(operators, opFrame{kind: opKind, pos: opPos, prec: prec})
		operands = append(operands, p.parseOperand())
	}

	reduceWhile(0)

	return p.pop(&operands, p.cur.Pos)
}

// parseOperand parses a single unary-prefixed primary. Every call site is
// the start of an expression, the token after "(", or the token after an
// infix operator (":=" included), so a "-" or "not" seen here always
// begins an operand and is treated as a prefix operator; no operator-
// stack test is made.
func (p *Parser) parseOperand() *ast.Node {
	switch p.cur.Kind {
	case token.MINUS:
		pos := p.cur.Pos
		p.advance()
		operand := p.parseOperand()
		n := ast.NewNode(token.MINUS, pos, operand)
		n.Type = operand.Type
		return n
	case token.NOT:
		pos := p.cur.Pos
		p.advance()
		operand := p.parseOperand()
		n := ast.NewNode(token.NOT, pos, operand)
		n.Type = symtab.BooleanType
		return n
	case token.LPAREN:
		p.advance()
		sub := p.expression()
		p.expect(token.RPAREN)
		return sub
	default:
		return p.primary()
	}
}

func (p *Parser) pop(operands *[]*ast.Node, pos token.Position) *ast.Node {
	n := len(*operands)
	if n == 0 {
		p.diags.Add(pos, ErrSyntax, "", "expression stack underflow")
		return p.sentinelNode(pos)
	}
	top := (*operands)[n-1]
	*operands = (*operands)[:n-1]
	return top
}

func (p *Parser) sentinelNode(pos token.Position) *ast.Node {
	n := ast.NewLeaf(token.INTEGER, pos)
	n.Type = symtab.IntegerType
	return n
}

// primary parses a literal, identifier reference, function call, or
// "nil".
func (p *Parser) primary() *ast.Node {
	tok := p.cur
	switch tok.Kind {
	case token.INTEGER:
		p.advance()
		n, _ := strconv.ParseInt(tok.Literal, 10, 64)
		return ast.IntLiteral(n, symtab.IntegerType, tok.Pos)
	case token.REAL:
		p.advance()
		f, _ := strconv.ParseFloat(tok.Literal, 64)
		return ast.RealLiteral(f, symtab.RealType, tok.Pos)
	case token.STRING:
		p.advance()
		n := ast.NewLeaf(token.STRING, tok.Pos)
		n.Literal = tok.Literal
		n.Type = symtab.StringType
		return n
	case token.BOOLEAN:
		p.advance()
		v, _ := token.BooleanLiteralValue(tok.Literal)
		n := ast.NewLeaf(token.BOOLEAN, tok.Pos)
		n.BoolValue = v
		n.Type = symtab.BooleanType
		return n
	case token.NIL:
		p.advance()
		return ast.IntLiteral(0, symtab.IntegerType, tok.Pos)
	case token.IDENTIFIER:
		return p.identifierOrCall()
	default:
		p.diags.Add(tok.Pos, ErrSyntax, tok.Literal, "unexpected token in expression")
		p.advance()
		return p.sentinelNode(tok.Pos)
	}
}

// identifierRefNode resolves a bare variable reference (used by the
// for-loop desugaring in parser.go, which must reference the loop
// variable more than once in the unfolded AST).
func (p *Parser) identifierRefNode(tok token.Token) *ast.Node {
	h, ok := p.tab.Lookup(tok.Literal)
	if !ok {
		p.diags.Add(tok.Pos, ErrUndefinedIdentifier, tok.Literal, "undefined identifier %q", tok.Literal)
		return p.sentinelNode(tok.Pos)
	}
	sym := p.tab.Get(h)
	if sym.Kind == symtab.KindConst {
		p.diags.Add(tok.Pos, ErrBadArgumentType, tok.Literal, "cannot assign to constant %q", tok.Literal)
	}
	n := ast.NewLeaf(token.IDENTIFIER, tok.Pos)
	n.Literal = tok.Literal
	n.Sym = h
	n.Type = sym.VarType
	return n
}

// identifierOrCall resolves a bare identifier appearing in expression
// position: a function name (dispatches to funcall), a const (folded to
// a literal node per spec §8 property 10), or a variable reference.
func (p *Parser) identifierOrCall() *ast.Node {
	tok := p.cur
	p.advance()

	h, ok := p.tab.Lookup(tok.Literal)
	if !ok {
		p.diags.Add(tok.Pos, ErrUndefinedIdentifier, tok.Literal, "undefined identifier %q", tok.Literal)
		n := ast.NewLeaf(token.IDENTIFIER, tok.Pos)
		n.Literal = tok.Literal
		n.Type = symtab.IntegerType
		return n
	}
	sym := p.tab.Get(h)

	switch sym.Kind {
	case symtab.KindFunction:
		return p.funcall(tok, h, sym)
	case symtab.KindConst:
		return p.constLiteralNode(sym, tok.Pos)
	}

	n := ast.NewLeaf(token.IDENTIFIER, tok.Pos)
	n.Literal = tok.Literal
	n.Sym = h
	if sym.Kind == symtab.KindVariable {
		n.Type = sym.VarType
	}
	return n
}

// constLiteralNode implements spec §8 property 10: after a const
// declaration, references fold directly into literal nodes rather than
// identifier nodes.
func (p *Parser) constLiteralNode(sym *symtab.Symbol, pos token.Position) *ast.Node {
	switch sym.ConstType {
	case symtab.IntegerType:
		return ast.IntLiteral(sym.IntValue, symtab.IntegerType, pos)
	case symtab.RealType:
		return ast.RealLiteral(sym.RealValue, symtab.RealType, pos)
	case symtab.BooleanType:
		n := ast.NewLeaf(token.BOOLEAN, pos)
		n.BoolValue = sym.BoolValue
		n.Type = symtab.BooleanType
		return n
	case symtab.StringType:
		n := ast.NewLeaf(token.STRING, pos)
		n.Literal = sym.StringValue
		n.Type = symtab.StringType
		return n
	default:
		// an enum member: materialized as an integer const typed by
		// its enclosing subrange handle.
		return ast.IntLiteral(sym.IntValue, sym.ConstType, pos)
	}
}

// funcall parses the single-argument call form and applies the
// resolution rules spec §4.3/SPEC_FULL.md describe for each built-in:
// write/writeln resolve to their writei/writef/writelni/writelnf
// specialization by the argument's type, except that a string argument
// keeps write/writeln itself; new(p) lowers to an assignment
// from a size-computed allocation call; ord is an identity cast.
func (p *Parser) funcall(tok token.Token, fnHandle symtab.Handle, fn *symtab.Symbol) *ast.Node {
	var arg *ast.Node
	if p.cur.Kind == token.LPAREN {
		p.advance()
		if p.cur.Kind != token.RPAREN {
			arg = p.expression()
		}
		p.expect(token.RPAREN)
	}

	switch {
	case fn.Polymorphic:
		return p.polymorphicCall(tok, fnHandle, fn, arg)
	case fn.Name == "new":
		return p.newCall(tok, fnHandle, fn, arg)
	default:
		return p.plainCall(tok, fnHandle, fn, arg)
	}
}

func (p *Parser) polymorphicCall(tok token.Token, fnHandle symtab.Handle, fn *symtab.Symbol, arg *ast.Node) *ast.Node {
	if arg == nil {
		p.diags.Add(tok.Pos, ErrBadArgumentType, fn.Name, "%q requires an argument", fn.Name)
		arg = p.sentinelNode(tok.Pos)
	}

	// A string argument keeps write/writeln as-is: spec §9 ("write of
	// strings... _write takes a char*") and §6's distinct _write/_writeln
	// symbols mean strings never go through the writei/writef split.
	if p.tab.Resolve(arg.Type) == symtab.StringType {
		call := ast.NewNode(token.FUNCALL, tok.Pos, arg)
		call.Literal = fn.Name
		call.Sym = fnHandle
		call.Type = fn.ResultType
		return call
	}

	suffix := "i"
	if p.tab.Resolve(arg.Type) == symtab.RealType {
		suffix = "f"
	}
	target := fn.Name + suffix

	h2, ok := p.tab.Lookup(target)
	if !ok {
		p.diags.Add(tok.Pos, ErrUnhandledNode, target, "no specialization %q for %q", target, fn.Name)
		return p.sentinelNode(tok.Pos)
	}
	fn2 := p.tab.Get(h2)

	call := ast.NewNode(token.FUNCALL, tok.Pos, arg)
	call.Literal = target
	call.Sym = h2
	call.Type = fn2.ResultType
	return call
}

func (p *Parser) newCall(tok token.Token, fnHandle symtab.Handle, fn *symtab.Symbol, arg *ast.Node) *ast.Node {
	if arg == nil {
		p.diags.Add(tok.Pos, ErrBadArgumentType, "new", "new() requires a pointer-typed argument")
		return p.sentinelNode(tok.Pos)
	}
	ptrType := p.tab.Resolve(arg.Type)
	ptrSym := p.tab.Get(ptrType)
	if ptrSym.Kind != symtab.KindPointer {
		p.diags.Add(tok.Pos, ErrBadArgumentType, "new", "new() requires a pointer-typed argument")
		return p.sentinelNode(tok.Pos)
	}

	size := p.tab.SizeOf(ptrSym.PointeeType)
	sizeLit := ast.IntLiteral(int64(size), symtab.IntegerType, tok.Pos)

	call := ast.NewNode(token.FUNCALL, tok.Pos, sizeLit)
	call.Literal = "new"
	call.Sym = fnHandle
	call.Type = fn.ResultType

	assign := ast.NewNode(token.ASSIGN, tok.Pos, arg, call)
	assign.Type = arg.Type
	return assign
}

// plainCall covers exp/sin/cos/sqrt/round/iround/ord/read/readln/eof:
// a single (possibly absent, for eof) argument, coerced to the built-in's
// declared argument type when it is an integer-to-real widening.
func (p *Parser) plainCall(tok token.Token, fnHandle symtab.Handle, fn *symtab.Symbol, arg *ast.Node) *ast.Node {
	if fn.Name == "ord" {
		// ord is documented as an identity cast (SPEC_FULL.md): it has
		// no runtime counterpart, so it is folded away here instead of
		// emitting a FUNCALL node codegen would have to call "_ord" for
		// - a symbol the runtime never defines.
		if arg == nil {
			p.diags.Add(tok.Pos, ErrBadArgumentType, "ord", "ord() requires an argument")
			arg = p.sentinelNode(tok.Pos)
		}
		arg.Type = symtab.IntegerType
		return arg
	}

	if arg != nil && len(fn.ArgTypes) == 1 && fn.ArgTypes[0] != symtab.NullHandle {
		want := fn.ArgTypes[0]
		got := p.tab.Resolve(arg.Type)
		if got != want {
			if want == symtab.RealType && got == symtab.IntegerType {
				arg = p.castTo(arg, symtab.RealType, token.CASTREAL)
			} else {
				p.diags.Add(tok.Pos, ErrBadArgumentType, fn.Name, "argument type mismatch calling %q", fn.Name)
			}
		}
	}

	call := ast.NewNode(token.FUNCALL, tok.Pos, argsOrEmpty(arg)...)
	call.Literal = fn.Name
	call.Sym = fnHandle
	call.Type = fn.ResultType
	return call
}

func argsOrEmpty(arg *ast.Node) []*ast.Node {
	if arg == nil {
		return nil
	}
	return []*ast.Node{arg}
}

func (p *Parser) castTo(n *ast.Node, target symtab.Handle, kind token.Kind) *ast.Node {
	c := ast.NewNode(kind, n.Pos, n)
	c.Type = target
	return c
}

// parseIndexChain folds one or more bracket groups, each possibly
// holding comma-separated indices, into nested AREF nodes left to right
// (spec §8 property 9: "a[i][j]" and "a[i, j]" both fold the same way).
func (p *Parser) parseIndexChain(base *ast.Node) *ast.Node {
	for p.cur.Kind == token.LBRACKET {
		p.advance()
		indices := []*ast.Node{p.expression()}
		for p.cur.Kind == token.COMMA {
			p.advance()
			indices = append(indices, p.expression())
		}
		p.expect(token.RBRACKET)
		for _, idx := range indices {
			base = p.reduceArrayIndex(base, idx)
		}
	}
	return base
}

func (p *Parser) reduceArrayIndex(base, idx *ast.Node) *ast.Node {
	baseType := p.tab.Resolve(base.Type)
	arrSym := p.tab.Get(baseType)
	if arrSym.Kind != symtab.KindArray {
		p.diags.Add(idx.Pos, ErrIndexOfNonArray, "", "cannot index a non-array value")
		return base
	}

	lo, _ := p.tab.SubrangeBounds(arrSym.IndexType)
	elemType := arrSym.ElementType
	elemSize := p.tab.SizeOf(elemType)

	loLit := ast.IntLiteral(int64(lo), symtab.IntegerType, idx.Pos)
	zeroBased := p.reduceBinary(token.MINUS, idx, loLit, idx.Pos)
	sizeLit := ast.IntLiteral(int64(elemSize), symtab.IntegerType, idx.Pos)
	byteOffset := p.reduceBinary(token.ASTERISK, zeroBased, sizeLit, idx.Pos)

	return ast.AREF(base, byteOffset, elemType, idx.Pos)
}

func (p *Parser) reduceField(base *ast.Node, fieldTok token.Token, pos token.Position) *ast.Node {
	baseType := p.tab.Resolve(base.Type)
	recSym := p.tab.Get(baseType)
	if recSym.Kind != symtab.KindRecord {
		p.diags.Add(pos, ErrFieldOfNonRecord, fieldTok.Literal, "cannot access field %q of a non-record value", fieldTok.Literal)
		return base
	}
	field, ok := recSym.FindField(fieldTok.Literal)
	if !ok {
		p.diags.Add(fieldTok.Pos, ErrUndefinedIdentifier, fieldTok.Literal, "record has no field %q", fieldTok.Literal)
		return base
	}
	offLit := ast.IntLiteral(int64(field.Offset), symtab.IntegerType, fieldTok.Pos)
	return ast.AREF(base, offLit, field.Type, pos)
}

func (p *Parser) reduceDeref(operand *ast.Node, pos token.Position) *ast.Node {
	t := p.tab.Resolve(operand.Type)
	sym := p.tab.Get(t)
	if sym.Kind != symtab.KindPointer {
		p.diags.Add(pos, ErrDerefOfNonPointer, "", "cannot dereference a non-pointer value")
		return operand
	}
	n := ast.NewNode(token.CARET, pos, operand)
	n.Type = sym.PointeeType
	return n
}

// reduceBinary implements spec §4.3's general binary reduction rule:
// ":=" coerces its right side to the left side's type (int<->real only);
// any other mixed int/real operand pair widens the integer side to real,
// and the result is real; comparison operators always yield boolean;
// "div"/"mod"/"in" are non-goals and are rejected here rather than in
// the grammar, since they are still valid tokens at this precedence.
func (p *Parser) reduceBinary(kind token.Kind, left, right *ast.Node, pos token.Position) *ast.Node {
	if kind == token.DIV || kind == token.MOD {
		p.diags.Add(pos, ErrUnhandledNode, kind.String(), "%q is not supported by this implementation", kind.String())
		return p.sentinelNode(pos)
	}
	if kind == token.IN {
		p.diags.Add(pos, ErrUnhandledNode, "in", "set membership (\"in\") is not supported by this implementation")
		return p.sentinelNode(pos)
	}

	if kind == token.ASSIGN {
		lt := p.tab.Resolve(left.Type)
		rt := p.tab.Resolve(right.Type)
		rhs := right
		switch {
		case lt == symtab.RealType && rt == symtab.IntegerType:
			rhs = p.castTo(right, symtab.RealType, token.CASTREAL)
		case lt == symtab.IntegerType && rt == symtab.RealType:
			p.log.Warnf("%d:%d: assigning a real value to an integer variable truncates it", pos.Line, pos.Column)
			rhs = p.castTo(right, symtab.IntegerType, token.CASTINT)
		}
		n := ast.NewNode(token.ASSIGN, pos, left, rhs)
		n.Type = left.Type
		return n
	}

	lt := p.tab.Resolve(left.Type)
	rt := p.tab.Resolve(right.Type)
	resultType := left.Type

	// "/" is always real division in this language, even between two
	// integer operands, matching Pascal's "/" vs "div" split.
	forceReal := kind == token.SLASH

	if (forceReal || lt != rt) && isNumeric(lt) && isNumeric(rt) {
		if lt == symtab.IntegerType {
			left = p.castTo(left, symtab.RealType, token.CASTREAL)
		}
		if rt == symtab.IntegerType {
			right = p.castTo(right, symtab.RealType, token.CASTREAL)
		}
		resultType = symtab.RealType
	}

	switch kind {
	case token.EQUAL, token.NOTEQUAL, token.LESS, token.LESSEQ, token.GREATER, token.GREATEREQ:
		resultType = symtab.BooleanType
	}

	n := ast.NewNode(kind, pos, left, right)
	n.Type = resultType
	return n
}

func isNumeric(h symtab.Handle) bool {
	return h == symtab.IntegerType || h == symtab.RealType
}
