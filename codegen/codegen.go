package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/skx/pcc/ast"
	"github.com/skx/pcc/symtab"
	"github.com/skx/pcc/token"
)

// Generator walks a parsed program's AST once and produces NASM x86-32
// text. Shape (accumulate a body string while side-tables record what
// the header/footer need to declare) is grounded on the teacher's
// compiler.Compiler/generator.go; generalized from a flat instruction
// slice to a recursive node walk, and from a single "constants" map to
// three independent pools (registers, temps, literals) since this
// language has typed storage instead of one RPN stack.
type Generator struct {
	tab    *symtab.Table
	labels *ast.Labels
	regs   *RegisterManager
	temps  *TempManager
	strs   *literalPool
	floats *literalPool
	log    *logrus.Logger

	body  strings.Builder
	uses  map[string]bool // external runtime symbols referenced, for "extern"
	err   error
}

// New returns a Generator ready to walk a single program body.
func New(tab *symtab.Table, labels *ast.Labels) *Generator {
	g := &Generator{
		tab:    tab,
		labels: labels,
		regs:   NewRegisterManager(),
		temps:  NewTempManager(),
		strs:   newLiteralPool("STRING"),
		floats: newLiteralPool("FLOAT"),
		log:    logrus.New(),
		uses:   make(map[string]bool),
	}
	g.log.SetLevel(logrus.WarnLevel)
	return g
}

// SetLogger installs a shared logger (wired by the compiler facade).
func (g *Generator) SetLogger(log *logrus.Logger) {
	if log != nil {
		g.log = log
	}
}

// Generate walks body and returns the complete NASM source text.
func (g *Generator) Generate(body *ast.Node) (string, error) {
	g.stmt(body)
	if g.err != nil {
		return "", g.err
	}

	var out strings.Builder
	out.WriteString("%include \"pascal.inc\"\n")
	out.WriteString(g.header())
	out.WriteString("\nsection .text\n")
	out.WriteString("global _asm_main\n")
	out.WriteString("_asm_main:\n")
	out.WriteString("        push ebp\n")
	out.WriteString("        mov ebp, esp\n")
	if frame := g.tab.FrameSize(); frame > 0 {
		out.WriteString(fmt.Sprintf("        sub esp, %d\n", frame))
	}
	out.WriteString(g.body.String())
	out.WriteString("        mov eax, 0\n")
	out.WriteString("        mov esp, ebp\n")
	out.WriteString("        pop ebp\n")
	out.WriteString("        ret\n")
	out.WriteString(g.dataSection())
	out.WriteString(g.bssSection())
	return out.String(), nil
}

func (g *Generator) fail(pos token.Position, format string, args ...interface{}) {
	if g.err == nil {
		g.err = errors.Errorf("%d:%d: "+format, append([]interface{}{pos.Line, pos.Column}, args...)...)
	}
}

func (g *Generator) emit(format string, args ...interface{}) {
	g.body.WriteString("        " + fmt.Sprintf(format, args...) + "\n")
}

func (g *Generator) emitLabel(label string) {
	g.body.WriteString(label + ":\n")
}

func (g *Generator) header() string {
	var externs []string
	for name := range g.uses {
		externs = append(externs, "extern "+name)
	}
	return strings.Join(externs, "\n") + "\n"
}

func (g *Generator) dataSection() string {
	var sb strings.Builder
	sb.WriteString("\nsection .data\n")
	for _, e := range g.strs.Entries() {
		sb.WriteString(fmt.Sprintf("%s: db %s, 0\n", e.Label, nasmStringLiteral(e.Value)))
	}
	for _, e := range g.floats.Entries() {
		sb.WriteString(fmt.Sprintf("%s: dd %s\n", e.Label, e.Value))
	}
	return sb.String()
}

func (g *Generator) bssSection() string {
	var sb strings.Builder
	sb.WriteString("\nsection .bss\n")
	for size, names := range groupTemps(g.temps) {
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("%s: resb %d\n", name, size))
		}
	}
	return sb.String()
}

func groupTemps(tm *TempManager) map[int][]string {
	out := make(map[int][]string)
	for size := range tm.Sizes() {
		for _, n := range tm.AllNames() {
			if strings.HasPrefix(n, fmt.Sprintf("TMP_%d_", size)) {
				out[size] = append(out[size], n)
			}
		}
	}
	return out
}

// nasmStringLiteral renders a Go string as a NASM db argument, escaping
// embedded quotes by splitting into adjacent comma-joined pieces.
func nasmStringLiteral(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `",34,"`) + `"`
}

// ---------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------

func (g *Generator) stmt(n *ast.Node) {
	if n == nil || g.err != nil {
		return
	}
	switch n.Kind {
	case token.PROGN:
		for _, c := range n.Children {
			g.stmt(c)
		}
	case token.IF:
		g.genIf(n)
	case token.LABEL:
		g.emitLabel(mangleLabel(int(n.IntValue)))
	case token.GOTO:
		g.emit("jmp %s", mangleLabel(int(n.IntValue)))
	case token.ASSIGN:
		g.genAssign(n)
	case token.FUNCALL:
		g.genCallDiscardResult(n)
	default:
		g.fail(n.Pos, "unhandled statement node %s", n.Kind)
	}
	g.regs.ReleaseAll()
}

// genIf emits "cmp cond; jump-if-false else_or_end; then; [jmp end; else:;
// else-body]; end:" using a fresh pair of compiler-generated labels.
func (g *Generator) genIf(n *ast.Node) {
	cond := n.Children[0]
	thenStmt := n.Children[1]

	falseLabel := mangleLabel(g.labels.Next())
	g.genBranchIfFalse(cond, falseLabel)
	g.stmt(thenStmt)

	if len(n.Children) == 3 {
		endLabel := mangleLabel(g.labels.Next())
		g.emit("jmp %s", endLabel)
		g.emitLabel(falseLabel)
		g.stmt(n.Children[2])
		g.emitLabel(endLabel)
		return
	}
	g.emitLabel(falseLabel)
}

// genBranchIfFalse evaluates a boolean-typed expression and jumps to
// label when it is false. Comparisons are special-cased into a single
// cmp+jcc pair; any other boolean expression is evaluated to 0/1 in a
// register and tested.
func (g *Generator) genBranchIfFalse(cond *ast.Node, label string) {
	switch cond.Kind {
	case token.EQUAL, token.NOTEQUAL, token.LESS, token.LESSEQ, token.GREATER, token.GREATEREQ:
		g.genComparisonBranch(cond, label, true)
	default:
		reg := g.intValue(cond)
		g.emit("cmp %s, 0", reg)
		g.emit("je %s", label)
	}
}

func (g *Generator) genComparisonBranch(n *ast.Node, label string, invert bool) {
	left, right := n.Children[0], n.Children[1]

	var jcc string
	if isRealHandle(g.tab, left.Type) || isRealHandle(g.tab, right.Type) {
		g.floatValue(left)
		g.floatValue(right)
		// floatValue(left) then floatValue(right) leaves st0=right,
		// st1=left; fxch restores natural left-vs-right order before
		// comparing so the unsigned jcc map below reads true left/right
		// flags instead of the reversed ones fcomip would otherwise set.
		g.emit("fxch st1")
		g.emit("fcomip st0, st1")
		g.emit("fstp st0")
		// FCOMIP sets CF/ZF/PF (an unsigned-style compare), never SF/OF,
		// so the signed jl/jle/jg/jge conditions below are meaningless
		// here; branch on the unsigned conditions instead.
		jcc = map[token.Kind]string{
			token.EQUAL:     "je",
			token.NOTEQUAL:  "jne",
			token.LESS:      "jb",
			token.LESSEQ:    "jbe",
			token.GREATER:   "ja",
			token.GREATEREQ: "jae",
		}[n.Kind]
	} else {
		lreg := g.intValue(left)
		rreg := g.intValue(right)
		g.emit("cmp %s, %s", lreg, rreg)
		jcc = map[token.Kind]string{
			token.EQUAL:     "je",
			token.NOTEQUAL:  "jne",
			token.LESS:      "jl",
			token.LESSEQ:    "jle",
			token.GREATER:   "jg",
			token.GREATEREQ: "jge",
		}[n.Kind]
	}

	if invert {
		jcc = invertJcc(jcc)
	}
	g.emit("%s %s", jcc, label)
}

func invertJcc(jcc string) string {
	inv := map[string]string{
		"je": "jne", "jne": "je",
		"jl": "jge", "jge": "jl",
		"jle": "jg", "jg": "jle",
		"jb": "jae", "jae": "jb",
		"jbe": "ja", "ja": "jbe",
	}
	return inv[jcc]
}

func (g *Generator) genAssign(n *ast.Node) {
	lhs, rhs := n.Children[0], n.Children[1]
	if isRealHandle(g.tab, lhs.Type) {
		g.floatValue(rhs)
		addr := g.lvalueAddr(lhs)
		g.emit("fstp dword [%s]", addr)
		return
	}
	reg := g.intValue(rhs)
	addr := g.lvalueAddr(lhs)
	size := g.tab.SizeOf(g.tab.Resolve(lhs.Type))
	g.emit("mov %s [%s], %s", sizeSuffix(size), addr, narrowReg(reg, size))
}

func narrowReg(reg string, size int) string {
	if size != 1 {
		return reg
	}
	low := map[string]string{"eax": "al", "ebx": "bl", "ecx": "cl", "edx": "dl"}
	if r, ok := low[reg]; ok {
		return r
	}
	return reg
}

// genCallDiscardResult evaluates a funcall statement (write/writeln/
// new/read/readln - any builtin invoked for effect) and discards
// whatever it leaves in eax/st0.
func (g *Generator) genCallDiscardResult(n *ast.Node) {
	g.genCall(n)
}

// ---------------------------------------------------------------------
// Expressions: lvalue addresses
// ---------------------------------------------------------------------

// lvalueAddr returns a NASM address expression (the text that belongs
// inside "[...]") for an IDENTIFIER, AREF, or CARET-deref node.
func (g *Generator) lvalueAddr(n *ast.Node) string {
	switch n.Kind {
	case token.IDENTIFIER:
		sym := g.tab.Get(n.Sym)
		return fmt.Sprintf("ebp-%d", sym.Offset+g.tab.SizeOf(sym.VarType))
	case token.AREF:
		reg := g.addrValue(n)
		return reg
	case token.CARET:
		reg := g.intValue(n.Children[0])
		return reg
	default:
		g.fail(n.Pos, "node %s is not an lvalue", n.Kind)
		return "0"
	}
}

// addrValue computes an AREF's effective address (base address + byte
// offset) into a register and returns a "[reg]"-style operand base.
func (g *Generator) addrValue(n *ast.Node) string {
	base, offset := n.Children[0], n.Children[1]

	baseReg := g.regs.Acquire(classInt)
	baseAddr := g.lvalueAddr(base)
	if base.Kind == token.AREF || base.Kind == token.CARET {
		g.emit("mov %s, %s", baseReg, baseAddr)
	} else {
		g.emit("lea %s, [%s]", baseReg, baseAddr)
	}

	offReg := g.intValue(offset)
	g.emit("add %s, %s", baseReg, offReg)
	g.regs.Release(classInt, offReg)
	return baseReg
}

// ---------------------------------------------------------------------
// Expressions: values
// ---------------------------------------------------------------------

// intValue evaluates n (assumed integer/boolean/char/pointer-typed) and
// returns the register holding its value.
func (g *Generator) intValue(n *ast.Node) string {
	switch n.Kind {
	case token.INTEGER:
		reg := g.regs.Acquire(classInt)
		g.emit("mov %s, %d", reg, n.IntValue)
		return reg
	case token.BOOLEAN:
		reg := g.regs.Acquire(classInt)
		v := 0
		if n.BoolValue {
			v = 1
		}
		g.emit("mov %s, %d", reg, v)
		return reg
	case token.IDENTIFIER:
		sym := g.tab.Get(n.Sym)
		reg := g.regs.Acquire(classInt)
		size := g.tab.SizeOf(g.tab.Resolve(sym.VarType))
		g.emit("mov %s, %s [%s]", narrowReg(reg, size), sizeSuffix(size), g.lvalueAddr(n))
		return reg
	case token.AREF:
		addr := g.addrValue(n)
		reg := addr
		size := g.tab.SizeOf(g.tab.Resolve(n.Type))
		g.emit("mov %s, %s [%s]", narrowReg(reg, size), sizeSuffix(size), reg)
		return reg
	case token.CARET:
		ptrReg := g.intValue(n.Children[0])
		size := g.tab.SizeOf(g.tab.Resolve(n.Type))
		g.emit("mov %s, %s [%s]", narrowReg(ptrReg, size), sizeSuffix(size), ptrReg)
		return ptrReg
	case token.MINUS:
		if len(n.Children) == 1 {
			reg := g.intValue(n.Children[0])
			g.emit("neg %s", reg)
			return reg
		}
		return g.genIntArith(n)
	case token.NOT:
		reg := g.intValue(n.Children[0])
		g.emit("xor %s, 1", reg)
		return reg
	case token.PLUS, token.ASTERISK:
		return g.genIntArith(n)
	case token.CASTINT:
		g.floatValue(n.Children[0])
		reg := g.regs.Acquire(classInt)
		addr := g.temps.Acquire(4)
		g.emit("fistp dword [%s]", addr)
		g.emit("mov %s, [%s]", reg, addr)
		g.temps.Release(4, addr)
		return reg
	case token.ASSIGN:
		g.genAssign(n)
		return g.regs.Acquire(classInt)
	case token.FUNCALL:
		return g.genCall(n)
	case token.EQUAL, token.NOTEQUAL, token.LESS, token.LESSEQ, token.GREATER, token.GREATEREQ:
		return g.genComparisonValue(n)
	case token.AND, token.OR:
		return g.genLogical(n)
	default:
		g.fail(n.Pos, "unhandled integer expression node %s", n.Kind)
		return g.regs.Acquire(classInt)
	}
}

// genIntArith handles "+"/"-"/"*" between two integer-typed operands; a
// mixed int/real operand pair was already widened to real by the parser
// (reduceBinary), so by the time codegen sees a PLUS/MINUS/ASTERISK node
// whose Type resolves to integer, both children are integer too.
func (g *Generator) genIntArith(n *ast.Node) string {
	if isRealHandle(g.tab, n.Type) {
		g.floatArith(n)
		return ""
	}
	left := g.intValue(n.Children[0])
	right := g.intValue(n.Children[1])
	switch n.Kind {
	case token.PLUS:
		g.emit("add %s, %s", left, right)
	case token.MINUS:
		g.emit("sub %s, %s", left, right)
	case token.ASTERISK:
		g.emit("imul %s, %s", left, right)
	}
	g.regs.Release(classInt, right)
	return left
}

func (g *Generator) genComparisonValue(n *ast.Node) string {
	trueLabel := mangleLabel(g.labels.Next())
	endLabel := mangleLabel(g.labels.Next())
	g.genComparisonBranch(n, trueLabel, false)
	reg := g.regs.Acquire(classInt)
	g.emit("mov %s, 0", reg)
	g.emit("jmp %s", endLabel)
	g.emitLabel(trueLabel)
	g.emit("mov %s, 1", reg)
	g.emitLabel(endLabel)
	return reg
}

func (g *Generator) genLogical(n *ast.Node) string {
	left := g.intValue(n.Children[0])
	right := g.intValue(n.Children[1])
	if n.Kind == token.AND {
		g.emit("and %s, %s", left, right)
	} else {
		g.emit("or %s, %s", left, right)
	}
	g.regs.Release(classInt, right)
	return left
}

// floatValue evaluates n (assumed real-typed) leaving the result on top
// of the x87 stack.
func (g *Generator) floatValue(n *ast.Node) {
	switch n.Kind {
	case token.REAL:
		label := g.floats.Label(formatFloat(n.RealValue))
		g.emit("fld dword [%s]", label)
	case token.IDENTIFIER:
		g.emit("fld dword [%s]", g.lvalueAddr(n))
	case token.AREF:
		addr := g.addrValue(n)
		g.emit("fld dword [%s]", addr)
	case token.CARET:
		ptrReg := g.intValue(n.Children[0])
		g.emit("fld dword [%s]", ptrReg)
	case token.MINUS:
		if len(n.Children) == 1 {
			g.floatValue(n.Children[0])
			g.emit("fchs")
			return
		}
		g.floatArith(n)
	case token.PLUS, token.ASTERISK, token.SLASH:
		g.floatArith(n)
	case token.CASTREAL:
		reg := g.intValue(n.Children[0])
		addr := g.temps.Acquire(4)
		g.emit("mov [%s], %s", addr, reg)
		g.emit("fild dword [%s]", addr)
		g.temps.Release(4, addr)
	case token.FUNCALL:
		g.genCall(n)
	default:
		g.fail(n.Pos, "unhandled real expression node %s", n.Kind)
	}
}

func (g *Generator) floatArith(n *ast.Node) {
	g.floatValue(n.Children[0])
	g.floatValue(n.Children[1])
	switch n.Kind {
	case token.PLUS:
		g.emit("faddp st1, st0")
	case token.MINUS:
		g.emit("fsubp st1, st0")
	case token.ASTERISK:
		g.emit("fmulp st1, st0")
	case token.SLASH:
		g.emit("fdivp st1, st0")
	}
}

// formatFloat renders f as a NASM "dd" operand that always parses as a
// float, never an integer: "%g" on a whole value like 3.0 produces "3",
// which "dd 3" assembles as the integer bit pattern 3 (~4.2e-45 as a
// float) instead of 3.0. Forcing a decimal point guarantees NASM reads
// the operand as a floating-point constant regardless of the value.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 32)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ---------------------------------------------------------------------
// Function calls
// ---------------------------------------------------------------------

// genCall emits a cdecl call to the built-in named by n.Literal. Per
// SPEC_FULL.md's "argument push order reversed" resolution, the single
// argument this language's funcalls ever carry is pushed as-is (reversal
// only matters for >1 argument, which never occurs here); ByRef builtins
// (read/readln) receive the argument's address instead of its value.
func (g *Generator) genCall(n *ast.Node) string {
	fn := g.tab.Get(n.Sym)
	extern := mangleRuntime(n.Literal, fn.MangledName32)
	g.uses[extern] = true

	if len(n.Children) == 1 {
		arg := n.Children[0]
		if fn.ByRef {
			addr := g.lvalueAddr(arg)
			reg := g.regs.Acquire(classInt)
			g.emit("lea %s, [%s]", reg, addr)
			g.emit("push %s", reg)
			g.regs.Release(classInt, reg)
		} else if isRealHandle(g.tab, arg.Type) {
			g.floatValue(arg)
			addr := g.temps.Acquire(4)
			g.emit("fstp dword [%s]", addr)
			g.emit("push dword [%s]", addr)
			g.temps.Release(4, addr)
		} else if arg.Type == symtab.StringType {
			label := g.strs.Label(arg.Literal)
			g.emit("push %s", label)
		} else {
			reg := g.intValue(arg)
			g.emit("push %s", reg)
			g.regs.Release(classInt, reg)
		}
		g.emit("call %s", extern)
		g.emit("add esp, 4")
	} else {
		g.emit("call %s", extern)
	}

	if isRealHandle(g.tab, fn.ResultType) {
		return ""
	}
	reg := g.regs.Acquire(classInt)
	g.emit("mov %s, eax", reg)
	return reg
}
