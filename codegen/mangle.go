package codegen

import "github.com/skx/pcc/symtab"

// mangleRuntime computes the external symbol name for a runtime call.
// Per spec §6/§9: every runtime entry point is prefixed with "_" (the
// historical cdecl C name-mangling this toolchain's linker expects), and
// the float32-trampoline variants (sin/cos/sqrt/exp/round/iround, plus
// writef/writelnf) carry an additional "32" suffix since the runtime
// exposes both a double and a float32 entry point and this language only
// ever produces the latter.
func mangleRuntime(name string, mangled32 bool) string {
	if mangled32 {
		return "_" + name + "32"
	}
	return "_" + name
}

// mangleLabel renders a label index as the NASM label used for both
// user-declared and compiler-generated labels, which share one
// monotonic index space (ast.Labels).
func mangleLabel(index int) string {
	return "L" + itoa(index)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// sizeSuffix picks the NASM size directive for a memory operand of the
// given byte width, used whenever an address needs disambiguating (most
// operations here go through registers, but field/array stores of
// sub-word types need it).
func sizeSuffix(size int) string {
	switch size {
	case 1:
		return "byte"
	case 4:
		return "dword"
	case 8:
		return "qword"
	default:
		return "dword"
	}
}

func isRealHandle(tab *symtab.Table, h symtab.Handle) bool {
	return tab.Resolve(h) == symtab.RealType
}
