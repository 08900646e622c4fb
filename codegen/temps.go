package codegen

import "fmt"

// TempManager hands out names for scratch .bss slots used to round-trip
// values between the general-purpose registers and the x87 stack
// (NASM/cdecl has no direct "mov" between them). Grounded on the
// teacher's stack.Stack: a simple free-list guarded by per-size slices
// instead of a single mutex-protected slice, since temps here are keyed
// by size (the generator itself only asks for 4-byte slots, the size of
// an integer, pointer, or real).
type TempManager struct {
	free map[int][]int // size -> free temp indices
	next map[int]int   // size -> next never-used index
}

// NewTempManager returns an empty manager.
func NewTempManager() *TempManager {
	return &TempManager{free: make(map[int][]int), next: make(map[int]int)}
}

// Acquire returns the NASM label for a free temp of the given byte size,
// reusing a previously-released slot before minting a new one.
func (tm *TempManager) Acquire(size int) string {
	if free := tm.free[size]; len(free) > 0 {
		idx := free[len(free)-1]
		tm.free[size] = free[:len(free)-1]
		return tempName(size, idx)
	}
	idx := tm.next[size]
	tm.next[size] = idx + 1
	return tempName(size, idx)
}

// Release returns a temp (by its full name) to its size's free list.
func (tm *TempManager) Release(size int, name string) {
	var idx int
	if _, err := fmt.Sscanf(name, tempFormat(size), &idx); err != nil {
		return
	}
	tm.free[size] = append(tm.free[size], idx)
}

// AllNames returns every temp name ever minted, for BSS declaration at
// the end of code generation: grouped by size (sizes in no fixed order),
// each size's names in index order.
func (tm *TempManager) AllNames() []string {
	var names []string
	for size, count := range tm.next {
		for i := 0; i < count; i++ {
			names = append(names, tempName(size, i))
		}
	}
	return names
}

// Sizes reports every distinct size a temp has been minted for, paired
// with how many bytes of BSS that size class needs in total.
func (tm *TempManager) Sizes() map[int]int {
	out := make(map[int]int)
	for size, count := range tm.next {
		out[size] = count * size
	}
	return out
}

func tempName(size, idx int) string {
	return fmt.Sprintf("TMP_%d_%d", size, idx)
}

func tempFormat(size int) string {
	return fmt.Sprintf("TMP_%d_%%d", size)
}
