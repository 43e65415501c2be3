package common

import "fmt"

// Align8 rounds the given integer up to the nearest multiple of 8.
func Align8(n int) int {
	return (n + 7) &^ 7
}

// AlignedTo8 returns true if the integer is a multiple of 8.
func AlignedTo8(n int) bool {
	return n%8 == 0
}

// CeilDiv returns ceil(a / b) for non-negative a and positive b.
func CeilDiv(a, b int) int {
	Assert(b > 0, "division by non-positive %d", b)
	return (a + b - 1) / b
}

// Assert checks a condition and panics if it is false.
//
// Assertions guard invariants of the engine itself (a cursor reset without a window, a page that is not a heap
// page). Conditions a caller can trigger, such as an unknown column or a bad memory budget, return a GoDBError
// instead.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
