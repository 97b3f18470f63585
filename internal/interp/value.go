// Package interp is the HIR interpreter: it executes a (optionally SSA)
// ir.Program against the VM model — accumulator-free, register-file per
// call frame, floor memory, and input/output FIFOs.
package interp

import "fmt"

// BoxKind tags the two shapes an HRBox can hold.
type BoxKind int

const (
	BoxInt BoxKind = iota
	BoxChar
)

// Box is HRBox: a boxed int|char value, the unit of storage for every
// floor cell, register, queue entry, and the return slot.
type Box struct {
	Kind BoxKind
	Int  int
	Char byte
}

func IntBox(v int) Box   { return Box{Kind: BoxInt, Int: v} }
func CharBox(c byte) Box { return Box{Kind: BoxChar, Char: c} }

// AsInt returns the box's value coerced to int (a char widens to its byte
// value), matching the original's permissive int|char arithmetic.
func (b Box) AsInt() int {
	if b.Kind == BoxChar {
		return int(b.Char)
	}
	return b.Int
}

func (b Box) String() string {
	if b.Kind == BoxChar {
		return fmt.Sprintf("%q", b.Char)
	}
	return fmt.Sprintf("%d", b.Int)
}
