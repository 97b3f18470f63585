package interp

import "errors"

// Typed runtime errors: each terminates execution and is returned verbatim
// up the call stack, distinct from the internal-invariant panics the
// middle end raises for malformed IR.
var (
	ErrEndOfInput     = errors.New("end of input")
	ErrFloorIsEmpty   = errors.New("floor cell is empty")
	ErrRegisterEmpty  = errors.New("register is empty")
	ErrValueIsZero    = errors.New("value is zero")
	ErrHaltRequested  = errors.New("halt requested")
)
