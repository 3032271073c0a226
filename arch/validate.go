package arch

import "errors"

// Validation errors, one per failure mode so diagnostics can name the
// exact corruption.
var (
	ErrNullStackPointer       = errors.New("arch: stack pointer is null")
	ErrNullInstructionPointer = errors.New("arch: instruction pointer is null")
	ErrStackOutOfRange        = errors.New("arch: stack pointer outside the stack arena")
	ErrStackInverted          = errors.New("arch: stack pointer at or above base pointer")
	ErrFrameTooLarge          = errors.New("arch: frame larger than the stack bound")
)

// maxFrame allows a small overflow margin past the nominal stack size.
const maxFrame = StackSize + 256

// Validate is the best-effort guard run before a context is installed,
// catching corrupted snapshots early instead of faulting inside the
// restore path. A cleared interrupt flag is deliberately not a
// failure; callers log it and continue.
func Validate(c *Context) error {
	if c.RSP == 0 {
		return ErrNullStackPointer
	}
	if c.RIP == 0 {
		return ErrNullInstructionPointer
	}
	if c.RSP < StackArenaBase || c.RSP > StackArenaEnd {
		return ErrStackOutOfRange
	}
	if c.RSP >= c.RBP {
		return ErrStackInverted
	}
	if c.RBP-c.RSP > maxFrame {
		return ErrFrameTooLarge
	}
	return nil
}
