// Package arch models the x86_64 execution state the kernel manages:
// the register snapshot a task is suspended into, the register file of
// the single simulated core, and the memory map both sides share. The
// rest of the kernel operates purely on Context values; only the
// dispatcher touches the CPU, through Capture and Install.
package arch

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Memory map of the simulated machine. Process stacks live in a fixed
// arena of 4 KiB windows; registered program entry points get addresses
// in a separate low window so they can never collide with stack
// addresses.
const (
	// StackSize is the fixed per-process stack size in bytes.
	StackSize = 4096

	// StackArenaBase is the virtual address of stack slot 0.
	StackArenaBase uint64 = 0x0000_4444_4444_0000

	// StackArenaSlots is the number of stack windows in the arena and
	// therefore the hard cap on live processes.
	StackArenaSlots = 256

	// StackArenaEnd is the first address past the arena.
	StackArenaEnd = StackArenaBase + StackArenaSlots*StackSize

	// ProgramBase is the entry address handed to the first registered
	// program.
	ProgramBase uint64 = 0x0000_0000_0040_0000

	// ProgramStride separates consecutive registered entry points.
	ProgramStride uint64 = 0x100
)

// RFLAGS bits the kernel cares about.
const (
	// FlagReserved is bit 1, fixed to one on x86.
	FlagReserved uint64 = 0x2

	// FlagIF is the interrupt-enable flag, bit 9.
	FlagIF uint64 = 0x200
)

// Byte offsets of the encoded Context fields. The layout is a stable
// ABI: the restore path loads fields by raw offset, so the save and
// restore sides must agree on it for the lifetime of the system.
const (
	OffRAX    = 0x00
	OffRBX    = 0x08
	OffRCX    = 0x10
	OffRDX    = 0x18
	OffRSI    = 0x20
	OffRDI    = 0x28
	OffRBP    = 0x30
	OffRSP    = 0x38
	OffR8     = 0x40
	OffR9     = 0x48
	OffR10    = 0x50
	OffR11    = 0x58
	OffR12    = 0x60
	OffR13    = 0x68
	OffR14    = 0x70
	OffR15    = 0x78
	OffRIP    = 0x80
	OffRFLAGS = 0x88

	// ContextSize is the size of an encoded Context in bytes.
	ContextSize = 0x90
)

// ErrShortBuffer reports a Context codec buffer smaller than
// ContextSize.
var ErrShortBuffer = errors.New("arch: context buffer too small")

// Context is a full task register snapshot: fourteen general-purpose
// registers, base and stack pointer, instruction pointer and flags.
// The declaration order matches the canonical byte layout above.
type Context struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	RSP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
	RIP uint64

	// RFLAGS carries at least FlagReserved; FlagIF is set for any
	// context the scheduler is expected to resume.
	RFLAGS uint64
}

// NewContext seeds register state for a fresh task: execution starts
// at entry with a nearly empty frame at the top of the stack, growing
// downward, interrupts enabled.
func NewContext(entry, stackTop uint64) Context {
	return Context{
		RIP:    entry,
		RSP:    stackTop - 16,
		RBP:    stackTop - 8,
		RFLAGS: FlagReserved | FlagIF,
	}
}

// InterruptsEnabled reports whether the snapshot was taken with the
// interrupt flag set.
func (c *Context) InterruptsEnabled() bool {
	return c.RFLAGS&FlagIF != 0
}

// Encode writes the canonical little-endian image of c into dst,
// which must hold at least ContextSize bytes.
func (c *Context) Encode(dst []byte) error {
	if len(dst) < ContextSize {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint64(dst[OffRAX:], c.RAX)
	binary.LittleEndian.PutUint64(dst[OffRBX:], c.RBX)
	binary.LittleEndian.PutUint64(dst[OffRCX:], c.RCX)
	binary.LittleEndian.PutUint64(dst[OffRDX:], c.RDX)
	binary.LittleEndian.PutUint64(dst[OffRSI:], c.RSI)
	binary.LittleEndian.PutUint64(dst[OffRDI:], c.RDI)
	binary.LittleEndian.PutUint64(dst[OffRBP:], c.RBP)
	binary.LittleEndian.PutUint64(dst[OffRSP:], c.RSP)
	binary.LittleEndian.PutUint64(dst[OffR8:], c.R8)
	binary.LittleEndian.PutUint64(dst[OffR9:], c.R9)
	binary.LittleEndian.PutUint64(dst[OffR10:], c.R10)
	binary.LittleEndian.PutUint64(dst[OffR11:], c.R11)
	binary.LittleEndian.PutUint64(dst[OffR12:], c.R12)
	binary.LittleEndian.PutUint64(dst[OffR13:], c.R13)
	binary.LittleEndian.PutUint64(dst[OffR14:], c.R14)
	binary.LittleEndian.PutUint64(dst[OffR15:], c.R15)
	binary.LittleEndian.PutUint64(dst[OffRIP:], c.RIP)
	binary.LittleEndian.PutUint64(dst[OffRFLAGS:], c.RFLAGS)
	return nil
}

// Decode fills c from the canonical byte image in src.
func (c *Context) Decode(src []byte) error {
	if len(src) < ContextSize {
		return ErrShortBuffer
	}
	c.RAX = binary.LittleEndian.Uint64(src[OffRAX:])
	c.RBX = binary.LittleEndian.Uint64(src[OffRBX:])
	c.RCX = binary.LittleEndian.Uint64(src[OffRCX:])
	c.RDX = binary.LittleEndian.Uint64(src[OffRDX:])
	c.RSI = binary.LittleEndian.Uint64(src[OffRSI:])
	c.RDI = binary.LittleEndian.Uint64(src[OffRDI:])
	c.RBP = binary.LittleEndian.Uint64(src[OffRBP:])
	c.RSP = binary.LittleEndian.Uint64(src[OffRSP:])
	c.R8 = binary.LittleEndian.Uint64(src[OffR8:])
	c.R9 = binary.LittleEndian.Uint64(src[OffR9:])
	c.R10 = binary.LittleEndian.Uint64(src[OffR10:])
	c.R11 = binary.LittleEndian.Uint64(src[OffR11:])
	c.R12 = binary.LittleEndian.Uint64(src[OffR12:])
	c.R13 = binary.LittleEndian.Uint64(src[OffR13:])
	c.R14 = binary.LittleEndian.Uint64(src[OffR14:])
	c.R15 = binary.LittleEndian.Uint64(src[OffR15:])
	c.RIP = binary.LittleEndian.Uint64(src[OffRIP:])
	c.RFLAGS = binary.LittleEndian.Uint64(src[OffRFLAGS:])
	return nil
}

// String shows the fields that matter when a context is rejected.
func (c Context) String() string {
	return fmt.Sprintf("rip=%#x rsp=%#x rbp=%#x rflags=%#x", c.RIP, c.RSP, c.RBP, c.RFLAGS)
}
