package arch

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"
)

func TestContextOffsets(t *testing.T) {
	var c Context
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"RAX", unsafe.Offsetof(c.RAX), OffRAX},
		{"RBX", unsafe.Offsetof(c.RBX), OffRBX},
		{"RCX", unsafe.Offsetof(c.RCX), OffRCX},
		{"RDX", unsafe.Offsetof(c.RDX), OffRDX},
		{"RSI", unsafe.Offsetof(c.RSI), OffRSI},
		{"RDI", unsafe.Offsetof(c.RDI), OffRDI},
		{"RBP", unsafe.Offsetof(c.RBP), OffRBP},
		{"RSP", unsafe.Offsetof(c.RSP), OffRSP},
		{"R8", unsafe.Offsetof(c.R8), OffR8},
		{"R9", unsafe.Offsetof(c.R9), OffR9},
		{"R10", unsafe.Offsetof(c.R10), OffR10},
		{"R11", unsafe.Offsetof(c.R11), OffR11},
		{"R12", unsafe.Offsetof(c.R12), OffR12},
		{"R13", unsafe.Offsetof(c.R13), OffR13},
		{"R14", unsafe.Offsetof(c.R14), OffR14},
		{"R15", unsafe.Offsetof(c.R15), OffR15},
		{"RIP", unsafe.Offsetof(c.RIP), OffRIP},
		{"RFLAGS", unsafe.Offsetof(c.RFLAGS), OffRFLAGS},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("offset of %s = %#x, want %#x", o.name, o.got, o.want)
		}
	}
	if got := unsafe.Sizeof(c); got != ContextSize {
		t.Errorf("sizeof Context = %d, want %d", got, ContextSize)
	}
}

func TestContextCodecRoundTrip(t *testing.T) {
	in := Context{
		RAX: 1, RBX: 2, RCX: 3, RDX: 4,
		RSI: 5, RDI: 6,
		RBP: 0x7000, RSP: 0x6ff0,
		R8: 8, R9: 9, R10: 10, R11: 11,
		R12: 12, R13: 13, R14: 14, R15: 15,
		RIP:    0x401000,
		RFLAGS: FlagReserved | FlagIF,
	}

	buf := make([]byte, ContextSize)
	if err := in.Encode(buf); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var out Context
	if err := out.Decode(buf); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}

	// The encoded image must place RIP at its documented offset.
	var rip [8]byte
	rip[0] = 0x00
	rip[1] = 0x10
	rip[2] = 0x40
	if !bytes.Equal(buf[OffRIP:OffRIP+8], rip[:]) {
		t.Errorf("encoded RIP bytes = %x, want %x", buf[OffRIP:OffRIP+8], rip[:])
	}
}

func TestContextCodecShortBuffer(t *testing.T) {
	var c Context
	short := make([]byte, ContextSize-1)
	if err := c.Encode(short); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("Encode(short) error = %v, want %v", err, ErrShortBuffer)
	}
	if err := c.Decode(short); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("Decode(short) error = %v, want %v", err, ErrShortBuffer)
	}
}

func TestNewContext(t *testing.T) {
	top := StackArenaBase + StackSize
	ctx := NewContext(0x401000, top)

	if ctx.RIP != 0x401000 {
		t.Errorf("RIP = %#x, want %#x", ctx.RIP, 0x401000)
	}
	if ctx.RSP != top-16 {
		t.Errorf("RSP = %#x, want %#x", ctx.RSP, top-16)
	}
	if ctx.RBP != top-8 {
		t.Errorf("RBP = %#x, want %#x", ctx.RBP, top-8)
	}
	if !ctx.InterruptsEnabled() {
		t.Errorf("InterruptsEnabled() = false, want true")
	}
	if err := Validate(&ctx); err != nil {
		t.Errorf("Validate(fresh context) = %v, want nil", err)
	}
}

func TestValidate(t *testing.T) {
	// Slot 4 leaves room below the frame for the oversized case to
	// stay inside the arena.
	valid := NewContext(0x401000, StackArenaBase+4*StackSize)

	cases := []struct {
		name   string
		mutate func(*Context)
		want   error
	}{
		{"null stack pointer", func(c *Context) { c.RSP = 0 }, ErrNullStackPointer},
		{"null instruction pointer", func(c *Context) { c.RIP = 0 }, ErrNullInstructionPointer},
		{"stack below arena", func(c *Context) { c.RSP = StackArenaBase - 8; c.RBP = StackArenaBase }, ErrStackOutOfRange},
		{"stack above arena", func(c *Context) { c.RSP = StackArenaEnd + 8; c.RBP = StackArenaEnd + 16 }, ErrStackOutOfRange},
		{"inverted stack", func(c *Context) { c.RBP = c.RSP - 8 }, ErrStackInverted},
		{"oversized frame", func(c *Context) { c.RSP = c.RBP - StackSize - 512 }, ErrFrameTooLarge},
	}
	for _, tc := range cases {
		ctx := valid
		tc.mutate(&ctx)
		if err := Validate(&ctx); !errors.Is(err, tc.want) {
			t.Errorf("%s: Validate() = %v, want %v", tc.name, err, tc.want)
		}
	}

	if err := Validate(&valid); err != nil {
		t.Errorf("Validate(valid) = %v, want nil", err)
	}

	// A cleared interrupt flag is reported by the accessor, not as a
	// validation failure.
	noIF := valid
	noIF.RFLAGS = FlagReserved
	if err := Validate(&noIF); err != nil {
		t.Errorf("Validate(IF clear) = %v, want nil", err)
	}
	if noIF.InterruptsEnabled() {
		t.Errorf("InterruptsEnabled() = true, want false")
	}
}
