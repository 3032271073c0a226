package arch

import (
	"sync"
	"sync/atomic"
)

// CPU is the register file of the single simulated core plus its halt
// latch. Capture and Install are the only operations the kernel uses
// to move execution state in and out of it; everything above them
// works on Context values.
type CPU struct {
	mu   sync.Mutex
	regs Context

	halted atomic.Bool
	wake   chan struct{}
}

// NewCPU returns a core with a zero register file, not halted.
func NewCPU() *CPU {
	return &CPU{wake: make(chan struct{}, 1)}
}

// Capture snapshots the live register state. On hardware the save path
// reads the pushed return address into RIP and advances the captured
// RSP one word past it; the simulated register file already holds that
// post-return view, so the two steps collapse into a copy. Install
// followed by Capture therefore yields the installed context back
// unchanged.
func (c *CPU) Capture() Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs
}

// Install loads a snapshot as the live register state in the restore
// order of the switch protocol: stack pointer first, then the general
// purpose registers, then the flags word, and control moves to the
// saved RIP. Install itself returns to the dispatcher; the "restore
// never returns" contract holds for the interrupted task, which stays
// suspended until its own context is installed again.
func (c *CPU) Install(ctx Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halted.Store(false)
	c.regs.RSP = ctx.RSP
	c.regs.RAX = ctx.RAX
	c.regs.RBX = ctx.RBX
	c.regs.RCX = ctx.RCX
	c.regs.RDX = ctx.RDX
	c.regs.RSI = ctx.RSI
	c.regs.RDI = ctx.RDI
	c.regs.RBP = ctx.RBP
	c.regs.R8 = ctx.R8
	c.regs.R9 = ctx.R9
	c.regs.R10 = ctx.R10
	c.regs.R11 = ctx.R11
	c.regs.R12 = ctx.R12
	c.regs.R13 = ctx.R13
	c.regs.R14 = ctx.R14
	c.regs.R15 = ctx.R15
	c.regs.RFLAGS = ctx.RFLAGS
	c.regs.RIP = ctx.RIP
}

// Halt latches the core at a hlt instruction. The latch clears on the
// next Interrupt or Install; it never blocks the caller, since the
// tick handler runs in interrupt context.
func (c *CPU) Halt() {
	c.halted.Store(true)
}

// Halted reports whether the core sits at a hlt.
func (c *CPU) Halted() bool {
	return c.halted.Load()
}

// Interrupt wakes the core. Interrupts delivered while one is already
// pending are absorbed.
func (c *CPU) Interrupt() {
	c.halted.Store(false)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// AwaitInterrupt blocks until the next Interrupt. Idle loops park on
// it instead of spinning.
func (c *CPU) AwaitInterrupt() {
	<-c.wake
}
