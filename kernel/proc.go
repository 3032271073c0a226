package kernel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"orbital/arch"
)

// MaxProcesses caps the process table at one entry per stack arena
// slot. Exited entries keep their slot, so the cap is a lifetime
// limit per kernel, not a live-task limit.
const MaxProcesses = arch.StackArenaSlots

// ProcessID names a process for the lifetime of a kernel. IDs come
// from an atomic counter starting at 1 and are never reused, not
// even after the process exits.
type ProcessID uint64

// NoProcess is the zero ProcessID; it never names a real process.
const NoProcess ProcessID = 0

// Status is the lifecycle state of a process.
type Status uint8

const (
	StatusReady Status = iota
	StatusRunning
	StatusBlocked
	StatusExited
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusBlocked:
		return "Blocked"
	case StatusExited:
		return "Exited"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

var (
	ErrTableFull    = errors.New("kernel: process table full")
	ErrInvalidEntry = errors.New("kernel: entry point must not be zero")
	ErrNoProcess    = errors.New("kernel: no such process")
	ErrStillRunning = errors.New("kernel: process has not exited")
)

// Process is one schedulable unit: a saved register context, a fixed
// 4KiB stack window in the arena, and lifecycle bookkeeping. All
// fields are guarded by the owning table's lock.
type Process struct {
	ID        ProcessID
	Name      string
	Entry     uint64
	Slot      int
	StackBase uint64
	Context   arch.Context
	Status    Status
	ExitCode  int64
}

// ProcessInfo is the stable snapshot List hands out.
type ProcessInfo struct {
	ID       ProcessID
	Name     string
	Status   Status
	ExitCode int64
}

// Table owns every process record and the stack arena backing their
// stacks. Slot i of the arena is the window at virtual address
// arch.StackArenaBase + i*arch.StackSize; translation between the
// two views happens here and nowhere else.
type Table struct {
	mu     sync.Mutex
	arena  []byte
	procs  []*Process
	index  map[ProcessID]*Process
	nextID atomic.Uint64
}

// NewTable allocates an empty table together with its stack arena.
func NewTable() *Table {
	return &Table{
		arena: make([]byte, MaxProcesses*arch.StackSize),
		index: make(map[ProcessID]*Process),
	}
}

// Create registers a new process whose context starts at entry with
// a fresh stack, marks it Ready, and returns its id. A zero entry
// point is rejected; so is the 257th process.
func (t *Table) Create(entry uint64) (ProcessID, error) {
	return t.CreateNamed(entry, "")
}

// CreateNamed is Create with a human-readable name for diagnostics.
func (t *Table) CreateNamed(entry uint64, name string) (ProcessID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, err := t.createLocked(entry, name)
	if err != nil {
		return NoProcess, err
	}
	return p.ID, nil
}

// CreateImage registers a process whose stack window is seeded with
// image, flat-copied to the window base. The recorded entry point is
// the window base plus entryOffset, the entry address the image
// header names; the saved instruction pointer is the window base
// itself, because execution starts at the first loaded byte.
// LoadBinary validates the image size before calling here.
func (t *Table) CreateImage(name string, image []byte, entryOffset uint64) (ProcessID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.procs) >= MaxProcesses {
		return NoProcess, ErrTableFull
	}
	base := arch.StackArenaBase + uint64(len(t.procs))*arch.StackSize
	p, err := t.createLocked(base+entryOffset, name)
	if err != nil {
		return NoProcess, err
	}
	copy(t.windowLocked(p.Slot), image)
	p.Context.RIP = p.StackBase
	return p.ID, nil
}

func (t *Table) createLocked(entry uint64, name string) (*Process, error) {
	if entry == 0 {
		return nil, ErrInvalidEntry
	}
	if len(t.procs) >= MaxProcesses {
		return nil, ErrTableFull
	}
	slot := len(t.procs)
	base := arch.StackArenaBase + uint64(slot)*arch.StackSize
	id := ProcessID(t.nextID.Add(1))
	if name == "" {
		name = fmt.Sprintf("task-%d", id)
	}
	p := &Process{
		ID:        id,
		Name:      name,
		Entry:     entry,
		Slot:      slot,
		StackBase: base,
		Context:   arch.NewContext(entry, base+arch.StackSize),
		Status:    StatusReady,
	}
	t.procs = append(t.procs, p)
	t.index[id] = p
	return p, nil
}

// Status reports the lifecycle state of pid.
func (t *Table) Status(pid ProcessID) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return 0, ErrNoProcess
	}
	return p.Status, nil
}

// SetStatus moves pid to st without touching the exit code. Use Exit
// to retire a process with a result.
func (t *Table) SetStatus(pid ProcessID, st Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return ErrNoProcess
	}
	p.Status = st
	return nil
}

// Exit marks pid Exited and records its exit code.
func (t *Table) Exit(pid ProcessID, code int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return ErrNoProcess
	}
	p.Status = StatusExited
	p.ExitCode = code
	return nil
}

// ExitCode returns the exit code of a process that has exited.
func (t *Table) ExitCode(pid ProcessID) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return 0, ErrNoProcess
	}
	if p.Status != StatusExited {
		return 0, ErrStillRunning
	}
	return p.ExitCode, nil
}

// Context returns a copy of the saved register context of pid.
func (t *Table) Context(pid ProcessID) (arch.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return arch.Context{}, ErrNoProcess
	}
	return p.Context, nil
}

// SetContext replaces the saved register context of pid.
func (t *Table) SetContext(pid ProcessID, ctx arch.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return ErrNoProcess
	}
	p.Context = ctx
	return nil
}

// Wait busy-polls until pid exits and returns its exit code. The
// loop yields the processor between probes but never blocks, so a
// caller waiting on itself would spin forever; an unknown id fails
// immediately.
func (t *Table) Wait(pid ProcessID) (int64, error) {
	for {
		t.mu.Lock()
		p, ok := t.index[pid]
		if !ok {
			t.mu.Unlock()
			return 0, ErrNoProcess
		}
		if p.Status == StatusExited {
			code := p.ExitCode
			t.mu.Unlock()
			return code, nil
		}
		t.mu.Unlock()
		runtime.Gosched()
	}
}

// List snapshots every process in creation order, exited ones
// included.
func (t *Table) List() []ProcessInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ProcessInfo, 0, len(t.procs))
	for _, p := range t.procs {
		out = append(out, ProcessInfo{ID: p.ID, Name: p.Name, Status: p.Status, ExitCode: p.ExitCode})
	}
	return out
}

// Count reports how many processes have ever been created in this
// table.
func (t *Table) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}

// Window returns the backing bytes and base virtual address of the
// stack window owned by pid.
func (t *Table) Window(pid ProcessID) ([]byte, uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.index[pid]
	if !ok {
		return nil, 0, ErrNoProcess
	}
	return t.windowLocked(p.Slot), p.StackBase, nil
}

func (t *Table) windowLocked(slot int) []byte {
	off := slot * arch.StackSize
	return t.arena[off : off+arch.StackSize]
}

// Mem resolves the virtual range [addr, addr+n) to the backing bytes
// of the stack window containing it. Resolution fails when the range
// is empty, lies outside the arena, crosses a window boundary, or
// names a slot no process owns yet.
func (t *Table) Mem(addr uint64, n int) ([]byte, bool) {
	if n <= 0 {
		return nil, false
	}
	if addr < arch.StackArenaBase || addr >= arch.StackArenaEnd {
		return nil, false
	}
	off := addr - arch.StackArenaBase
	slot := int(off / arch.StackSize)
	within := off % arch.StackSize
	if within+uint64(n) > arch.StackSize {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if slot >= len(t.procs) {
		return nil, false
	}
	win := t.windowLocked(slot)
	return win[within : within+uint64(n)], true
}
