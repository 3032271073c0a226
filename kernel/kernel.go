package kernel

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"orbital/arch"
)

// Config carries the tunables of one kernel instance.
type Config struct {
	// Quantum is the time slice in timer ticks. Zero selects
	// DefaultQuantum.
	Quantum uint32
	// RingSlots is the console ring capacity, a power of two. Zero
	// selects DefaultRingSlots.
	RingSlots int
	// Mode selects preemptive or cooperative scheduling. The two are
	// mutually exclusive for the kernel's lifetime.
	Mode SchedulingMode
	// Echo optionally mirrors console output, typically to a serial
	// port.
	Echo io.Writer
	// Log receives kernel diagnostics. Nil selects the standard
	// logger.
	Log logrus.FieldLogger
}

// Kernel owns the whole execution core: the CPU model, the process
// table with its stack arena, the scheduler, the console ring, the
// keyboard queue, and the program registry. Nothing here is a
// package global; two kernels share no state, so every test can
// build its own.
type Kernel struct {
	log      logrus.FieldLogger
	mode     SchedulingMode
	cpu      *arch.CPU
	table    *Table
	sched    *Scheduler
	console  *Ring
	tty      *TTY
	input    *InputQueue
	programs *Registry

	needResched atomic.Bool
	kick        chan struct{}
	inputReady  chan struct{}

	taskMu sync.Mutex
	tasks  map[ProcessID]*task

	lastFault atomic.Value // Fault
}

// New assembles an idle kernel from cfg.
func New(cfg Config) (*Kernel, error) {
	ring, err := NewRing(cfg.RingSlots)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	k := &Kernel{
		log:        log,
		mode:       cfg.Mode,
		cpu:        arch.NewCPU(),
		table:      NewTable(),
		sched:      NewScheduler(cfg.Quantum),
		console:    ring,
		input:      &InputQueue{},
		programs:   NewRegistry(),
		kick:       make(chan struct{}, 1),
		inputReady: make(chan struct{}, 1),
		tasks:      make(map[ProcessID]*task),
	}
	k.tty = NewTTY(ring, cfg.Echo)
	return k, nil
}

// Mode reports the scheduling mode the kernel was built with.
func (k *Kernel) Mode() SchedulingMode {
	return k.mode
}

// Table exposes the process table.
func (k *Kernel) Table() *Table {
	return k.table
}

// Scheduler exposes the scheduler.
func (k *Kernel) Scheduler() *Scheduler {
	return k.sched
}

// Console is the ring the terminal service drains.
func (k *Kernel) Console() *Ring {
	return k.console
}

// TTY is the console sink tasks write through.
func (k *Kernel) TTY() *TTY {
	return k.tty
}

// Programs exposes the program registry.
func (k *Kernel) Programs() *Registry {
	return k.programs
}

// CPU exposes the register-file model, mostly for tests.
func (k *Kernel) CPU() *arch.CPU {
	return k.cpu
}

// OnTick advances the clock by one timer tick. In preemptive mode an
// expired quantum arms a deferred switch, performed at the next
// kernel entry; the tick itself never switches anything.
func (k *Kernel) OnTick() {
	expired := k.sched.Tick()
	if expired && k.mode == ModePreemptive {
		k.needResched.Store(true)
		k.Kick()
	}
}

// Kick wakes the engine if it is idling in a halt.
func (k *Kernel) Kick() {
	k.cpu.Interrupt()
	select {
	case k.kick <- struct{}{}:
	default:
	}
}

// PushInput feeds one keyboard byte into the input queue. Bytes
// arriving while the queue is full are dropped.
func (k *Kernel) PushInput(b byte) {
	if !k.input.Push(b) {
		k.log.Warn("input queue full, dropping byte")
		return
	}
	select {
	case k.inputReady <- struct{}{}:
	default:
	}
}

// InputReadable signals whenever new keyboard bytes may be buffered.
// Signals coalesce; a woken consumer drains until ReadInput returns
// zero.
func (k *Kernel) InputReadable() <-chan struct{} {
	return k.inputReady
}

// InputPending reports how many keyboard bytes are buffered.
func (k *Kernel) InputPending() int {
	return k.input.Pending()
}

// ReadInput drains up to len(dst) buffered keyboard bytes without
// blocking. Running programs use sys_read instead; this is for
// kernel-side consumers like the shell.
func (k *Kernel) ReadInput(dst []byte) int {
	return k.input.Drain(dst)
}

// UptimeSeconds reports whole seconds since the kernel started
// ticking.
func (k *Kernel) UptimeSeconds() uint64 {
	return k.sched.ElapsedSeconds()
}

// SpawnFunc registers prog under name if it is new and creates a
// Ready process running it.
func (k *Kernel) SpawnFunc(name string, prog Program) (ProcessID, error) {
	entry := k.programs.Register(name, prog)
	pid, err := k.table.CreateNamed(entry, name)
	if err != nil {
		return NoProcess, err
	}
	k.sched.Enqueue(pid)
	k.Kick()
	return pid, nil
}

// SpawnName creates a process running an already registered program.
func (k *Kernel) SpawnName(name string) (ProcessID, error) {
	_, entry, ok := k.programs.ByName(name)
	if !ok {
		return NoProcess, ErrNoProgram
	}
	pid, err := k.table.CreateNamed(entry, name)
	if err != nil {
		return NoProcess, err
	}
	k.sched.Enqueue(pid)
	k.Kick()
	return pid, nil
}
