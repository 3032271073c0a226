package kernel

import (
	"context"
	"errors"
	"fmt"

	"orbital/arch"
)

var (
	ErrNoProgram      = errors.New("kernel: no program registered for that name")
	ErrNotPreemptive  = errors.New("kernel: Run requires preemptive mode")
	ErrNotCooperative = errors.New("kernel: RunReady requires cooperative mode")
)

// task is the host vehicle of one process: a goroutine that runs the
// program and trades the run token with the engine. Exactly one of
// {engine, some task} holds the token at any instant, which is what
// keeps the single-running-process invariant true.
type task struct {
	pid    ProcessID
	resume chan struct{}
	yield  chan struct{}
}

// Run drives the preemptive engine until ctx is cancelled. Each
// scheduling decision performs the context-switch protocol and then
// grants the run token to the chosen process; the token comes back
// at the next armed preemption point or when the process retires.
// With nothing ready the CPU halts until a kick.
func (k *Kernel) Run(ctx context.Context) error {
	if k.mode != ModePreemptive {
		return ErrNotPreemptive
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		prev, next := k.sched.Schedule(k.table)
		if next == NoProcess {
			k.contextSwitch(prev, NoProcess)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-k.kick:
			}
			continue
		}
		if st, err := k.table.Status(next); err != nil || st == StatusExited {
			// A retired id slipped into the queue; never resurrect it.
			continue
		}
		if err := k.contextSwitch(prev, next); err != nil {
			continue
		}
		k.grant(next)
	}
}

// grant hands the run token to pid's goroutine and blocks until it
// comes back.
func (k *Kernel) grant(pid ProcessID) {
	tk := k.ensureTask(pid)
	if tk == nil {
		return
	}
	tk.resume <- struct{}{}
	<-tk.yield
}

func (k *Kernel) ensureTask(pid ProcessID) *task {
	k.taskMu.Lock()
	defer k.taskMu.Unlock()
	if tk, ok := k.tasks[pid]; ok {
		return tk
	}
	prog, env, err := k.prepare(pid)
	if err != nil {
		k.log.WithField("pid", pid).WithError(err).Error("cannot start process")
		k.table.Exit(pid, int64(ErrnoError))
		return nil
	}
	tk := &task{
		pid:    pid,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	k.tasks[pid] = tk
	go k.taskMain(tk, prog, env)
	return tk
}

func (k *Kernel) taskMain(tk *task, prog Program, env *Env) {
	<-tk.resume
	code := k.invoke(prog, env)
	if st, err := k.table.Status(tk.pid); err == nil && st != StatusExited {
		k.table.Exit(tk.pid, code)
	}
	k.taskMu.Lock()
	delete(k.tasks, tk.pid)
	k.taskMu.Unlock()
	tk.yield <- struct{}{}
}

// preemptPoint is a kernel-entry scheduling opportunity. When a
// deferred switch is armed and the caller is the process holding the
// processor, its goroutine parks here and the token goes back to the
// engine; everyone else passes straight through.
func (k *Kernel) preemptPoint(caller ProcessID) {
	if !k.needResched.Load() {
		return
	}
	cur, ok := k.sched.Current()
	if !ok || cur != caller {
		return
	}
	k.taskMu.Lock()
	tk := k.tasks[caller]
	k.taskMu.Unlock()
	if tk == nil {
		// Inline execution under the cooperative runner; there is no
		// token to trade.
		return
	}
	if !k.needResched.Swap(false) {
		return
	}
	tk.yield <- struct{}{}
	<-tk.resume
}

// RunReady is the cooperative counterpart of Run: it drains the
// ready queue on the calling goroutine, running each process to
// completion in scheduling order, and reports how many ran. Mixing
// it with a live preemptive engine is not supported; the two models
// are mutually exclusive by design.
func (k *Kernel) RunReady() (int, error) {
	if k.mode != ModeCooperative {
		return 0, ErrNotCooperative
	}
	ran := 0
	for {
		prev, next := k.sched.Schedule(k.table)
		if next == NoProcess {
			k.contextSwitch(prev, NoProcess)
			return ran, nil
		}
		if st, err := k.table.Status(next); err != nil || st == StatusExited {
			continue
		}
		if err := k.contextSwitch(prev, next); err != nil {
			continue
		}
		if k.runInline(next) {
			ran++
		}
	}
}

// runInline executes pid's program on the calling goroutine and
// retires it, reporting whether the program actually ran.
func (k *Kernel) runInline(pid ProcessID) bool {
	prog, env, err := k.prepare(pid)
	if err != nil {
		k.log.WithField("pid", pid).WithError(err).Error("cannot start process")
		k.table.Exit(pid, int64(ErrnoError))
		return false
	}
	code := k.invoke(prog, env)
	if st, err := k.table.Status(pid); err == nil && st != StatusExited {
		k.table.Exit(pid, code)
	}
	return true
}

// lendReady is how a cooperative busy-wait makes progress: the waiter
// donates its goroutine to run one queued ready process to
// completion, then takes the processor back. Reports false when no
// queued process could run, in which case waiting longer cannot
// change anything.
func (k *Kernel) lendReady(waiter ProcessID) bool {
	for {
		pid, ok := k.sched.Dequeue()
		if !ok {
			return false
		}
		if pid == waiter {
			// The waiter cannot nest inside itself; it is re-enqueued
			// by the engine when it finishes.
			continue
		}
		if st, err := k.table.Status(pid); err != nil || st != StatusReady {
			continue
		}
		if err := k.contextSwitch(waiter, pid); err != nil {
			continue
		}
		k.runInline(pid)
		if waiter != NoProcess {
			// Hand the processor back so the waiter is Running again.
			if err := k.contextSwitch(NoProcess, waiter); err != nil {
				k.log.WithField("pid", waiter).WithError(err).Error("cannot resume waiter")
			}
		}
		return true
	}
}

// prepare resolves which program a process executes and builds its
// environment. A process whose saved instruction pointer lies inside
// the stack arena is binary backed: the image in its window names
// the registered program that stands in for its machine code. Any
// other instruction pointer must be a registered entry address.
func (k *Kernel) prepare(pid ProcessID) (Program, *Env, error) {
	ctx, err := k.table.Context(pid)
	if err != nil {
		return nil, nil, err
	}
	window, base, err := k.table.Window(pid)
	if err != nil {
		return nil, nil, err
	}

	var prog Program
	if ctx.RIP >= arch.StackArenaBase && ctx.RIP < arch.StackArenaEnd {
		name := cstring(window[ImageNameOffset:])
		p, _, ok := k.programs.ByName(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: image names %q", ErrNoProgram, name)
		}
		prog = p
	} else {
		p, _, ok := k.programs.ByAddr(ctx.RIP)
		if !ok {
			return nil, nil, fmt.Errorf("%w: entry %#x", ErrNoProgram, ctx.RIP)
		}
		prog = p
	}
	return prog, newEnv(k, pid, window, base), nil
}
