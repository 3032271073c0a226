package kernel

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// programExit unwinds a program after sys_exit. It never escapes
// invoke.
type programExit struct {
	code int64
}

// Fault records an unexpected panic inside a running program. The
// kernel survives task faults; the faulting process is retired with
// a kernel-error exit code and the details are kept for diagnostics.
type Fault struct {
	PID    ProcessID
	Reason string
	Stack  string
}

// invoke runs prog under the fault barrier. A programExit panic
// carries the explicit exit code; any other panic is a task fault
// that yields the kernel-error code. The caller decides whether the
// returned code still needs recording.
func (k *Kernel) invoke(prog Program, env *Env) (code int64) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(programExit); ok {
			code = e.code
			return
		}
		k.recordFault(env.pid, r)
		code = int64(ErrnoError)
	}()
	return prog(env)
}

func (k *Kernel) recordFault(pid ProcessID, reason any) {
	f := Fault{
		PID:    pid,
		Reason: fmt.Sprint(reason),
		Stack:  string(debug.Stack()),
	}
	k.lastFault.Store(f)
	k.log.WithFields(logrus.Fields{
		"pid":    pid,
		"reason": f.Reason,
	}).Error("task fault")
}

// LastFault returns the most recent task fault, if any happened.
func (k *Kernel) LastFault() (Fault, bool) {
	f, ok := k.lastFault.Load().(Fault)
	return f, ok
}
