package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
)

// Syscall numbers. The table below is dense, so ids map straight to
// slots; renumbering is an ABI break.
const (
	SysHello uint64 = iota
	SysLog
	SysWrite
	SysExit
	SysRead
	SysTaskCreate
	SysTaskWait
	SysGetPID
	SysPS
	SysUptime
	sysCount
)

// Liveness probe constants for SysHello.
const (
	HelloMagic uint64 = 0xCAFEBABE
	HelloReply int64  = 0xDEADBEEF
)

// File descriptors the kernel recognizes.
const (
	Stdin  uint64 = 0
	Stdout uint64 = 1
	Stderr uint64 = 2
)

type syscallArgs [6]uint64

type syscallFn func(k *Kernel, caller ProcessID, a syscallArgs) int64

// syscallTable maps ids to handlers. Unmapped slots report
// ErrnoNotImplemented, same as ids past the end.
var syscallTable = [sysCount]syscallFn{
	SysHello:      sysHello,
	SysLog:        sysLog,
	SysWrite:      sysWrite,
	SysExit:       sysExit,
	SysRead:       sysRead,
	SysTaskCreate: sysTaskCreate,
	SysTaskWait:   sysTaskWait,
	SysGetPID:     sysGetPID,
	SysPS:         sysPS,
	SysUptime:     sysUptime,
}

// Syscall is the only gate through which running programs reach
// kernel state. Arguments are positional with six slots, unused ones
// zero. The return value is a signed word: non-negative carries the
// result, negative carries an Errno. Every call is also a kernel
// entry, so an armed deferred switch is honored on the way out.
func (k *Kernel) Syscall(caller ProcessID, id, a1, a2, a3, a4, a5, a6 uint64) int64 {
	var ret int64
	if id >= sysCount || syscallTable[id] == nil {
		ret = int64(ErrnoNotImplemented)
	} else {
		ret = syscallTable[id](k, caller, syscallArgs{a1, a2, a3, a4, a5, a6})
	}
	k.preemptPoint(caller)
	return ret
}

func sysHello(_ *Kernel, _ ProcessID, a syscallArgs) int64 {
	if a[0] != HelloMagic {
		return int64(ErrnoInvalid)
	}
	return HelloReply
}

// sysLog copies the message out of the caller's buffer and routes it
// to the kernel diagnostic log rather than the console.
func sysLog(k *Kernel, caller ProcessID, a syscallArgs) int64 {
	ptr, n := a[0], a[1]
	if n == 0 || n > MaxWrite {
		return int64(ErrnoInvalid)
	}
	if ptr == 0 {
		return int64(ErrnoFault)
	}
	src, ok := k.table.Mem(ptr, int(n))
	if !ok {
		return int64(ErrnoFault)
	}
	msg := make([]byte, n)
	copy(msg, src)
	k.log.WithField("pid", caller).Info(string(msg))
	return int64(n)
}

func sysWrite(k *Kernel, caller ProcessID, a syscallArgs) int64 {
	fd, ptr, n := a[0], a[1], a[2]
	if fd != Stdout && fd != Stderr {
		return int64(ErrnoBadFd)
	}
	if n == 0 || n > MaxWrite {
		return int64(ErrnoInvalid)
	}
	if ptr == 0 {
		return int64(ErrnoFault)
	}
	src, ok := k.table.Mem(ptr, int(n))
	if !ok {
		return int64(ErrnoFault)
	}
	// Copy before routing; the caller's window may be reused the
	// moment this returns.
	data := make([]byte, n)
	copy(data, src)
	return int64(k.tty.WriteFrom(uint32(caller), data))
}

// sysExit retires the caller. The process is only marked here; it
// keeps running until the next scheduling decision drops it, because
// exit runs in task context and must not switch the hardware state
// out from under itself.
func sysExit(k *Kernel, caller ProcessID, a syscallArgs) int64 {
	code := int64(a[0])
	if err := k.table.Exit(caller, code); err != nil {
		return int64(ErrnoNotFound)
	}
	if k.mode == ModePreemptive {
		k.needResched.Store(true)
		k.Kick()
	}
	return 0
}

func sysRead(k *Kernel, caller ProcessID, a syscallArgs) int64 {
	fd, ptr, n := a[0], a[1], a[2]
	if fd != Stdin {
		return int64(ErrnoBadFd)
	}
	if n == 0 {
		return 0
	}
	if n > MaxWrite {
		return int64(ErrnoInvalid)
	}
	if ptr == 0 {
		return int64(ErrnoFault)
	}
	dst, ok := k.table.Mem(ptr, int(n))
	if !ok {
		return int64(ErrnoFault)
	}
	// Non-blocking: hand over whatever is buffered right now, which
	// may be nothing.
	return int64(k.input.Drain(dst))
}

func sysTaskCreate(k *Kernel, _ ProcessID, a syscallArgs) int64 {
	entry := a[0]
	if entry == 0 {
		return int64(ErrnoInvalid)
	}
	pid, err := k.table.Create(entry)
	if err != nil {
		if errors.Is(err, ErrInvalidEntry) {
			return int64(ErrnoInvalid)
		}
		return int64(ErrnoError)
	}
	k.sched.Enqueue(pid)
	k.Kick()
	return int64(pid)
}

func sysTaskWait(k *Kernel, caller ProcessID, a syscallArgs) int64 {
	if a[0] == 0 {
		return int64(ErrnoInvalid)
	}
	pid := ProcessID(a[0])
	for {
		st, err := k.table.Status(pid)
		if err != nil {
			return int64(ErrnoNotFound)
		}
		if st == StatusExited {
			code, err := k.table.ExitCode(pid)
			if err != nil {
				return int64(ErrnoError)
			}
			return code
		}
		if k.mode == ModeCooperative {
			// There is no timer to take the processor away, so the
			// waiter lends it. When nothing is left to lend to, the
			// target can never exit and polling forever would wedge
			// the machine.
			if !k.lendReady(caller) {
				return int64(ErrnoError)
			}
			continue
		}
		// Busy poll. Each probe is a kernel entry, so an armed
		// switch can take the processor away between probes.
		k.preemptPoint(caller)
		runtime.Gosched()
	}
}

func sysGetPID(_ *Kernel, caller ProcessID, _ syscallArgs) int64 {
	return int64(caller)
}

func sysPS(k *Kernel, _ ProcessID, a syscallArgs) int64 {
	ptr, n := a[0], a[1]
	if n == 0 || n > MaxWrite {
		return int64(ErrnoInvalid)
	}
	if ptr == 0 {
		return int64(ErrnoFault)
	}
	text := k.PSText()
	if uint64(len(text)) > n {
		return int64(ErrnoInvalid)
	}
	if len(text) == 0 {
		return 0
	}
	dst, ok := k.table.Mem(ptr, len(text))
	if !ok {
		return int64(ErrnoFault)
	}
	copy(dst, text)
	return int64(len(text))
}

func sysUptime(k *Kernel, _ ProcessID, _ syscallArgs) int64 {
	return int64(k.sched.ElapsedSeconds())
}

// PSText serializes the process list as one "pid status" line per
// process in table order. SysPS copies this text into the caller's
// buffer; the shell prints it directly.
func (k *Kernel) PSText() []byte {
	var b bytes.Buffer
	for _, info := range k.table.List() {
		fmt.Fprintf(&b, "%d %s\n", info.ID, info.Status)
	}
	return b.Bytes()
}
