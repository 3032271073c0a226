// Package user is the program-side face of the syscall ABI: named
// wrappers over the raw gate plus the built-in program suite the
// shell spawns. Pointer arguments are staged inside the calling
// process's own stack window, which is the only memory the kernel
// will accept from it.
package user

import (
	"fmt"

	"orbital/kernel"
)

// writeChunk is the staging granularity for console writes. It keeps
// any single write well inside the staging region of a 4 KiB window.
const writeChunk = 1024

// psBufBytes is sized so all 256 table rows fit at worst-case line
// width.
const psBufBytes = 3584

// Hello performs the liveness handshake and reports whether the
// kernel answered with the expected reply.
func Hello(env *kernel.Env) error {
	ret := env.Syscall(kernel.SysHello, kernel.HelloMagic)
	if ret < 0 {
		return kernel.Errno(ret)
	}
	if ret != kernel.HelloReply {
		return fmt.Errorf("hello: unexpected reply %#x", ret)
	}
	return nil
}

// Write stages text in the process window and writes it to fd in
// chunks. A short count without an error means the console dropped
// the tail under pressure.
func Write(env *kernel.Env, fd uint64, text string) (int, error) {
	written := 0
	for len(text) > 0 {
		chunk := text
		if len(chunk) > writeChunk {
			chunk = chunk[:writeChunk]
		}
		addr, ok := env.Stage([]byte(chunk))
		if !ok {
			return written, kernel.ErrnoFault
		}
		ret := env.Syscall(kernel.SysWrite, fd, addr, uint64(len(chunk)))
		if ret < 0 {
			return written, kernel.Errno(ret)
		}
		written += int(ret)
		if int(ret) < len(chunk) {
			return written, nil
		}
		text = text[len(chunk):]
	}
	return written, nil
}

// Print writes text to standard output.
func Print(env *kernel.Env, text string) (int, error) {
	return Write(env, kernel.Stdout, text)
}

// Printf formats its arguments and writes them to standard output.
func Printf(env *kernel.Env, format string, args ...any) (int, error) {
	return Write(env, kernel.Stdout, fmt.Sprintf(format, args...))
}

// Log sends one line to the kernel diagnostic log, clamped to the
// staging chunk size.
func Log(env *kernel.Env, line string) error {
	if line == "" {
		return nil
	}
	b := []byte(line)
	if len(b) > writeChunk {
		b = b[:writeChunk]
	}
	addr, ok := env.Stage(b)
	if !ok {
		return kernel.ErrnoFault
	}
	if ret := env.Syscall(kernel.SysLog, addr, uint64(len(b))); ret < 0 {
		return kernel.Errno(ret)
	}
	return nil
}

// Read drains buffered keyboard input into p without blocking and
// reports how many bytes arrived, possibly zero.
func Read(env *kernel.Env, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	addr, buf, ok := env.Reserve(len(p))
	if !ok {
		return 0, kernel.ErrnoInvalid
	}
	ret := env.Syscall(kernel.SysRead, kernel.Stdin, addr, uint64(len(p)))
	if ret < 0 {
		return 0, kernel.Errno(ret)
	}
	copy(p, buf[:ret])
	return int(ret), nil
}

// Exit terminates the calling program with code. It does not return.
func Exit(env *kernel.Env, code int64) {
	env.Exit(code)
}

// Spawn creates a Ready process from a registered entry address.
func Spawn(env *kernel.Env, entry uint64) (kernel.ProcessID, error) {
	ret := env.Syscall(kernel.SysTaskCreate, entry)
	if ret < 0 {
		return kernel.NoProcess, kernel.Errno(ret)
	}
	return kernel.ProcessID(ret), nil
}

// Wait blocks until pid exits and returns its exit code. The ABI
// returns one signed word, so the exit code of a faulted process is
// indistinguishable from the matching errno; Wait reports such codes
// as errors.
func Wait(env *kernel.Env, pid kernel.ProcessID) (int64, error) {
	ret := env.Syscall(kernel.SysTaskWait, uint64(pid))
	if ret < 0 {
		return 0, kernel.Errno(ret)
	}
	return ret, nil
}

// GetPID reports the calling process id.
func GetPID(env *kernel.Env) kernel.ProcessID {
	return kernel.ProcessID(env.Syscall(kernel.SysGetPID))
}

// PS returns the kernel process listing, one "pid status" line per
// process.
func PS(env *kernel.Env) (string, error) {
	addr, buf, ok := env.Reserve(psBufBytes)
	if !ok {
		return "", kernel.ErrnoInvalid
	}
	ret := env.Syscall(kernel.SysPS, addr, psBufBytes)
	if ret < 0 {
		return "", kernel.Errno(ret)
	}
	return string(buf[:ret]), nil
}

// Uptime reports whole seconds since the kernel started ticking.
func Uptime(env *kernel.Env) uint64 {
	return uint64(env.Syscall(kernel.SysUptime))
}
