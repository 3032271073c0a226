package kernel

import (
	"sort"
	"sync"

	"orbital/arch"
)

// ImageNameOffset is where a loadable image records, NUL terminated,
// the name of the registered program providing its behavior. It sits
// right after the 64-byte header so the header layout stays
// untouched.
const ImageNameOffset = ELFHeaderSize

// Program is the behavior behind an entry point. It runs with the
// identity and stack window of its process and its return value
// becomes the exit code unless the program exited explicitly first.
type Program func(env *Env) int64

type registration struct {
	name  string
	entry uint64
	prog  Program
}

// Registry assigns registered programs stable synthetic entry-point
// addresses in the program window starting at arch.ProgramBase, so a
// program can be spawned by address exactly the way machine code
// would be.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*registration
	byAddr map[uint64]*registration
	next   uint64
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*registration),
		byAddr: make(map[uint64]*registration),
		next:   arch.ProgramBase,
	}
}

// Register binds prog to name and returns the entry-point address.
// Re-registering a name swaps the program but keeps its address, so
// processes created earlier still resolve.
func (r *Registry) Register(name string, prog Program) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.byName[name]; ok {
		reg.prog = prog
		return reg.entry
	}
	reg := &registration{name: name, entry: r.next, prog: prog}
	r.next += arch.ProgramStride
	r.byName[name] = reg
	r.byAddr[reg.entry] = reg
	return reg.entry
}

// ByName resolves a registered program and its entry address.
func (r *Registry) ByName(name string) (Program, uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byName[name]
	if !ok {
		return nil, 0, false
	}
	return reg.prog, reg.entry, true
}

// ByAddr resolves the program registered at an entry address.
func (r *Registry) ByAddr(addr uint64) (Program, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byAddr[addr]
	if !ok {
		return nil, "", false
	}
	return reg.prog, reg.name, true
}

// Names lists registered program names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stageBase keeps staged syscall buffers clear of the image bytes at
// the bottom of the stack window.
const stageBase = 512

// Env is the execution environment handed to a running program: its
// process identity, its stack window, and the syscall gate. Pointer
// arguments must name addresses inside the process's own window,
// which is what Stage and Reserve produce. An Env belongs to exactly
// one program invocation.
type Env struct {
	k      *Kernel
	pid    ProcessID
	window []byte
	base   uint64
	off    int
}

func newEnv(k *Kernel, pid ProcessID, window []byte, base uint64) *Env {
	return &Env{k: k, pid: pid, window: window, base: base, off: stageBase}
}

// PID reports the id of the process running this program.
func (e *Env) PID() ProcessID {
	return e.pid
}

// Syscall enters the kernel. Up to six arguments are passed
// positionally, the rest ride as zero.
func (e *Env) Syscall(id uint64, args ...uint64) int64 {
	var a [6]uint64
	copy(a[:], args)
	return e.k.Syscall(e.pid, id, a[0], a[1], a[2], a[3], a[4], a[5])
}

// Stage copies data into the process stack window and returns the
// virtual address to pass as a syscall pointer argument. The staging
// region wraps around when exhausted, so a staged buffer is only
// valid until enough further staging overwrites it.
func (e *Env) Stage(data []byte) (uint64, bool) {
	addr, buf, ok := e.Reserve(len(data))
	if !ok {
		return 0, false
	}
	copy(buf, data)
	return addr, true
}

// Reserve stages a zeroed n-byte buffer, returning its virtual
// address and the backing bytes for reading results back out.
func (e *Env) Reserve(n int) (uint64, []byte, bool) {
	if n <= 0 || n > len(e.window)-stageBase {
		return 0, nil, false
	}
	if e.off+n > len(e.window) {
		e.off = stageBase
	}
	addr := e.base + uint64(e.off)
	buf := e.window[e.off : e.off+n]
	for i := range buf {
		buf[i] = 0
	}
	e.off += n
	return addr, buf, true
}

// Exit terminates the running program with code. It never returns.
func (e *Env) Exit(code int64) {
	e.Syscall(SysExit, uint64(code))
	panic(programExit{code: code})
}

// cstring reads a NUL-terminated string out of b.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
