package kernel

// Errno is the closed set of error codes a syscall can return. The
// dispatcher reports them to userspace as negative values in RAX, so
// the numbering is ABI and must not change.
type Errno int64

const (
	// ErrnoInvalid rejects a malformed argument or syscall frame.
	ErrnoInvalid Errno = -1
	// ErrnoNotImplemented reports a syscall id outside the table.
	ErrnoNotImplemented Errno = -2
	// ErrnoFault reports an unresolvable userspace pointer.
	ErrnoFault Errno = -3
	// ErrnoPermissionDenied rejects an operation the caller may not perform.
	ErrnoPermissionDenied Errno = -4
	// ErrnoNotFound reports a missing process or resource.
	ErrnoNotFound Errno = -5
	// ErrnoError is the catch-all for internal kernel failures.
	ErrnoError Errno = -6
	// ErrnoBadFd rejects a file descriptor the caller does not own.
	ErrnoBadFd Errno = -9
)

func (e Errno) Error() string {
	switch e {
	case ErrnoInvalid:
		return "invalid argument"
	case ErrnoNotImplemented:
		return "syscall not implemented"
	case ErrnoFault:
		return "memory fault"
	case ErrnoPermissionDenied:
		return "permission denied"
	case ErrnoNotFound:
		return "not found"
	case ErrnoError:
		return "kernel error"
	case ErrnoBadFd:
		return "bad file descriptor"
	default:
		return "unknown errno"
	}
}

// Word returns the value as it appears in RAX after the syscall.
func (e Errno) Word() uint64 {
	return uint64(int64(e))
}
