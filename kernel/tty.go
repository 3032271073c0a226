package kernel

import (
	"io"
	"sync"
	"sync/atomic"
)

// MaxWrite caps a single sys_write or sys_log transfer. Larger
// requests are rejected at the syscall boundary, not split.
const MaxWrite = 4096

// Console message ids carried on the kernel's console ring.
const (
	// MsgConsoleWrite carries console bytes to the terminal service.
	MsgConsoleWrite uint32 = iota + 1
	// MsgConsoleClear asks the terminal service to wipe the screen.
	MsgConsoleClear
)

// TTY is the kernel's console sink. Bytes written here are broken
// into ring messages on the console channel for the terminal service
// to render, and optionally mirrored to an echo writer such as a
// serial port. When the ring is full the chunk is dropped and
// counted; console output never blocks the kernel.
type TTY struct {
	mu       sync.Mutex
	ring     *Ring
	echo     io.Writer
	readable chan struct{}
	dropped  atomic.Uint64
}

// NewTTY builds a console sink over ring. echo may be nil.
func NewTTY(ring *Ring, echo io.Writer) *TTY {
	return &TTY{ring: ring, echo: echo, readable: make(chan struct{}, 1)}
}

// Readable signals whenever new console messages may be pending, so
// the consumer can park instead of polling the ring. Signals
// coalesce; a woken consumer drains until the ring is empty.
func (t *TTY) Readable() <-chan struct{} {
	return t.readable
}

func (t *TTY) signal() {
	select {
	case t.readable <- struct{}{}:
	default:
	}
}

// WriteFrom publishes p on the console channel stamped with the
// sending task id, chunked to the ring payload size. It always
// reports len(p); delivery is best effort.
func (t *TTY) WriteFrom(sender uint32, p []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	queued := false
	for off := 0; off < len(p); off += MaxPayload {
		end := off + MaxPayload
		if end > len(p) {
			end = len(p)
		}
		msg := NewMessage(sender, MsgConsoleWrite, p[off:end])
		if err := t.ring.Enqueue(msg); err != nil {
			t.dropped.Add(1)
		} else {
			queued = true
		}
	}
	if queued {
		t.signal()
	}
	if t.echo != nil {
		t.echo.Write(p)
	}
	return len(p)
}

// Write implements io.Writer for kernel-originated output.
func (t *TTY) Write(p []byte) (int, error) {
	return t.WriteFrom(0, p), nil
}

// Clear asks the terminal service to wipe its screen.
func (t *TTY) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ring.Enqueue(NewMessage(0, MsgConsoleClear, nil)); err != nil {
		t.dropped.Add(1)
		return
	}
	t.signal()
}

// Dropped reports how many chunks were lost to a full ring.
func (t *TTY) Dropped() uint64 {
	return t.dropped.Load()
}
