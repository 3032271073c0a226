package kernel

import "sync/atomic"

// inputSlots is the keyboard buffer depth. Bytes arriving while the
// buffer is full are dropped, never blocked on; losing keystrokes is
// preferable to stalling the interrupt path.
const inputSlots = 256

// InputQueue buffers keyboard bytes between the interrupt side and
// sys_read. It is a single-producer single-consumer ring of raw
// bytes with the same monotonic-index discipline as Ring, kept
// separate because its records are single bytes and its overflow
// policy is drop, not fail-and-retry.
//
// An InputQueue must not be copied after first use.
type InputQueue struct {
	_     [0]func()
	head  atomic.Uint32
	tail  atomic.Uint32
	slots [inputSlots]byte
}

// Push appends b, reporting false when the byte was dropped because
// the buffer is full.
func (q *InputQueue) Push(b byte) bool {
	head := q.head.Load()
	tail := q.tail.Load()
	if head-tail >= inputSlots {
		return false
	}
	q.slots[head%inputSlots] = b
	q.head.Store(head + 1)
	return true
}

// Pop removes the oldest byte, reporting false when the buffer is
// empty.
func (q *InputQueue) Pop() (byte, bool) {
	tail := q.tail.Load()
	head := q.head.Load()
	if tail == head {
		return 0, false
	}
	b := q.slots[tail%inputSlots]
	q.tail.Store(tail + 1)
	return b, true
}

// Drain copies up to len(dst) buffered bytes into dst without
// blocking and reports how many were copied. Zero means nothing was
// pending.
func (q *InputQueue) Drain(dst []byte) int {
	n := 0
	for n < len(dst) {
		b, ok := q.Pop()
		if !ok {
			break
		}
		dst[n] = b
		n++
	}
	return n
}

// Pending reports how many bytes are buffered. Advisory only.
func (q *InputQueue) Pending() int {
	return int(q.head.Load() - q.tail.Load())
}
