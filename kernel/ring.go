// Package kernel implements the task execution core: the process
// table and stack arena, the round-robin scheduler, the context
// switch protocol, the syscall dispatcher, and the ring-buffer IPC
// channels that connect tasks to each other and to the console.
//
// All kernel state hangs off an explicit Kernel object; there are no
// package globals, so tests construct as many independent kernels as
// they need.
package kernel

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
)

// MaxPayload is the payload capacity of a single ring message.
const MaxPayload = 256

// DefaultRingSlots is the standard ring capacity. One slot is always
// kept free to distinguish full from empty, so a ring of 256 slots
// holds at most 255 messages.
const DefaultRingSlots = 256

// MessageWireSize is the encoded size of one Message.
//
// Wire layout (little endian):
//
//	u32 sender
//	u32 id
//	u16 len
//	[256]byte payload
const MessageWireSize = 4 + 4 + 2 + MaxPayload

var (
	ErrRingFull     = errors.New("kernel: ring full")
	ErrRingEmpty    = errors.New("kernel: ring empty")
	ErrRingCapacity = errors.New("kernel: ring capacity must be a power of two")
	ErrShortMessage = errors.New("kernel: message buffer too short")
)

// Message is the fixed-size record carried by a Ring. Sender is the
// id of the task that enqueued it, stamped by the kernel; ID and the
// payload are opaque to the kernel.
type Message struct {
	Sender  uint32
	ID      uint32
	Len     uint16
	Payload [MaxPayload]byte
}

// NewMessage builds a message around a copy of payload. Payloads
// longer than MaxPayload are truncated.
func NewMessage(sender, id uint32, payload []byte) Message {
	m := Message{Sender: sender, ID: id}
	m.SetPayload(payload)
	return m
}

// SetPayload copies data into the message, truncating at MaxPayload.
func (m *Message) SetPayload(data []byte) {
	n := copy(m.Payload[:], data)
	m.Len = uint16(n)
}

// Bytes returns the live portion of the payload.
func (m *Message) Bytes() []byte {
	n := int(m.Len)
	if n > MaxPayload {
		n = MaxPayload
	}
	return m.Payload[:n]
}

// MarshalBinary encodes the message into its wire image.
func (m *Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, MessageWireSize)
	binary.LittleEndian.PutUint32(buf[0:], m.Sender)
	binary.LittleEndian.PutUint32(buf[4:], m.ID)
	binary.LittleEndian.PutUint16(buf[8:], m.Len)
	copy(buf[10:], m.Payload[:])
	return buf, nil
}

// UnmarshalBinary decodes a wire image produced by MarshalBinary.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < MessageWireSize {
		return ErrShortMessage
	}
	m.Sender = binary.LittleEndian.Uint32(data[0:])
	m.ID = binary.LittleEndian.Uint32(data[4:])
	m.Len = binary.LittleEndian.Uint16(data[8:])
	copy(m.Payload[:], data[10:10+MaxPayload])
	if m.Len > MaxPayload {
		m.Len = MaxPayload
	}
	return nil
}

// Ring is a lock-free single-producer single-consumer message queue.
// The write and read indexes grow monotonically and are reduced by a
// power-of-two mask on every slot access, so they never wrap in
// practice and never need resetting. It is the kernel's only IPC
// primitive: no routing, retries, or framing live at this layer.
//
// A Ring must not be copied after first use.
type Ring struct {
	_     [0]func()
	mask  uint64
	slots []Message
	write atomic.Uint64
	read  atomic.Uint64
}

// NewRing builds a ring with the given slot count, which must be a
// power of two. Zero selects DefaultRingSlots.
func NewRing(slots int) (*Ring, error) {
	if slots == 0 {
		slots = DefaultRingSlots
	}
	if slots < 2 || slots&(slots-1) != 0 {
		return nil, ErrRingCapacity
	}
	return &Ring{
		mask:  uint64(slots - 1),
		slots: make([]Message, slots),
	}, nil
}

// Capacity returns the number of messages the ring can hold at once.
func (r *Ring) Capacity() int {
	return len(r.slots) - 1
}

// Enqueue appends msg to the ring. It fails with ErrRingFull when
// only the reserved empty slot remains; the producer decides whether
// to drop or retry.
func (r *Ring) Enqueue(msg Message) error {
	write := r.write.Load()
	read := r.read.Load()
	if (write+1)&r.mask == read&r.mask {
		return ErrRingFull
	}
	r.slots[write&r.mask] = msg
	r.write.Store(write + 1)
	return nil
}

// Dequeue removes and returns the oldest message, failing with
// ErrRingEmpty when the indexes coincide.
func (r *Ring) Dequeue() (Message, error) {
	read := r.read.Load()
	write := r.write.Load()
	if read&r.mask == write&r.mask {
		return Message{}, ErrRingEmpty
	}
	msg := r.slots[read&r.mask]
	r.read.Store(read + 1)
	return msg, nil
}

// Depth reports how many messages are buffered. The answer is a
// best-effort snapshot and is only meaningful for diagnostics.
func (r *Ring) Depth() int {
	return int(r.write.Load() - r.read.Load())
}

// Empty reports whether the ring held no messages at the instant of
// the call. Like Depth it is advisory only.
func (r *Ring) Empty() bool {
	return r.Depth() == 0
}
