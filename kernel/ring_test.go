package kernel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestRingCapacityValidation(t *testing.T) {
	for _, slots := range []int{3, 5, 100, -1, 1} {
		if _, err := NewRing(slots); !errors.Is(err, ErrRingCapacity) {
			t.Fatalf("NewRing(%d): got %v, want ErrRingCapacity", slots, err)
		}
	}
	r, err := NewRing(0)
	if err != nil {
		t.Fatalf("NewRing(0): %v", err)
	}
	if got, want := r.Capacity(), DefaultRingSlots-1; got != want {
		t.Fatalf("default capacity: got %d, want %d", got, want)
	}
}

func TestRingDequeueEmpty(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	if _, err := r.Dequeue(); !errors.Is(err, ErrRingEmpty) {
		t.Fatalf("Dequeue on empty ring: got %v, want ErrRingEmpty", err)
	}
}

func TestRingFIFOOrder(t *testing.T) {
	r, err := NewRing(16)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	for i := 0; i < 10; i++ {
		msg := NewMessage(1, uint32(i), []byte{byte(i)})
		if err := r.Enqueue(msg); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	for i := 0; i < 10; i++ {
		msg, err := r.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue %d: %v", i, err)
		}
		if got, want := msg.ID, uint32(i); got != want {
			t.Fatalf("message %d out of order: got id %d, want %d", i, got, want)
		}
		if got, want := msg.Bytes(), []byte{byte(i)}; !bytes.Equal(got, want) {
			t.Fatalf("message %d payload: got %v, want %v", i, got, want)
		}
	}
	if _, err := r.Dequeue(); !errors.Is(err, ErrRingEmpty) {
		t.Fatalf("ring should drain empty, got %v", err)
	}
}

func TestRingEnqueueFull(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	for i := 0; i < r.Capacity(); i++ {
		if err := r.Enqueue(NewMessage(1, uint32(i), nil)); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	if err := r.Enqueue(NewMessage(1, 99, nil)); !errors.Is(err, ErrRingFull) {
		t.Fatalf("Enqueue on full ring: got %v, want ErrRingFull", err)
	}
	// Draining one slot makes room again.
	if _, err := r.Dequeue(); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if err := r.Enqueue(NewMessage(1, 100, nil)); err != nil {
		t.Fatalf("Enqueue after drain: %v", err)
	}
}

func TestRingWraparound(t *testing.T) {
	r, err := NewRing(8)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	next := uint32(0)
	for cycle := 0; cycle < 50; cycle++ {
		for i := 0; i < 5; i++ {
			if err := r.Enqueue(NewMessage(7, next+uint32(i), nil)); err != nil {
				t.Fatalf("cycle %d Enqueue: %v", cycle, err)
			}
		}
		for i := 0; i < 5; i++ {
			msg, err := r.Dequeue()
			if err != nil {
				t.Fatalf("cycle %d Dequeue: %v", cycle, err)
			}
			if got, want := msg.ID, next; got != want {
				t.Fatalf("cycle %d: got id %d, want %d", cycle, got, want)
			}
			next++
		}
	}
	if got := r.Depth(); got != 0 {
		t.Fatalf("ring depth after drain: got %d, want 0", got)
	}
}

func TestMessageCodecRoundTrip(t *testing.T) {
	in := NewMessage(3, 0x1234, []byte("ping"))
	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if got, want := len(data), MessageWireSize; got != want {
		t.Fatalf("wire size: got %d, want %d", got, want)
	}
	var out Message
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if out.Sender != in.Sender || out.ID != in.ID || out.Len != in.Len {
		t.Fatalf("header mismatch: got %+v, want %+v", out, in)
	}
	if got, want := string(out.Bytes()), "ping"; got != want {
		t.Fatalf("payload: got %q, want %q", got, want)
	}

	var short Message
	if err := short.UnmarshalBinary(data[:10]); !errors.Is(err, ErrShortMessage) {
		t.Fatalf("short buffer: got %v, want ErrShortMessage", err)
	}
}

func TestMessageTruncatesPayload(t *testing.T) {
	big := make([]byte, MaxPayload+64)
	for i := range big {
		big[i] = byte(i)
	}
	msg := NewMessage(1, 1, big)
	if got, want := int(msg.Len), MaxPayload; got != want {
		t.Fatalf("payload length: got %d, want %d", got, want)
	}
	if got, want := msg.Bytes(), big[:MaxPayload]; !bytes.Equal(got, want) {
		t.Fatalf("payload truncation kept wrong bytes")
	}
}

func TestRingSingleProducerSingleConsumer(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(1))

	r, err := NewRing(64)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	const total = 10_000

	start := make(chan struct{})
	go func() {
		<-start
		for i := uint32(0); i < total; i++ {
			var payload [4]byte
			binary.LittleEndian.PutUint32(payload[:], i)
			msg := NewMessage(1, i, payload[:])
			for r.Enqueue(msg) != nil {
				runtime.Gosched()
			}
		}
	}()

	close(start)
	deadline := time.Now().Add(5 * time.Second)
	for i := uint32(0); i < total; {
		msg, err := r.Dequeue()
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("timed out after %d messages", i)
			}
			runtime.Gosched()
			continue
		}
		if got, want := msg.ID, i; got != want {
			t.Fatalf("message %d arrived out of order as %d", want, got)
		}
		if got := binary.LittleEndian.Uint32(msg.Bytes()); got != i {
			t.Fatalf("payload for %d: got %d", i, got)
		}
		i++
	}
	if got := r.Depth(); got != 0 {
		t.Fatalf("ring depth after run: got %d, want 0", got)
	}
}
