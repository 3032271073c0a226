package kernel

import (
	"bytes"
	"testing"
)

func TestInputQueueFIFO(t *testing.T) {
	var q InputQueue
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop on empty queue reported a byte")
	}
	for _, b := range []byte("abc") {
		if !q.Push(b) {
			t.Fatalf("Push(%q) dropped", b)
		}
	}
	if got := q.Pending(); got != 3 {
		t.Fatalf("pending: got %d, want 3", got)
	}
	for _, want := range []byte("abc") {
		b, ok := q.Pop()
		if !ok || b != want {
			t.Fatalf("Pop: got %q/%v, want %q", b, ok, want)
		}
	}
}

func TestInputQueueDropsWhenFull(t *testing.T) {
	var q InputQueue
	for i := 0; i < inputSlots; i++ {
		if !q.Push(byte(i)) {
			t.Fatalf("Push %d dropped early", i)
		}
	}
	if q.Push(0xFF) {
		t.Fatalf("Push on full queue did not drop")
	}
	// Pop one; the queue accepts again.
	if _, ok := q.Pop(); !ok {
		t.Fatalf("Pop: queue unexpectedly empty")
	}
	if !q.Push(0xFF) {
		t.Fatalf("Push after drain dropped")
	}
}

func TestInputQueueDrain(t *testing.T) {
	var q InputQueue
	for _, b := range []byte("hello") {
		q.Push(b)
	}
	buf := make([]byte, 3)
	if got := q.Drain(buf); got != 3 {
		t.Fatalf("Drain: got %d, want 3", got)
	}
	if !bytes.Equal(buf, []byte("hel")) {
		t.Fatalf("Drain bytes: got %q, want %q", buf, "hel")
	}
	rest := make([]byte, 8)
	if got := q.Drain(rest); got != 2 {
		t.Fatalf("second Drain: got %d, want 2", got)
	}
	if !bytes.Equal(rest[:2], []byte("lo")) {
		t.Fatalf("second Drain bytes: got %q, want %q", rest[:2], "lo")
	}
	if got := q.Drain(rest); got != 0 {
		t.Fatalf("Drain on empty queue: got %d, want 0", got)
	}
}
