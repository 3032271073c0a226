package kernel

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	k := newTestKernel(t)
	if got := k.Scheduler().Quantum(); got != DefaultQuantum {
		t.Fatalf("Quantum() = %d, want %d", got, DefaultQuantum)
	}
	if got := k.Mode(); got != ModeCooperative {
		t.Fatalf("Mode() = %v, want %v", got, ModeCooperative)
	}
	if _, err := k.Console().Dequeue(); !errors.Is(err, ErrRingEmpty) {
		t.Fatalf("Dequeue on fresh ring: %v, want ErrRingEmpty", err)
	}
}

func TestOnTickAdvancesClock(t *testing.T) {
	k := newTestKernel(t)
	for i := 0; i < 2*TickHz; i++ {
		k.OnTick()
	}
	if got := k.UptimeSeconds(); got != 2 {
		t.Fatalf("UptimeSeconds() after %d ticks = %d, want 2", 2*TickHz, got)
	}
	// Whole seconds only; a partial second does not show.
	for i := 0; i < TickHz-1; i++ {
		k.OnTick()
	}
	if got := k.UptimeSeconds(); got != 2 {
		t.Fatalf("UptimeSeconds() mid-second = %d, want 2", got)
	}
}

func TestCooperativeTickNeverArmsSwitch(t *testing.T) {
	k := newTestKernel(t)
	for i := 0; i < int(DefaultQuantum)*3; i++ {
		k.OnTick()
	}
	if k.needResched.Load() {
		t.Fatal("cooperative tick armed a resched")
	}
}

func TestPreemptiveTickArmsSwitchOnExpiry(t *testing.T) {
	k := newPreemptiveKernel(t, 4)
	for i := 0; i < 3; i++ {
		k.OnTick()
		if k.needResched.Load() {
			t.Fatalf("resched armed after %d ticks, quantum is 4", i+1)
		}
	}
	k.OnTick()
	if !k.needResched.Load() {
		t.Fatal("quantum expiry did not arm a resched")
	}
}

func TestInputFacade(t *testing.T) {
	k := newTestKernel(t)
	if n := k.InputPending(); n != 0 {
		t.Fatalf("InputPending() on a fresh kernel = %d, want 0", n)
	}
	for _, b := range []byte("abc") {
		k.PushInput(b)
	}
	select {
	case <-k.InputReadable():
	default:
		t.Fatal("PushInput did not signal readable")
	}
	if n := k.InputPending(); n != 3 {
		t.Fatalf("InputPending() = %d, want 3", n)
	}
	buf := make([]byte, 8)
	if n := k.ReadInput(buf); n != 3 || !bytes.Equal(buf[:n], []byte("abc")) {
		t.Fatalf("ReadInput = %d %q, want 3 %q", n, buf[:n], "abc")
	}
	if n := k.InputPending(); n != 0 {
		t.Fatalf("InputPending() after drain = %d, want 0", n)
	}
}
