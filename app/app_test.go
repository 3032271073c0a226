package app

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"orbital/hal"
	"orbital/kernel"
	"orbital/user"
)

type fakeConsole struct {
	mu     sync.Mutex
	b      bytes.Buffer
	clears int
}

func (c *fakeConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.Write(p)
}

func (c *fakeConsole) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
}

func (c *fakeConsole) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.String()
}

// fakeMachine is a scripted backend: the test owns the tick and key
// channels.
type fakeMachine struct {
	console *fakeConsole
	keys    chan hal.KeyEvent
	ticks   chan uint64
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{
		console: &fakeConsole{},
		keys:    make(chan hal.KeyEvent, 256),
		ticks:   make(chan uint64, 256),
	}
}

func (m *fakeMachine) Console() hal.Console   { return m.console }
func (m *fakeMachine) Keyboard() hal.Keyboard { return m }
func (m *fakeMachine) Time() hal.Time         { return m }
func (m *fakeMachine) Close() error           { return nil }

func (m *fakeMachine) Events() <-chan hal.KeyEvent { return m.keys }
func (m *fakeMachine) Ticks() <-chan uint64        { return m.ticks }

// typeText scripts key presses for each rune, with newlines as the
// enter key.
func (m *fakeMachine) typeText(text string) {
	for _, r := range text {
		if r == '\n' {
			m.keys <- hal.KeyEvent{Code: hal.KeyEnter, Press: true}
			continue
		}
		m.keys <- hal.KeyEvent{Rune: r, Press: true}
	}
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSystemBootExitLifecycle(t *testing.T) {
	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sys.Run(context.Background()) }()

	waitFor(t, "banner", func() bool {
		return strings.Contains(m.console.String(), "Orbital OS")
	})

	m.typeText("ping\n")
	waitFor(t, "pong", func() bool {
		return strings.Contains(m.console.String(), "pong")
	})

	m.typeText("exit\n")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("system did not shut down on exit")
	}
	if !strings.Contains(m.console.String(), "Exiting...") {
		t.Fatal("goodbye not flushed to console")
	}
}

func TestSystemPowersOffWhenTimebaseEnds(t *testing.T) {
	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- sys.Run(context.Background()) }()

	for i := uint64(1); i <= 5; i++ {
		m.ticks <- i
	}
	close(m.ticks)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("system did not power off on closed timebase")
	}
}

func TestSystemStopsOnContextCancel(t *testing.T) {
	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	waitFor(t, "banner", func() bool {
		return strings.Contains(m.console.String(), "Orbital OS")
	})
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("system did not stop on cancel")
	}
}

func TestTicksDriveUptime(t *testing.T) {
	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	for i := uint64(1); i <= 2*kernel.TickHz; i++ {
		m.ticks <- i
	}
	waitFor(t, "uptime to advance", func() bool {
		return sys.Kernel().Scheduler().ElapsedSeconds() >= 2
	})

	m.typeText("uptime\n")
	waitFor(t, "uptime output", func() bool {
		return strings.Contains(m.console.String(), "Uptime: 2 seconds")
	})
}

func TestClearReachesConsole(t *testing.T) {
	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	m.typeText("clear\n")
	waitFor(t, "console clear", func() bool {
		m.console.mu.Lock()
		defer m.console.mu.Unlock()
		return m.console.clears > 0
	})
}

func TestPreemptiveEngineRunsSpawnedTask(t *testing.T) {
	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Mode: kernel.ModePreemptive, Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	m.typeText("spawn 1\n")
	waitFor(t, "task output", func() bool {
		return strings.Contains(m.console.String(), "[task1] hello from test task 1")
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("system did not stop on cancel")
	}
}

// bootELF builds a loadable image naming a registered program.
func bootELF(program string) []byte {
	h := make([]byte, 64)
	copy(h, []byte{0x7F, 'E', 'L', 'F'})
	h[4] = 2
	h[5] = 1
	h[6] = 1
	binary.LittleEndian.PutUint16(h[0x10:], 2)
	binary.LittleEndian.PutUint16(h[0x12:], 0x3E)
	binary.LittleEndian.PutUint64(h[0x18:], 0x80)
	h = append(h, []byte(program)...)
	return append(h, 0)
}

func TestBootImagesAreLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.elf")
	if err := os.WriteFile(path, bootELF(user.NameMinimal), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m := newFakeMachine()
	sys, err := NewSystem(m, Config{Images: []string{path}, Log: testLogger()})
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	if got := string(sys.Kernel().PSText()); !strings.Contains(got, "1 Ready") {
		t.Fatalf("boot image not in process table: %q", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	m.typeText("run\n")
	waitFor(t, "boot image output", func() bool {
		return strings.Contains(m.console.String(), "minimal userspace shell")
	})
}

func TestBootImageMissingFileFails(t *testing.T) {
	m := newFakeMachine()
	if _, err := NewSystem(m, Config{Images: []string{"/does/not/exist.elf"}, Log: testLogger()}); err == nil {
		t.Fatal("missing boot image accepted")
	}
}

func TestAppendKeyBytes(t *testing.T) {
	cases := []struct {
		name string
		ev   hal.KeyEvent
		want string
	}{
		{"release filtered", hal.KeyEvent{Rune: 'a', Press: false}, ""},
		{"plain rune", hal.KeyEvent{Rune: 'a', Press: true}, "a"},
		{"multibyte rune", hal.KeyEvent{Rune: 'é', Press: true}, "é"},
		{"enter", hal.KeyEvent{Code: hal.KeyEnter, Press: true}, "\n"},
		{"backspace", hal.KeyEvent{Code: hal.KeyBackspace, Press: true}, "\x08"},
		{"escape", hal.KeyEvent{Code: hal.KeyEscape, Press: true}, "\x1b"},
		{"tab", hal.KeyEvent{Code: hal.KeyTab, Press: true}, "\t"},
		{"up arrow", hal.KeyEvent{Code: hal.KeyUp, Press: true}, "\x1b[A"},
		{"down arrow", hal.KeyEvent{Code: hal.KeyDown, Press: true}, "\x1b[B"},
		{"right arrow", hal.KeyEvent{Code: hal.KeyRight, Press: true}, "\x1b[C"},
		{"left arrow", hal.KeyEvent{Code: hal.KeyLeft, Press: true}, "\x1b[D"},
		{"unknown", hal.KeyEvent{Code: hal.KeyUnknown, Press: true}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := appendKeyBytes(nil, tc.ev)
			if string(got) != tc.want {
				t.Fatalf("appendKeyBytes(%+v) = %q, want %q", tc.ev, got, tc.want)
			}
		})
	}
}
