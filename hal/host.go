package hal

import (
	"io"
	"sync"
)

// machine backs every host runner. Backends fill in the devices and
// register teardown hooks; Close runs them newest-first.
type machine struct {
	console  Console
	keyboard Keyboard
	time     Time
	closers  []func() error
}

func (m *machine) Console() Console   { return m.console }
func (m *machine) Keyboard() Keyboard { return m.keyboard }
func (m *machine) Time() Time         { return m.time }

func (m *machine) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

type stdioConsole struct {
	mu sync.Mutex
	w  io.Writer
}

func newStdioConsole(w io.Writer) *stdioConsole { return &stdioConsole{w: w} }

func (c *stdioConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.Write(p)
}

// Clear is a no-op: a byte pipe has no screen to wipe.
func (c *stdioConsole) Clear() {}

// nullKeyboard never produces an event.
type nullKeyboard struct {
	ch chan KeyEvent
}

func newNullKeyboard() *nullKeyboard { return &nullKeyboard{ch: make(chan KeyEvent)} }

func (k *nullKeyboard) Events() <-chan KeyEvent { return k.ch }
