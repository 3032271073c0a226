package hal

import (
	"context"
	"os"
	"sync"

	"github.com/mattn/go-tty"
)

// RunSerial runs the system on the controlling terminal in raw mode.
// Raw mode suppresses the interrupt signal, so Ctrl-C cancels the run
// instead. Terminal attributes are restored on return.
func RunSerial(ctx context.Context, hz int, run func(context.Context, Machine) error) error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	restore := t.MustRaw()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	clock := newTickerTime(hz, 0)
	m := &machine{
		console:  &ttyConsole{out: t.Output()},
		keyboard: newTTYKeyboard(t, cancel),
		time:     clock,
	}
	m.closers = append(m.closers,
		func() error { clock.close(); return nil },
		func() error { return t.Close() },
		restore,
	)
	defer m.Close()

	return run(runCtx, m)
}

type ttyConsole struct {
	mu  sync.Mutex
	out *os.File
}

// Write expands \n to \r\n for the raw terminal.
func (c *ttyConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, 0, len(p)+8)
	for _, b := range p {
		if b == '\n' {
			buf = append(buf, '\r')
		}
		buf = append(buf, b)
	}
	if _, err := c.out.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *ttyConsole) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.WriteString("\x1b[2J\x1b[H")
}

type ttyKeyboard struct {
	ch chan KeyEvent
}

func newTTYKeyboard(t *tty.TTY, interrupt func()) *ttyKeyboard {
	k := &ttyKeyboard{ch: make(chan KeyEvent, 64)}
	go k.read(t, interrupt)
	return k
}

func (k *ttyKeyboard) Events() <-chan KeyEvent { return k.ch }

func (k *ttyKeyboard) read(t *tty.TTY, interrupt func()) {
	defer close(k.ch)
	for {
		r, err := t.ReadRune()
		if err != nil {
			return
		}

		ev := KeyEvent{Press: true}
		switch r {
		case 0x03:
			interrupt()
			return
		case '\r', '\n':
			ev.Code = KeyEnter
		case 0x7f, 0x08:
			ev.Code = KeyBackspace
		case 0x1b:
			ev.Code = KeyEscape
		case '\t':
			ev.Code = KeyTab
		default:
			ev.Rune = r
		}

		select {
		case k.ch <- ev:
		default:
		}
	}
}
