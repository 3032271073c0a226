// Package hal is the only contact point between the kernel and the
// host machine. The kernel sees a console it can write, a keyboard
// producing events, and a periodic timer; the backends in this
// package map those onto a desktop window, a raw terminal, or plain
// stdio. Nothing above hal knows which backend is live.
package hal

import "errors"

// ErrPowerOff reports that the machine's timebase has run down, for
// runs bounded by a tick budget. Consumers treat it as a clean
// shutdown, not a failure.
var ErrPowerOff = errors.New("hal: machine powered off")

// Console is a byte-oriented output sink: the screen terminal in
// window mode, the raw tty in serial mode, stdout headless.
type Console interface {
	Write(p []byte) (int, error)
	Clear()
}

// KeyCode identifies the non-rune keys the machine reports.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyEnter
	KeyBackspace
	KeyEscape
	KeyTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// KeyEvent is one keyboard event. Text keys carry the rune; special
// keys carry the code with a zero rune.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events, best effort on each backend.
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Time provides the machine's periodic timer as a stream of sequence
// numbers. The tick rate is fixed per backend; the kernel treats each
// received value as one timer interrupt.
type Time interface {
	Ticks() <-chan uint64
}

// Machine aggregates everything a backend exposes. Close releases
// backend resources (restores the terminal, stops tickers); the run
// helpers in this package call it, so most callers never do.
type Machine interface {
	Console() Console
	Keyboard() Keyboard
	Time() Time
	Close() error
}
