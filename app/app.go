// Package app assembles one machine: a kernel, the terminal and
// shell services, and the pumps that feed the kernel from the
// backend's timer and keyboard. The hal backends hand it a Machine;
// everything above that line is identical in window, serial, and
// headless modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"orbital/hal"
	"orbital/kernel"
	"orbital/services/shell"
	"orbital/services/terminal"
	"orbital/user"
)

// Config carries the boot parameters of one system.
type Config struct {
	// Mode selects the scheduling model for the kernel's lifetime.
	Mode kernel.SchedulingMode
	// Quantum is the time slice in ticks. Zero selects the kernel
	// default.
	Quantum uint32
	// RingSlots sizes the console ring. Zero selects the kernel
	// default.
	RingSlots int
	// Echo optionally mirrors all console output, typically for
	// captures and tests.
	Echo io.Writer
	// Images lists ELF files to load at boot, one instance each.
	Images []string
	// Log receives system diagnostics. Nil selects the standard
	// logger.
	Log logrus.FieldLogger
}

// System is one booted machine.
type System struct {
	k    *kernel.Kernel
	m    hal.Machine
	sh   *shell.Service
	term *terminal.Service
	log  logrus.FieldLogger
}

// NewSystem boots a kernel over machine m: registers the built-in
// program suite and loads any boot images, ready for Run.
func NewSystem(m hal.Machine, cfg Config) (*System, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	k, err := kernel.New(kernel.Config{
		Quantum:   cfg.Quantum,
		RingSlots: cfg.RingSlots,
		Mode:      cfg.Mode,
		Echo:      cfg.Echo,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	user.RegisterAll(k)

	for _, path := range cfg.Images {
		image, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("boot image: %w", err)
		}
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		pid, err := k.SpawnImage(image, name)
		if err != nil {
			return nil, fmt.Errorf("boot image %s: %w", path, err)
		}
		log.WithFields(logrus.Fields{"image": name, "pid": pid}).Info("boot image loaded")
	}

	sh, err := shell.New(k, log)
	if err != nil {
		return nil, err
	}

	return &System{
		k:    k,
		m:    m,
		sh:   sh,
		term: terminal.New(k, m.Console(), log),
		log:  log,
	}, nil
}

// Kernel exposes the system's kernel, mainly for tests and
// diagnostics.
func (s *System) Kernel() *kernel.Kernel {
	return s.k
}

// Run drives the machine until the shell exits, the timebase runs
// down, or ctx is cancelled. All three are clean shutdowns and
// return nil; anything else is a fault.
func (s *System) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"mode":    s.k.Mode(),
		"quantum": s.k.Scheduler().Quantum(),
	}).Info("system up")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.pumpTicks(ctx) })
	g.Go(func() error { return s.pumpInput(ctx) })
	g.Go(func() error { return s.term.Run(ctx) })
	g.Go(func() error { return s.sh.Run(ctx) })
	if s.k.Mode() == kernel.ModePreemptive {
		g.Go(func() error { return s.k.Run(ctx) })
	}

	err := g.Wait()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shell.ErrExit), errors.Is(err, hal.ErrPowerOff), errors.Is(err, context.Canceled):
		s.log.WithField("cause", err).Info("system down")
		return nil
	default:
		return err
	}
}

// pumpTicks forwards the machine timer into the kernel. A closed
// tick channel means the timebase ran down, which powers the
// machine off.
func (s *System) pumpTicks(ctx context.Context) error {
	ticks := s.m.Time().Ticks()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return hal.ErrPowerOff
			}
			s.k.OnTick()
		}
	}
}

// pumpInput translates keyboard events into the byte stream the
// shell's line editor reads. A closed event channel means the
// terminal went away, which also powers the machine off.
func (s *System) pumpInput(ctx context.Context) error {
	events := s.m.Keyboard().Events()
	var scratch [8]byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return hal.ErrPowerOff
			}
			for _, b := range appendKeyBytes(scratch[:0], ev) {
				s.k.PushInput(b)
			}
		}
	}
}

// appendKeyBytes encodes one key press as console input bytes.
// Releases and unknown keys encode to nothing; special keys use
// their VT100 forms so the serial and window paths feed the shell
// identically.
func appendKeyBytes(dst []byte, ev hal.KeyEvent) []byte {
	if !ev.Press {
		return dst
	}
	if ev.Rune != 0 {
		return utf8.AppendRune(dst, ev.Rune)
	}
	switch ev.Code {
	case hal.KeyEnter:
		return append(dst, '\n')
	case hal.KeyBackspace:
		return append(dst, 0x08)
	case hal.KeyEscape:
		return append(dst, 0x1b)
	case hal.KeyTab:
		return append(dst, '\t')
	case hal.KeyUp:
		return append(dst, 0x1b, '[', 'A')
	case hal.KeyDown:
		return append(dst, 0x1b, '[', 'B')
	case hal.KeyRight:
		return append(dst, 0x1b, '[', 'C')
	case hal.KeyLeft:
		return append(dst, 0x1b, '[', 'D')
	}
	return dst
}
