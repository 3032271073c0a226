// Package shell is the kernel-side command interpreter. It drains
// the keyboard queue, edits one input line, and dispatches commands
// against the kernel, issuing syscalls as kernel caller zero. Output
// goes through the kernel TTY, so it rides the same console pipeline
// as every running task.
package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"orbital/kernel"
)

// ErrExit reports that the user asked the shell to stop. The
// supervisor treats it as a clean shutdown of the whole machine.
var ErrExit = errors.New("shell: exit")

// maxLine caps the edited line length in runes; further printable
// input is ignored until the line is submitted.
const maxLine = 256

// Service is the interactive shell.
type Service struct {
	k   *kernel.Kernel
	log logrus.FieldLogger
	reg *registry

	line    []rune
	pending []byte
}

// New builds a shell over kernel k.
func New(k *kernel.Kernel, log logrus.FieldLogger) (*Service, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{k: k, log: log}
	if err := s.initRegistry(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run prints the banner and interprets keyboard input until ctx is
// done or the exit command runs. Between keystrokes it parks on the
// kernel's input signal instead of polling.
func (s *Service) Run(ctx context.Context) error {
	s.banner()
	s.prompt()

	buf := make([]byte, 64)
	for {
		for {
			n := s.k.ReadInput(buf)
			if n == 0 {
				break
			}
			if err := s.handleInput(ctx, buf[:n]); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.k.InputReadable():
		}
	}
}

// handleInput folds freshly read bytes into the line editor. Partial
// UTF-8 runes and partial escape sequences are carried over to the
// next read.
func (s *Service) handleInput(ctx context.Context, b []byte) error {
	buf := append(s.pending, b...)

	for len(buf) > 0 {
		if buf[0] == 0x1b {
			n, ok := consumeEscape(buf)
			if !ok {
				s.stash(buf)
				return nil
			}
			buf = buf[n:]
			continue
		}

		switch buf[0] {
		case '\r':
			buf = buf[1:]
		case '\n':
			buf = buf[1:]
			s.printf("\n")
			if err := s.submit(ctx); err != nil {
				s.pending = s.pending[:0]
				return err
			}
		case 0x7f, 0x08:
			buf = buf[1:]
			s.backspace()
		default:
			if !utf8.FullRune(buf) {
				s.stash(buf)
				return nil
			}
			r, sz := utf8.DecodeRune(buf)
			buf = buf[sz:]
			if r == utf8.RuneError && sz == 1 {
				continue
			}
			if r < 0x20 {
				continue
			}
			if len(s.line) >= maxLine {
				continue
			}
			s.line = append(s.line, r)
			s.printf("%c", r)
		}
	}
	s.pending = s.pending[:0]
	return nil
}

// stash keeps unconsumed bytes for the next handleInput call.
func (s *Service) stash(rest []byte) {
	s.pending = append(s.pending[:0], rest...)
}

func (s *Service) backspace() {
	if len(s.line) == 0 {
		return
	}
	s.line = s.line[:len(s.line)-1]
	// Move left, blank the cell, move left again.
	s.printf("\x1b[D \x1b[D")
}

// submit executes the edited line and prints the next prompt. Only
// the exit command surfaces an error; everything else is reported to
// the console and the loop continues.
func (s *Service) submit(ctx context.Context) error {
	line := strings.TrimSpace(string(s.line))
	s.line = s.line[:0]
	if line == "" {
		s.prompt()
		return nil
	}

	args, err := shlex.Split(line)
	if err != nil {
		s.printf("shell: %v\n", err)
		s.prompt()
		return nil
	}
	if len(args) == 0 {
		s.prompt()
		return nil
	}

	cmd, ok := s.reg.resolve(args[0])
	if !ok {
		s.printf("unknown command: '%s' (try 'help')\n", args[0])
		s.prompt()
		return nil
	}

	if err := cmd.Run(ctx, s, args[1:]); err != nil {
		if errors.Is(err, ErrExit) {
			return err
		}
		s.log.WithField("command", cmd.Name).WithError(err).Debug("command failed")
		s.printf("%s: %v\n", cmd.Name, err)
	}
	s.prompt()
	return nil
}

func (s *Service) banner() {
	s.printf("+----------------------------------------+\n")
	s.printf("|       Orbital OS - Shell v0.1.0        |\n")
	s.printf("|    Type 'help' for available commands  |\n")
	s.printf("+----------------------------------------+\n")
}

func (s *Service) prompt() {
	s.printf("> ")
}

func (s *Service) printf(format string, args ...any) {
	fmt.Fprintf(s.k.TTY(), format, args...)
}
