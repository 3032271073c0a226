// Package terminal moves console messages from the kernel's console
// ring onto the machine console. It is the single ring consumer the
// SPSC contract requires; everything else writes through the kernel
// TTY.
package terminal

import (
	"context"

	"github.com/sirupsen/logrus"

	"orbital/hal"
	"orbital/kernel"
)

// Service drains the console ring onto a machine console.
type Service struct {
	ring *kernel.Ring
	wake <-chan struct{}
	out  hal.Console
	log  logrus.FieldLogger
}

// New builds the service for kernel k rendering to out.
func New(k *kernel.Kernel, out hal.Console, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		ring: k.Console(),
		wake: k.TTY().Readable(),
		out:  out,
		log:  log,
	}
}

// Run pumps messages until ctx is done, parking on the readable
// signal between bursts so an idle console costs nothing. On
// shutdown it drains once more, so output written just before the
// cancel still reaches the screen.
func (s *Service) Run(ctx context.Context) error {
	for {
		s.drain()
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Service) drain() {
	for {
		msg, err := s.ring.Dequeue()
		if err != nil {
			return
		}
		switch msg.ID {
		case kernel.MsgConsoleWrite:
			if _, err := s.out.Write(msg.Bytes()); err != nil {
				s.log.WithError(err).Warn("console write failed")
			}
		case kernel.MsgConsoleClear:
			s.out.Clear()
		default:
			s.log.WithField("id", msg.ID).Debug("dropping unknown console message")
		}
	}
}
