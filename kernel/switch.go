package kernel

import (
	"github.com/sirupsen/logrus"

	"orbital/arch"
)

// contextSwitch performs one full transition between processes. The
// outgoing context is captured from the CPU and saved; the outgoing
// process drops back to Ready unless the table already retired it.
// The incoming context is validated before it is installed, because
// installing a corrupt context would be unrecoverable; a process
// that fails validation is retired on the spot. With no incoming
// process the CPU halts until the next interrupt.
func (k *Kernel) contextSwitch(prev, next ProcessID) error {
	if prev != NoProcess {
		ctx := k.cpu.Capture()
		if err := k.table.SetContext(prev, ctx); err == nil {
			if st, err := k.table.Status(prev); err == nil && st == StatusRunning {
				k.table.SetStatus(prev, StatusReady)
			}
		}
	}

	if next == NoProcess {
		k.cpu.Halt()
		return nil
	}

	ctx, err := k.table.Context(next)
	if err != nil {
		return err
	}
	if err := arch.Validate(&ctx); err != nil {
		k.log.WithFields(logrus.Fields{
			"pid":     next,
			"context": ctx.String(),
		}).WithError(err).Error("refusing to install corrupt context")
		k.table.Exit(next, int64(ErrnoError))
		return err
	}
	if !ctx.InterruptsEnabled() {
		// Suspicious but survivable; the process would never be
		// preempted again on real hardware.
		k.log.WithField("pid", next).Warn("installing context with interrupts disabled")
	}
	k.cpu.Install(ctx)
	k.table.SetStatus(next, StatusRunning)
	return nil
}
