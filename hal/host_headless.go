package hal

import (
	"context"
	"os"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Hz    int
	Ticks uint64
}

// RunHeadless runs the system on a machine with a stdio console and no
// keyboard. A non-zero tick budget powers the machine off after that
// many ticks by closing the tick channel.
func RunHeadless(ctx context.Context, cfg HeadlessConfig, run func(context.Context, Machine) error) error {
	clock := newTickerTime(cfg.Hz, cfg.Ticks)
	m := &machine{
		console:  newStdioConsole(os.Stdout),
		keyboard: newNullKeyboard(),
		time:     clock,
	}
	m.closers = append(m.closers, func() error {
		clock.close()
		return nil
	})
	defer m.Close()

	return run(ctx, m)
}
