// Command orbital boots the simulated machine. The default front end
// is a desktop window rendering the screen terminal; -serial takes
// over the controlling terminal in raw mode, and -headless runs on
// plain stdio with a fixed timebase, which is what scripts and CI
// use.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"orbital/app"
	"orbital/hal"
	"orbital/internal/buildinfo"
	"orbital/kernel"
)

func main() {
	var (
		headless = flag.Bool("headless", false, "Run on stdio without a window.")
		serial   = flag.Bool("serial", false, "Run on the controlling terminal in raw mode.")
		hz       = flag.Int("hz", kernel.TickHz, "Timer rate in ticks per second (headless and serial modes).")
		ticks    = flag.Uint64("ticks", 0, "Power off after N ticks in headless mode (0 = run forever).")
		quantum  = flag.Uint("quantum", kernel.DefaultQuantum, "Scheduler time slice in ticks.")
		preempt  = flag.Bool("preempt", false, "Schedule preemptively instead of cooperatively.")
		logLevel = flag.String("log", "info", "Log level: trace, debug, info, warn, error.")
		version  = flag.Bool("version", false, "Print build info and exit.")
	)
	var images []string
	flag.Func("load", "Load an ELF image at boot; repeat for more.", func(path string) error {
		images = append(images, path)
		return nil
	})
	flag.Parse()

	if *version {
		fmt.Println(buildinfo.Line())
		return
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orbital:", err)
		os.Exit(2)
	}
	logger.SetLevel(level)

	mode := kernel.ModeCooperative
	if *preempt {
		mode = kernel.ModePreemptive
	}
	cfg := app.Config{
		Mode:    mode,
		Quantum: uint32(*quantum),
		Images:  images,
		Log:     logger,
	}
	boot := func(ctx context.Context, m hal.Machine) error {
		sys, err := app.NewSystem(m, cfg)
		if err != nil {
			return err
		}
		return sys.Run(ctx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.WithFields(logrus.Fields{
		"version": buildinfo.Short(),
		"mode":    mode,
	}).Info("orbital booting")

	switch {
	case *headless:
		err = hal.RunHeadless(ctx, hal.HeadlessConfig{Hz: *hz, Ticks: *ticks}, boot)
	case *serial:
		err = hal.RunSerial(ctx, *hz, boot)
	default:
		err = hal.RunWindow(ctx, hal.WindowConfig{}, boot)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("orbital failed")
		os.Exit(1)
	}
}
