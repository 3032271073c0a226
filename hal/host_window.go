package hal

import (
	"context"
	"image"

	"github.com/hajimehoshi/ebiten/v2"

	"orbital/internal/buildinfo"
)

// WindowConfig controls the desktop window runner.
type WindowConfig struct {
	Title  string
	Width  int
	Height int
}

// RunWindow opens a desktop window that renders the framebuffer console
// and forwards keyboard input, then runs the system against it. Closing
// the window cancels the system context; the system stopping closes the
// window. Blocks until both are done.
func RunWindow(ctx context.Context, cfg WindowConfig, run func(context.Context, Machine) error) error {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 400
	}
	if cfg.Title == "" {
		cfg.Title = "Orbital OS (" + buildinfo.Short() + ")"
	}

	fb := newSurface(cfg.Width, cfg.Height)
	kbd := newWindowKeyboard()
	clock := newManualTime()
	m := &machine{
		console:  newTermConsole(fb),
		keyboard: kbd,
		time:     clock,
	}
	m.closers = append(m.closers, func() error {
		clock.close()
		return nil
	})
	defer m.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sysDone := make(chan error, 1)
	go func() { sysDone <- run(runCtx, m) }()

	g := &hostGame{
		fb:      fb,
		kbd:     kbd,
		clock:   clock,
		ctx:     ctx,
		sysDone: sysDone,
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width*2, cfg.Height*2)
	ebiten.SetTPS(60)

	gameErr := ebiten.RunGame(g)

	cancel()
	if !g.sysExit {
		g.sysErr = <-sysDone
	}

	if gameErr != nil {
		return gameErr
	}
	return g.sysErr
}

type hostGame struct {
	fb    *surface
	kbd   *windowKeyboard
	clock *manualTime

	ctx     context.Context
	sysDone chan error
	sysExit bool
	sysErr  error

	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []uint16
}

func (g *hostGame) Update() error {
	select {
	case err := <-g.sysDone:
		g.sysErr = err
		g.sysExit = true
		return ebiten.Termination
	case <-g.ctx.Done():
		return ebiten.Termination
	default:
	}

	g.kbd.poll()
	g.clock.step()
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.w, fb.h))
		g.scratch = make([]uint16, len(fb.pix))
		g.fbImg = ebiten.NewImage(fb.w, fb.h)
	}

	fb.snapshot(g.scratch)

	dst := g.img.Pix
	for i, p := range g.scratch {
		r, gg, b := unpackRGB565(p)
		j := i * 4
		dst[j+0] = r
		dst[j+1] = gg
		dst[j+2] = b
		dst[j+3] = 0xFF
	}

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.fb.w, g.fb.h
}
