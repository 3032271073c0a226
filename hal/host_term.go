package hal

import (
	"image/color"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// termConsole renders console bytes onto the surface through a
// tinyterm terminal. Clear rebuilds the terminal so scroll state and
// cursor go back to the top.
type termConsole struct {
	mu sync.Mutex
	s  *surface
	d  *surfaceDisplay
	t  *tinyterm.Terminal
}

func newTermConsole(s *surface) *termConsole {
	c := &termConsole{s: s, d: &surfaceDisplay{s: s}}
	c.reset()
	return c
}

func (c *termConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.t.Write(p)
	if err != nil {
		return n, err
	}
	c.t.Display()
	return n, nil
}

func (c *termConsole) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *termConsole) reset() {
	c.t = tinyterm.NewTerminal(c.d)
	c.t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	c.s.fill(0, 0, c.s.w, c.s.h, 0)
}

// surfaceDisplay adapts the surface to the tinyterm displayer.
type surfaceDisplay struct {
	s *surface
}

func (d *surfaceDisplay) Size() (x, y int16) {
	return int16(d.s.w), int16(d.s.h)
}

func (d *surfaceDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.s.set(int(x), int(y), packRGB565(c.R, c.G, c.B))
}

func (d *surfaceDisplay) Display() error { return nil }

func (d *surfaceDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	d.s.fill(int(x), int(y), int(width), int(height), packRGB565(c.R, c.G, c.B))
	return nil
}

func (d *surfaceDisplay) ScrollUp(lines int16, bg color.RGBA) error {
	if lines <= 0 {
		return nil
	}
	n := int(lines)
	if n >= d.s.h {
		return d.FillRectangle(0, 0, int16(d.s.w), int16(d.s.h), bg)
	}
	d.s.scrollUp(n)
	d.s.fill(0, d.s.h-n, d.s.w, n, packRGB565(bg.R, bg.G, bg.B))
	return nil
}

func (d *surfaceDisplay) SetScroll(line int16) {
	_ = line
}

func (d *surfaceDisplay) SetRotation(rotation drivers.Rotation) error {
	_ = rotation
	return nil
}
