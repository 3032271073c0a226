package hal

import "sync"

// surface is the window backend's pixel store: one RGB565 word per
// pixel, row-major. The screen terminal draws into it while the
// window blit snapshots it from the render goroutine, so every access
// holds the lock.
type surface struct {
	mu   sync.Mutex
	w, h int
	pix  []uint16
}

func newSurface(w, h int) *surface {
	return &surface{w: w, h: h, pix: make([]uint16, w*h)}
}

func (s *surface) set(x, y int, p uint16) {
	if x < 0 || y < 0 || x >= s.w || y >= s.h {
		return
	}
	s.mu.Lock()
	s.pix[y*s.w+x] = p
	s.mu.Unlock()
}

// fill paints the rectangle with p, clipped to the surface.
func (s *surface) fill(x, y, w, h int, p uint16) {
	x0 := clampInt(x, 0, s.w)
	y0 := clampInt(y, 0, s.h)
	x1 := clampInt(x+w, 0, s.w)
	y1 := clampInt(y+h, 0, s.h)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	s.mu.Lock()
	for py := y0; py < y1; py++ {
		row := s.pix[py*s.w : (py+1)*s.w]
		for px := x0; px < x1; px++ {
			row[px] = p
		}
	}
	s.mu.Unlock()
}

// scrollUp moves the image up by n rows. The freed band at the bottom
// keeps its stale pixels; the caller paints it.
func (s *surface) scrollUp(n int) {
	if n <= 0 || n >= s.h {
		return
	}
	s.mu.Lock()
	copy(s.pix[:(s.h-n)*s.w], s.pix[n*s.w:])
	s.mu.Unlock()
}

// snapshot copies the current pixels into dst for the blit.
func (s *surface) snapshot(dst []uint16) {
	s.mu.Lock()
	copy(dst, s.pix)
	s.mu.Unlock()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
