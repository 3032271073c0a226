package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type windowKeyboard struct {
	ch chan KeyEvent
}

func newWindowKeyboard() *windowKeyboard {
	return &windowKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *windowKeyboard) Events() <-chan KeyEvent { return k.ch }

// poll runs on the frame loop. Text arrives through AppendInputChars,
// editing and navigation keys through just-pressed transitions.
func (k *windowKeyboard) poll() {
	emit := func(ev KeyEvent) {
		select {
		case k.ch <- ev:
		default:
		}
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		emit(KeyEvent{Press: true, Rune: r})
	}

	specials := []struct {
		key  ebiten.Key
		code KeyCode
	}{
		{ebiten.KeyEnter, KeyEnter},
		{ebiten.KeyBackspace, KeyBackspace},
		{ebiten.KeyEscape, KeyEscape},
		{ebiten.KeyTab, KeyTab},
		{ebiten.KeyArrowUp, KeyUp},
		{ebiten.KeyArrowDown, KeyDown},
		{ebiten.KeyArrowLeft, KeyLeft},
		{ebiten.KeyArrowRight, KeyRight},
	}
	for _, s := range specials {
		if inpututil.IsKeyJustPressed(s.key) {
			emit(KeyEvent{Code: s.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(s.key) {
			emit(KeyEvent{Code: s.code, Press: false})
		}
	}
}
