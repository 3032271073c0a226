package hal

import (
	"sync"
	"time"
)

// tickerTime drives the tick channel from a wall-clock ticker. A non-zero
// budget closes the channel after that many ticks, which the consumer
// treats as power-off.
type tickerTime struct {
	ch   chan uint64
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newTickerTime(hz int, budget uint64) *tickerTime {
	if hz <= 0 {
		hz = 100
	}
	t := &tickerTime{
		ch:   make(chan uint64, 1024),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(hz, budget)
	return t
}

func (t *tickerTime) Ticks() <-chan uint64 { return t.ch }

func (t *tickerTime) run(hz int, budget uint64) {
	defer close(t.done)
	defer close(t.ch)

	tick := time.NewTicker(time.Second / time.Duration(hz))
	defer tick.Stop()

	var seq uint64
	for {
		select {
		case <-t.stop:
			return
		case <-tick.C:
			seq++
			select {
			case t.ch <- seq:
			default:
			}
			if budget > 0 && seq >= budget {
				return
			}
		}
	}
}

func (t *tickerTime) close() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}

// manualTime is stepped by the window frame loop. Wall time since the
// previous step is converted into whole ticks so the tick rate stays
// stable regardless of the frame rate.
type manualTime struct {
	ch  chan uint64
	seq uint64

	last time.Time
	acc  time.Duration
}

func newManualTime() *manualTime {
	return &manualTime{ch: make(chan uint64, 1024)}
}

func (t *manualTime) Ticks() <-chan uint64 { return t.ch }

func (t *manualTime) step() {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.emit(1)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	const tickDur = 10 * time.Millisecond
	ticks := uint64(t.acc / tickDur)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % tickDur
	t.emit(ticks)
}

func (t *manualTime) emit(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}

func (t *manualTime) close() { close(t.ch) }
