// Package jitterticker spreads periodic work so that many probes started
// together do not hit the endpoint at the same instant.
package jitterticker

import (
	"math/rand"
	"sync"
	"time"
)

// Ticker delivers ticks on C like a time.Ticker, but every period is
// interval plus a random duration in [0, maxJitter). A tick is dropped when
// nobody is receiving.
type Ticker struct {
	C <-chan time.Time

	interval  time.Duration
	maxJitter time.Duration
	rnd       *rand.Rand

	quit     chan struct{}
	quitOnce sync.Once
	stopped  chan struct{}
}

// NewTicker starts a ticker. It panics if interval is not positive or
// maxJitter is negative.
func NewTicker(interval, maxJitter time.Duration) *Ticker {
	switch {
	case interval <= 0:
		panic("jitterticker: non-positive interval")
	case maxJitter < 0:
		panic("jitterticker: negative max jitter")
	}

	ticks := make(chan time.Time)
	t := &Ticker{
		C:         ticks,
		interval:  interval,
		maxJitter: maxJitter,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go t.run(ticks)

	return t
}

func (t *Ticker) run(ticks chan<- time.Time) {
	defer close(t.stopped)
	defer close(ticks)

	timer := time.NewTimer(t.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-t.quit:
			return
		case <-timer.C:
		}

		select {
		case <-t.quit:
			return
		case ticks <- time.Now():
		default:
		}

		timer.Reset(t.nextDelay())
	}
}

// nextDelay is only called from run, rnd is not shared.
func (t *Ticker) nextDelay() time.Duration {
	if t.maxJitter == 0 {
		return t.interval
	}
	return t.interval + time.Duration(t.rnd.Int63n(int64(t.maxJitter)))
}

// Stop ends the ticker and closes C once the goroutine has exited.
// Calling it again is a no-op.
func (t *Ticker) Stop() {
	t.quitOnce.Do(func() { close(t.quit) })
	<-t.stopped
}
