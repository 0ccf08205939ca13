package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// countdown owns the one-second ticker of a running round. It is not safe
// for concurrent use; the engine guards it with its own mutex.
//
// Every start bumps the generation. Ticks carry the generation they were
// started with so that a tick racing with cancel can be recognised as stale.
type countdown struct {
	clock clockwork.Clock
	gen   uint64
	stop  func()
}

func newCountdown(clock clockwork.Clock) *countdown {
	return &countdown{clock: clock}
}

// start cancels any running ticker and starts a new one. onTick runs on the
// ticker goroutine; returning false ends the goroutine.
func (c *countdown) start(onTick func(gen uint64) bool) {
	c.cancel()
	c.gen++
	gen := c.gen

	ticker := c.clock.NewTicker(time.Second)
	done := make(chan struct{})
	c.stop = func() {
		ticker.Stop()
		close(done)
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				if !onTick(gen) {
					return
				}
			}
		}
	}()
}

// cancel stops the running ticker, if any. Safe to call repeatedly.
func (c *countdown) cancel() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

// current reports whether gen belongs to the running ticker.
func (c *countdown) current(gen uint64) bool {
	return c.stop != nil && gen == c.gen
}

func (c *countdown) running() bool {
	return c.stop != nil
}
