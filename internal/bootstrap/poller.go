package bootstrap

import (
	"sync"
	"time"
)

// pollHandle controls one recurring effect.
type pollHandle interface {
	Stop()
}

// tickerPoller runs tick immediately, then on every interval, until
// stopped. Ticks run sequentially on one goroutine: a new poll is never
// issued before the previous handler has returned, so responses for a
// given job are applied in request order.
type tickerPoller struct {
	stop chan struct{}
	once sync.Once
}

// startTickerPoller launches the polling goroutine.
func startTickerPoller(interval time.Duration, tick func()) pollHandle {
	p := &tickerPoller{stop: make(chan struct{})}

	go func() {
		tick()

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-t.C:
				tick()
			}
		}
	}()

	return p
}

// Stop ends the polling goroutine. Stopping twice is safe.
func (p *tickerPoller) Stop() {
	p.once.Do(func() { close(p.stop) })
}
