package game

import "time"

// Ticker drives the countdown once per second.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type clockTicker struct {
	ticker *time.Ticker
}

func (that clockTicker) C() <-chan time.Time {
	return that.ticker.C
}

func (that clockTicker) Stop() {
	that.ticker.Stop()
}

// SecondTicker is the default Ticker factory.
func SecondTicker() Ticker {
	return clockTicker{ticker: time.NewTicker(time.Second)}
}
