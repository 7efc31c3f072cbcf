package app

import "time"

// Ticker is the periodic signal driving a session countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every interval.
type TickerFactory func(interval time.Duration) Ticker

// NewTicker is the production TickerFactory backed by time.Ticker.
func NewTicker(interval time.Duration) Ticker {
	return realTicker{t: time.NewTicker(interval)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
