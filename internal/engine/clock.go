package engine

import "time"

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tests inject a fake to drive ticks by hand.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// SystemClock is the wall-clock implementation backed by time.Ticker.
type SystemClock struct{}

// NewTicker starts a time.Ticker with period d.
func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
