package engine

import (
	"sync"
	"time"
)

// CriticalThresholdSeconds is the remaining time under which the countdown
// is flagged as critical.
const CriticalThresholdSeconds = 300

// CountdownState is a point-in-time view of a countdown.
type CountdownState struct {
	TotalSeconds     int  `json:"total_seconds"`
	RemainingSeconds int  `json:"remaining_seconds"`
	Critical         bool `json:"critical"`
	Running          bool `json:"running"`
	Expired          bool `json:"expired"`
}

// Countdown counts a bounded attempt down once per second and fires its
// expiry callback exactly once when it reaches zero. A Countdown is single-use:
// Start after the first call is ignored.
type Countdown struct {
	mu        sync.Mutex
	clock     Clock
	total     int
	remaining int
	started   bool
	running   bool
	expired   bool
	ticker    Ticker
	done      chan struct{}
	onExpire  func()
	onTick    func(remaining int)
}

// NewCountdown creates a countdown driven by clock.
func NewCountdown(clock Clock) *Countdown {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Countdown{clock: clock}
}

// OnTick registers a callback invoked after every decrement, outside the lock.
// It must be set before Start.
func (c *Countdown) OnTick(fn func(remaining int)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Start begins counting down from durationMinutes. A non-positive duration
// expires immediately without ticking.
func (c *Countdown) Start(durationMinutes int, onExpire func()) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.onExpire = onExpire

	if durationMinutes <= 0 {
		c.expired = true
		c.mu.Unlock()
		if onExpire != nil {
			onExpire()
		}
		return
	}

	c.total = durationMinutes * 60
	c.remaining = c.total
	c.running = true
	c.ticker = c.clock.NewTicker(time.Second)
	c.done = make(chan struct{})
	ticker, done := c.ticker, c.done
	c.mu.Unlock()

	go c.run(ticker, done)
}

func (c *Countdown) run(t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			if c.tick() {
				return
			}
		}
	}
}

// tick decrements once and reports whether the loop should exit.
func (c *Countdown) tick() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return true
	}
	c.remaining--
	remaining := c.remaining
	onTick := c.onTick

	if remaining > 0 {
		c.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return false
	}

	c.expired = true
	c.halt()
	onExpire := c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(0)
	}
	if onExpire != nil {
		onExpire()
	}
	return true
}

// halt cancels the repeating tick. Caller holds mu.
func (c *Countdown) halt() {
	if !c.running {
		return
	}
	c.running = false
	c.ticker.Stop()
	close(c.done)
}

// Stop cancels the tick. It is safe in any state and keeps the last value.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.halt()
	c.mu.Unlock()
}

// RemainingSeconds returns the last observed remaining time.
func (c *Countdown) RemainingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// TotalSeconds returns the configured duration in seconds.
func (c *Countdown) TotalSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Critical reports whether a started countdown is under the critical
// threshold. A countdown that never started is not critical.
func (c *Countdown) Critical() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.criticalLocked()
}

func (c *Countdown) criticalLocked() bool {
	return c.started && c.remaining < CriticalThresholdSeconds
}

// State returns a snapshot of the countdown.
func (c *Countdown) State() CountdownState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CountdownState{
		TotalSeconds:     c.total,
		RemainingSeconds: c.remaining,
		Critical:         c.criticalLocked(),
		Running:          c.running,
		Expired:          c.expired,
	}
}
