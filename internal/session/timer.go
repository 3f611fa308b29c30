package session

import (
	"sync"
	"time"
)

// Countdown is the whole-assessment clock. It must not tick before Start
// is called (the session gates that on the first question's synthesis
// completing) and delivers no callbacks after Stop, even if a tick was
// already in flight.
type Countdown struct {
	interval time.Duration
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	remaining int
	started   bool
	stopped   bool
	stopCh    chan struct{}
}

// NewCountdown creates a countdown of the given number of seconds.
// interval is the real-time length of one "second"; production uses
// time.Second, tests shrink it.
func NewCountdown(seconds int, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	return &Countdown{
		interval:  interval,
		remaining: seconds,
		onTick:    onTick,
		onExpire:  onExpire,
		stopCh:    make(chan struct{}),
	}
}

// Start begins ticking. Calling Start more than once is a no-op.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.stopped {
				c.mu.Unlock()
				return
			}
			c.remaining--
			remaining := c.remaining
			c.mu.Unlock()

			if remaining > 0 {
				c.onTick(remaining)
				continue
			}
			c.onTick(0)
			c.onExpire()
			return
		}
	}
}

// Stop halts the countdown. Idempotent; safe to call before Start.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Remaining returns the seconds left on the clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Started reports whether Start has been called.
func (c *Countdown) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
