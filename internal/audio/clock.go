package audio

import "time"

// Clock is the output clock: it advances only while the output runs and
// freezes while suspended. It is not safe for concurrent use; the Engine
// guards it.
type Clock struct {
	now     func() time.Time
	base    time.Duration
	since   time.Time
	running bool
}

// NewClock returns a running clock reading from now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, since: now(), running: true}
}

// Now returns the running time of the output.
func (c *Clock) Now() time.Duration {
	if !c.running {
		return c.base
	}
	return c.base + c.now().Sub(c.since)
}

// Suspend freezes the clock.
func (c *Clock) Suspend() {
	if !c.running {
		return
	}
	c.base = c.Now()
	c.running = false
}

// Resume restarts a suspended clock.
func (c *Clock) Resume() {
	if c.running {
		return
	}
	c.since = c.now()
	c.running = true
}

// Running reports whether the clock advances.
func (c *Clock) Running() bool {
	return c.running
}
