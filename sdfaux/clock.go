package sdfaux

import "time"

// fpsSmoothing is the weight of the newest frame in the FPS moving average.
const fpsSmoothing = 0.1

// Clock tracks scene time and a smoothed frame rate.
type Clock struct {
	now   func() time.Time
	start time.Time
	last  time.Time
	delta time.Duration
	fps   float64
	frame int
}

// NewClock returns a clock starting now.
func NewClock() *Clock {
	return newClock(time.Now)
}

func newClock(now func() time.Time) *Clock {
	t := now()
	return &Clock{now: now, start: t, last: t}
}

// Tick marks the end of a frame.
func (c *Clock) Tick() {
	t := c.now()
	c.delta = t.Sub(c.last)
	c.last = t
	c.frame++
	if c.delta <= 0 {
		return
	}
	inst := float64(time.Second) / float64(c.delta)
	if c.fps == 0 {
		c.fps = inst
	} else {
		c.fps += fpsSmoothing * (inst - c.fps)
	}
}

// Time returns seconds since the clock started, as of the last Tick.
func (c *Clock) Time() float32 { return float32(c.last.Sub(c.start).Seconds()) }

// Delta returns the duration of the last frame.
func (c *Clock) Delta() time.Duration { return c.delta }

// FPS returns the smoothed frame rate.
func (c *Clock) FPS() float64 { return c.fps }

// Frame returns the number of ticks.
func (c *Clock) Frame() int { return c.frame }
