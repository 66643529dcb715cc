package models

// Clock is the simulated tick counter shared by every component.
// Time only moves forward through Advance; Set is used when a saved game is loaded.
type Clock struct {
	tick int
}

// NewClock returns a clock at tick zero
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current tick
func (c *Clock) Now() int {
	return c.tick
}

// Advance moves the clock one tick forward and returns the new tick
func (c *Clock) Advance() int {
	c.tick++
	return c.tick
}

// Set overwrites the current tick
func (c *Clock) Set(tick int) {
	c.tick = tick
}
