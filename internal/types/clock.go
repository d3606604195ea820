package types

import "time"

func nowUnix() int64 { return time.Now().Unix() }

// FakeClock is a settable Clock for deterministic tests, mirroring the
// injectable-clock idiom called for in spec.md §9.
type FakeClock struct {
	t int64
}

// NewFakeClock creates a FakeClock fixed at the given Unix-seconds instant.
func NewFakeClock(unixSeconds int64) *FakeClock {
	return &FakeClock{t: unixSeconds}
}

func (c *FakeClock) Now() int64 { return c.t }

// Advance moves the fake clock forward by the given number of seconds
// (negative values move it backward, useful for future-dated-proof tests).
func (c *FakeClock) Advance(seconds int64) { c.t += seconds }

// Set pins the fake clock to an absolute instant.
func (c *FakeClock) Set(unixSeconds int64) { c.t = unixSeconds }
