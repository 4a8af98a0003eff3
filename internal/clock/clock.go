// Package clock implements the tick counter behind all time reporting.
//
// The counter advances at a fixed rate (HZ ticks per second) on top of the
// host monotonic clock, so readings never move backwards. Like the kernel
// counter it models, a fresh counter starts five minutes short of the 32-bit
// wrap point, which keeps wrap arithmetic exercised in everyday use rather
// than only after weeks of uptime.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// DefaultHz is the tick rate used when none was configured.
const DefaultHz = 100

// wrapLead is how far before the 32-bit wrap point a fresh counter starts.
const wrapLead = 300 * time.Second

const nanosPerSecond = uint64(time.Second)

var errInvalidArgument = errors.New("invalid argument")

// processEpoch anchors the portable fallback readings.
var processEpoch = time.Now()

// Clock is a monotonic tick counter with a fixed tick rate.
// It is read-only after construction and safe for concurrent use.
type Clock struct {
	hz    uint64
	base  uint64
	epoch int64
}

// New returns a pointer to a new [Clock] ticking hz times per second.
func New(hz uint64) (*Clock, error) {
	if hz == 0 {
		return nil, fmt.Errorf("%w: need a tick rate > 0", errInvalidArgument)
	}

	return &Clock{
		hz:    hz,
		base:  (1 << 32) - uint64(wrapLead/time.Second)*hz,
		epoch: monotonicNanos(),
	}, nil
}

// Hz returns the tick rate in ticks per second.
func (c *Clock) Hz() uint64 {
	return c.hz
}

// Jiffies returns the current tick reading.
func (c *Clock) Jiffies() uint64 {
	elapsed := monotonicNanos() - c.epoch
	if elapsed < 0 {
		elapsed = 0
	}

	return c.base + c.ticks(uint64(elapsed))
}

// Seconds converts a tick count into whole elapsed seconds.
func (c *Clock) Seconds(ticks uint64) uint64 {
	return ticks / c.hz
}

// ticks converts elapsed nanoseconds into elapsed tick counts.
// Seconds and remainder convert separately, so large uptimes cannot overflow.
func (c *Clock) ticks(nanos uint64) uint64 {
	return (nanos/nanosPerSecond)*c.hz + (nanos%nanosPerSecond)*c.hz/nanosPerSecond
}

// fallbackNanos derives a reading from the runtime monotonic clock.
func fallbackNanos() int64 {
	return int64(time.Since(processEpoch))
}
