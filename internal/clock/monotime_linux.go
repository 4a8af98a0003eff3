//go:build linux

package clock

import "golang.org/x/sys/unix"

// monotonicNanos reads CLOCK_MONOTONIC directly, keeping tick arithmetic
// immune to wall clock adjustments.
func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackNanos()
	}

	return unix.TimespecToNsec(ts)
}
