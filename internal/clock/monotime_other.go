//go:build !linux

package clock

// monotonicNanos derives readings from the runtime monotonic clock on
// platforms without a CLOCK_MONOTONIC wrapper.
func monotonicNanos() int64 {
	return fallbackNanos()
}
