package filesystem

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// readTracker retains recently completed reads for dashboard reporting.
// Reads are keyed by their sequence number and evicted after TTL, so the
// tracker length is the read activity within the trailing window.
type readTracker struct {
	cache *ttlcache.Cache[int64, time.Time]
}

// newReadTracker returns a pointer to a new, started [readTracker].
// You must call Stop() once all work is complete.
func newReadTracker(size uint64, ttl time.Duration) *readTracker {
	t := &readTracker{
		cache: ttlcache.New(
			ttlcache.WithTTL[int64, time.Time](ttl),
			ttlcache.WithCapacity[int64, time.Time](size),
			ttlcache.WithDisableTouchOnHit[int64, time.Time](),
		),
	}
	go t.cache.Start()

	return t
}

// Record notes a completed read under its sequence number.
func (t *readTracker) Record(seq int64) {
	t.cache.Set(seq, time.Now(), ttlcache.DefaultTTL)
}

// Recent returns the amount of reads still within the tracking window.
func (t *readTracker) Recent() int {
	return t.cache.Len()
}

// Stop halts expiry processing for the underlying cache.
func (t *readTracker) Stop() {
	t.cache.Stop()
}
