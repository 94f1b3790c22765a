package license

import (
	"sync"
	"time"
)

// CacheEntry is a verified outcome together with the instant it was stored.
// Staleness is a read-time check against the entry age; entries are never
// proactively deleted.
type CacheEntry struct {
	Outcome  VerificationOutcome
	StoredAt time.Time
}

// Age returns how old the entry is at the given instant.
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// resultCache is the two-tier store of verified outcomes, keyed by the
// identity derived from the license key. The fresh slot answers within
// FetchTTL; the previous slot retains the last known good outcome for
// PreviousTTL and is refreshed on every successful verification.
//
// The mutex guards map access only. Deduplicating concurrent producer
// invocations is the single-flight group's job; no lock is held across the
// network call.
type resultCache struct {
	mu       sync.RWMutex
	fresh    map[string]CacheEntry
	previous map[string]CacheEntry
	now      func() time.Time

	hitCount  int64
	missCount int64
}

func newResultCache(now func() time.Time) *resultCache {
	if now == nil {
		now = time.Now
	}
	return &resultCache{
		fresh:    make(map[string]CacheEntry),
		previous: make(map[string]CacheEntry),
		now:      now,
	}
}

// WithFresh returns the fresh entry for key if it is younger than ttl.
// Otherwise it invokes produce exactly once; a non-nil outcome is stored in
// both tiers and returned. A nil outcome or an error from produce leaves any
// existing entries untouched, so a still-valid last known good value is
// never poisoned by a failed verification.
func (c *resultCache) WithFresh(key string, ttl time.Duration, produce func() (*VerificationOutcome, error)) (*CacheEntry, error) {
	c.mu.RLock()
	entry, ok := c.fresh[key]
	now := c.now()
	c.mu.RUnlock()

	if ok && entry.Age(now) < ttl {
		c.mu.Lock()
		c.hitCount++
		c.mu.Unlock()
		return &entry, nil
	}

	outcome, err := produce()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.missCount++

	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, nil
	}

	stored := CacheEntry{Outcome: *outcome, StoredAt: c.now()}
	c.fresh[key] = stored
	c.previous[key] = stored
	return &stored, nil
}

// Previous returns the last known good entry for key, regardless of age.
// Interpreting its staleness is the resolver's job.
func (c *resultCache) Previous(key string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.previous[key]
	return entry, ok
}

// Invalidate drops the fresh slot for key, forcing the next resolution to
// contact the authority. The previous slot is kept so fallback remains
// possible if that attempt fails.
func (c *resultCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fresh, key)
}

// Stats returns hit/miss counters for metrics reporting.
func (c *resultCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hitCount, c.missCount
}
