package app

import "gopower/domain/power"

// CacheStats counts lookups against a SampleSizeCache.
type CacheStats struct {
	Hits    int
	Misses  int
	Entries int
}

// SampleSizeCache memoizes power estimates by sample size for a single
// search. Entries are written once and never overwritten. Not safe for
// concurrent use; each search owns its own instance.
type SampleSizeCache struct {
	entries map[int]power.Estimate
	hits    int
	misses  int
}

// NewSampleSizeCache creates an empty cache.
func NewSampleSizeCache() *SampleSizeCache {
	return &SampleSizeCache{
		entries: make(map[int]power.Estimate),
	}
}

// Get returns the stored estimate for sampleSize and counts the lookup.
func (c *SampleSizeCache) Get(sampleSize int) (power.Estimate, bool) {
	p, ok := c.entries[sampleSize]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return p, ok
}

// Put stores p for sampleSize. It returns false and keeps the existing value
// if the size is already cached.
func (c *SampleSizeCache) Put(sampleSize int, p power.Estimate) bool {
	if _, exists := c.entries[sampleSize]; exists {
		return false
	}
	c.entries[sampleSize] = p
	return true
}

// Len returns the number of cached sample sizes.
func (c *SampleSizeCache) Len() int {
	return len(c.entries)
}

// Stats returns a snapshot of the lookup counters.
func (c *SampleSizeCache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.entries),
	}
}
