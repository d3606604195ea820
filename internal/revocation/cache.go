package revocation

import "sync"

// StatusCache is the SLA-aware cache consumed by check_revocation_status
// (spec.md §4.5 "SLA discipline"): entries expire after a caller-supplied
// TTL, and a revocation write invalidates the entry immediately.
type StatusCache interface {
	Get(did string, maxAgeMS int64, nowUnixMS int64) (State, bool)
	Put(did string, state State, nowUnixMS int64)
	Invalidate(did string)
	Close() error
}

type cacheEntry struct {
	state    State
	cachedAt int64 // unix milliseconds
}

// MemoryStatusCache is the default in-process StatusCache.
type MemoryStatusCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewMemoryStatusCache() *MemoryStatusCache {
	return &MemoryStatusCache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached state only if it was written within maxAgeMS of
// nowUnixMS; otherwise it reports a miss so the caller performs a fresh
// check (spec.md §4.5: "cache whose effective TTL is the tier's
// max_propagation_latency_ms").
func (c *MemoryStatusCache) Get(did string, maxAgeMS int64, nowUnixMS int64) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[did]
	if !ok {
		return State{}, false
	}
	if nowUnixMS-entry.cachedAt > maxAgeMS {
		return State{}, false
	}
	return entry.state, true
}

func (c *MemoryStatusCache) Put(did string, state State, nowUnixMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[did] = cacheEntry{state: state, cachedAt: nowUnixMS}
}

func (c *MemoryStatusCache) Invalidate(did string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, did)
}

func (c *MemoryStatusCache) Close() error { return nil }

// nowMS is a small helper for converting a Clock's unix-seconds reading
// into the millisecond resolution the SLA table is expressed in.
func nowMS(unixSeconds int64) int64 { return unixSeconds * 1000 }
