package cache

import (
	"sync"
	"time"
)

// ResolutionCache is an in-process L1 cache for resolved dimension IDs.
// Dimension rows are append-mostly and surrogate IDs are never reused, so a
// cached mapping can only go stale by eviction, never by becoming wrong.
type ResolutionCache struct {
	securities map[string]secEntry
	times      map[int64]timeEntry // keyed by ts.UnixNano()
	secMu      sync.RWMutex
	timeMu     sync.RWMutex
	ttl        time.Duration
}

type secEntry struct {
	id       int64
	cachedAt time.Time
}

type timeEntry struct {
	id       int64
	cachedAt time.Time
}

// NewResolutionCache creates a new in-memory resolution cache. The TTL
// bounds memory growth for the time map; a zero TTL disables expiry.
func NewResolutionCache(ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{
		securities: make(map[string]secEntry),
		times:      make(map[int64]timeEntry),
		ttl:        ttl,
	}
}

// GetSecurityID retrieves a cached security ID for a normalized symbol
func (c *ResolutionCache) GetSecurityID(symbol string) (int64, bool) {
	c.secMu.RLock()
	defer c.secMu.RUnlock()

	entry, exists := c.securities[symbol]
	if !exists {
		return 0, false
	}
	if c.ttl > 0 && time.Since(entry.cachedAt) > c.ttl {
		return 0, false
	}
	return entry.id, true
}

// SetSecurityID caches a resolved security ID
func (c *ResolutionCache) SetSecurityID(symbol string, id int64) {
	c.secMu.Lock()
	defer c.secMu.Unlock()

	c.securities[symbol] = secEntry{id: id, cachedAt: time.Now()}
}

// InvalidateSecurity removes a symbol from the cache
func (c *ResolutionCache) InvalidateSecurity(symbol string) {
	c.secMu.Lock()
	defer c.secMu.Unlock()

	delete(c.securities, symbol)
}

// GetTimeID retrieves a cached time ID for an instant
func (c *ResolutionCache) GetTimeID(ts time.Time) (int64, bool) {
	c.timeMu.RLock()
	defer c.timeMu.RUnlock()

	entry, exists := c.times[ts.UTC().UnixNano()]
	if !exists {
		return 0, false
	}
	if c.ttl > 0 && time.Since(entry.cachedAt) > c.ttl {
		return 0, false
	}
	return entry.id, true
}

// SetTimeID caches a resolved time ID
func (c *ResolutionCache) SetTimeID(ts time.Time, id int64) {
	c.timeMu.Lock()
	defer c.timeMu.Unlock()

	c.times[ts.UTC().UnixNano()] = timeEntry{id: id, cachedAt: time.Now()}
}
