package recurrence

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CacheEntry represents a cached expansion result
type CacheEntry struct {
	Result     Expansion
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// ExpansionCache caches expansion results keyed by their inputs
type ExpansionCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// CacheConfig holds configuration for the expansion cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before cleanup
	CleanupInterval time.Duration // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for expansion caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute, // Cache results for 15 minutes
	MaxEntries:      1000,             // Keep up to 1000 cached results
	CleanupInterval: 5 * time.Minute,  // Cleanup every 5 minutes
}

// NewExpansionCache creates a new expansion cache with the given configuration
func NewExpansionCache(config CacheConfig) *ExpansionCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	cache := &ExpansionCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanupLoop()

	return cache
}

// key hashes every input that influences an expansion
func (c *ExpansionCache) key(p Pattern, rng DateRange, limit int, overflow OverflowPolicy) string {
	hasher := sha256.New()

	writeInt := func(v int) {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(int64(v)))
		hasher.Write(buf[:])
	}
	writeOption := func(v int, ok bool) {
		if !ok {
			hasher.Write([]byte{0})
			return
		}
		hasher.Write([]byte{1})
		writeInt(v)
	}

	hasher.Write([]byte(p.Type))
	hasher.Write([]byte{0})
	writeInt(p.Interval)

	// Irrelevant modifiers are ignored by the engine, so they stay out of the key
	switch p.Type {
	case Weekly:
		var seen [7]bool
		for _, d := range p.DaysOfWeek {
			seen[d] = true
		}
		for _, s := range seen {
			if s {
				hasher.Write([]byte{1})
			} else {
				hasher.Write([]byte{0})
			}
		}
	case Monthly:
		writeOption(p.DayOfMonth.Get())
	case Yearly:
		writeOption(p.DayOfMonth.Get())
		writeOption(p.MonthOfYear.Get())
	}

	hasher.Write([]byte(rng.StartDate.Format(time.RFC3339Nano)))
	hasher.Write([]byte(rng.StartDate.Location().String()))
	if rng.EndDate != nil {
		hasher.Write([]byte(rng.EndDate.Format(time.RFC3339Nano)))
	} else {
		hasher.Write([]byte("open"))
	}

	writeInt(limit)
	writeInt(int(overflow))

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired.
// The returned expansion does not share memory with the cache.
func (c *ExpansionCache) Get(key string) (Expansion, bool) {
	c.mutex.RLock()
	entry, exists := c.entries[key]
	c.mutex.RUnlock()

	if !exists {
		return Expansion{}, false
	}

	// Check if entry has expired
	now := time.Now()
	if now.After(entry.ExpiresAt) {
		c.mutex.Lock()
		delete(c.entries, key)
		c.mutex.Unlock()
		return Expansion{}, false
	}

	c.mutex.Lock()
	entry.AccessedAt = now
	result := entry.Result.clone()
	c.mutex.Unlock()

	return result, true
}

// Set stores a result in the cache
func (c *ExpansionCache) Set(key string, result Expansion) {
	now := time.Now()

	entry := &CacheEntry{
		Result:     result.clone(),
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry

	// If we're over the limit, trigger cleanup
	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries and oldest entries if over limit.
// Callers must hold the write lock.
func (c *ExpansionCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	// Still over limit: evict least recently accessed entries
	type keyAccess struct {
		key        string
		accessedAt time.Time
	}

	keyAccessList := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	sort.Slice(keyAccessList, func(i, j int) bool {
		return keyAccessList[i].accessedAt.Before(keyAccessList[j].accessedAt)
	})

	entriesToRemove := len(c.entries) - c.maxEntries
	for i := 0; i < entriesToRemove; i++ {
		delete(c.entries, keyAccessList[i].key)
	}
}

// cleanupLoop runs periodic cleanup
func (c *ExpansionCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call more than once.
func (c *ExpansionCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
		c.mutex.Lock()
		c.entries = make(map[string]*CacheEntry)
		c.mutex.Unlock()
	})
}

// Stats returns cache statistics
func (c *ExpansionCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
	}
}

// CacheStats provides information about cache contents
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

func (e Expansion) clone() Expansion {
	dates := make([]time.Time, len(e.Dates))
	copy(dates, e.Dates)
	return Expansion{Dates: dates, Truncated: e.Truncated}
}
