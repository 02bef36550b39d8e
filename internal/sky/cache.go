package sky

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/jonboulle/clockwork"

	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/metrics"
)

// Config holds snapshot cache configuration loaded from environment
// variables.
type Config struct {
	Step        time.Duration // snapshot interval (default: 1s)
	Horizon     time.Duration // how far ahead to cache (default: 30s)
	GracePeriod time.Duration // dataset cutover grace period (default: 30s)
	Buffer      time.Duration // keep entries this long past expiration (default: 60s)
}

// cacheEntry wraps a snapshot with generation metadata.
type cacheEntry struct {
	snapshot    *Snapshot
	generatedAt time.Time
}

// SnapshotCache is an in-memory cache of sky snapshots with a rolling
// window. Safe for concurrent use by multiple goroutines. The clock is
// injected so the maintenance cadence is testable.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[time.Time]*cacheEntry

	config   Config
	computer *Computer
	store    *elements.Store
	clock    clockwork.Clock
	logger   *slog.Logger

	// Dataset the cache was built from, for change detection.
	currentFetchedAt time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	inGracePeriod atomic.Bool
}

// NewSnapshotCache creates a snapshot cache.
func NewSnapshotCache(config Config, computer *Computer, store *elements.Store, clock clockwork.Clock, logger *slog.Logger) *SnapshotCache {
	logger.Info("sky cache initialized",
		"step_seconds", config.Step.Seconds(),
		"horizon_seconds", config.Horizon.Seconds(),
		"buffer_seconds", config.Buffer.Seconds(),
		"grace_period_seconds", config.GracePeriod.Seconds(),
	)

	return &SnapshotCache{
		entries:  make(map[time.Time]*cacheEntry),
		config:   config,
		computer: computer,
		store:    store,
		clock:    clock,
		logger:   logger,
	}
}

// RoundToStep rounds a timestamp down to the nearest step boundary so
// lookups hit consistently. Always converts to UTC first, SGP4 and GMST
// expect UTC components.
func (c *SnapshotCache) RoundToStep(t time.Time) time.Time {
	return t.UTC().Truncate(c.config.Step)
}

// Get returns the snapshot for the given timestamp, or nil if not cached.
// The timestamp is rounded to the step boundary.
func (c *SnapshotCache) Get(t time.Time) *Snapshot {
	key := c.RoundToStep(t)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return entry.snapshot
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// GetLatest returns the snapshot closest to (but not after) the current
// time, or nil when nothing recent is cached.
func (c *SnapshotCache) GetLatest() *Snapshot {
	now := c.RoundToStep(c.clock.Now())

	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < 10; i++ {
		key := now.Add(-time.Duration(i) * c.config.Step)
		if entry, ok := c.entries[key]; ok {
			c.hits.Add(1)
			metrics.IncCacheHits()
			return entry.snapshot
		}
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()
	return nil
}

// put stores a snapshot. Caller must not hold mu.
func (c *SnapshotCache) put(snap *Snapshot) {
	key := c.RoundToStep(snap.Timestamp)
	entry := &cacheEntry{
		snapshot:    snap,
		generatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	c.updateMetrics()
}

// evictExpired removes entries older than now - buffer.
func (c *SnapshotCache) evictExpired() int {
	cutoff := c.clock.Now().Add(-c.config.Buffer)
	var removed int

	c.mu.Lock()
	for ts := range c.entries {
		if ts.Before(cutoff) {
			delete(c.entries, ts)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddCacheEvictions(removed)
		c.updateMetrics()
		c.logger.Debug("sky cache eviction", "entries_removed", removed)
	}

	return removed
}

// replaceAll atomically replaces all cache entries during dataset cutover.
func (c *SnapshotCache) replaceAll(newEntries map[time.Time]*cacheEntry) {
	c.mu.Lock()
	c.entries = newEntries
	c.mu.Unlock()
	c.updateMetrics()
}

// Stats returns current cache statistics.
func (c *SnapshotCache) Stats() CacheStats {
	c.mu.RLock()
	count := len(c.entries)

	var oldest, newest time.Time
	for ts := range c.entries {
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}
	c.mu.RUnlock()

	return CacheStats{
		Entries:         count,
		SizeBytes:       c.estimateSizeBytes(),
		OldestTimestamp: oldest,
		NewestTimestamp: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InGracePeriod:   c.inGracePeriod.Load(),
	}
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Entries         int       `json:"entries"`
	SizeBytes       int64     `json:"size_bytes"`
	OldestTimestamp time.Time `json:"oldest_timestamp"`
	NewestTimestamp time.Time `json:"newest_timestamp"`
	Hits            int64     `json:"hits"`
	Misses          int64     `json:"misses"`
	Evictions       int64     `json:"evictions"`
	InGracePeriod   bool      `json:"in_grace_period"`
}

// estimateSizeBytes returns a rough estimate of the cache memory footprint.
func (c *SnapshotCache) estimateSizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total int64
	for _, entry := range c.entries {
		if entry.snapshot == nil {
			continue
		}
		satSize := int64(len(entry.snapshot.Satellites)) * int64(unsafe.Sizeof(SatSky{}))
		// Snapshot overhead: Timestamp(24) + slice header(24).
		snapOverhead := int64(48)
		// cacheEntry overhead: pointer(8) + generatedAt(24).
		entryOverhead := int64(32)
		total += satSize + snapOverhead + entryOverhead
	}

	// Map overhead (rough: 8 bytes per bucket).
	total += int64(len(c.entries)) * 8

	return total
}

// updateMetrics publishes current cache size to Prometheus.
func (c *SnapshotCache) updateMetrics() {
	c.mu.RLock()
	count := len(c.entries)
	c.mu.RUnlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(c.estimateSizeBytes())
}
