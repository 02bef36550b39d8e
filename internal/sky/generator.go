package sky

import (
	"context"
	"time"

	"github.com/hamsat/skytrack/internal/metrics"
)

// Start begins the background cache maintenance loop. It performs an initial
// warmup (filling the full [now, now+horizon] window), then continuously:
//   - computes new snapshots at the leading edge
//   - evicts expired entries from the trailing edge
//   - detects element dataset changes and triggers cutover
//
// Blocks until ctx is cancelled.
func (c *SnapshotCache) Start(ctx context.Context) {
	if !c.waitForElements(ctx) {
		return
	}

	c.warmup(ctx)

	ticker := c.clock.NewTicker(c.config.Step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("sky cache generator stopped")
			return
		case <-ticker.Chan():
			c.tick(ctx)
		}
	}
}

// waitForElements blocks until an element dataset is available in the store,
// checking every second. Returns false if ctx is cancelled.
func (c *SnapshotCache) waitForElements(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("sky cache waiting for element data...")
	ticker := c.clock.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.Chan():
			if c.store.Get() != nil {
				c.logger.Info("element data available, starting sky cache warmup")
				return true
			}
		}
	}
}

// warmup fills the cache with snapshots for [now, now+horizon].
func (c *SnapshotCache) warmup(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.currentFetchedAt = ds.FetchedAt

	now := c.RoundToStep(c.clock.Now())
	numFrames := int(c.config.Horizon/c.config.Step) + 1

	c.logger.Info("sky cache warmup starting",
		"frames", numFrames,
		"from", now.UTC().Format(time.RFC3339),
		"to", now.Add(c.config.Horizon).UTC().Format(time.RFC3339),
	)

	start := c.clock.Now()
	generated := 0

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		target := now.Add(time.Duration(i) * c.config.Step)
		snap, err := c.computer.SnapshotAt(ctx, target)
		if err != nil {
			c.logger.Warn("warmup snapshot failed", "timestamp", target, "error", err)
			metrics.IncCacheRegenerationErrors()
			continue
		}

		c.put(snap)
		generated++
	}

	c.logger.Info("sky cache warmup complete",
		"generated", generated,
		"duration_ms", c.clock.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *SnapshotCache) tick(ctx context.Context) {
	if c.datasetChanged() {
		c.performCutover(ctx)
		return
	}

	c.generateLeadingEdge(ctx)
	c.evictExpired()
}

// generateLeadingEdge computes the snapshot at the leading edge of the
// window.
func (c *SnapshotCache) generateLeadingEdge(ctx context.Context) {
	target := c.RoundToStep(c.clock.Now().Add(c.config.Horizon))

	// Skip if already cached.
	if c.Get(target) != nil {
		return
	}

	start := c.clock.Now()
	snap, err := c.computer.SnapshotAt(ctx, target)
	duration := c.clock.Since(start)

	if err != nil {
		c.logger.Warn("leading edge snapshot failed",
			"timestamp", target.UTC().Format(time.RFC3339),
			"error", err,
		)
		metrics.IncCacheRegenerationErrors()
		return
	}

	c.put(snap)
	metrics.ObserveCacheRegenerationDuration(duration)

	c.logger.Debug("leading edge snapshot generated",
		"timestamp", target.UTC().Format(time.RFC3339),
		"duration_ms", duration.Milliseconds(),
	)
}
