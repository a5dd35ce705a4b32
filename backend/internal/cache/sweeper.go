package cache

import (
	"context"
	"time"

	"github.com/filmzi/filelink/shared/logger"
)

// Sweep drops expired entries and returns how many were removed.
func (c *TTLCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if now.Sub(e.resolvedAt) >= c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// StartBackgroundSweep runs Sweep every interval until ctx is done.
func (c *TTLCache) StartBackgroundSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	log := logger.Component("cache")
	log.Info("started cache sweep", "interval", interval, "ttl", c.ttl)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := time.Now()
				removed := c.Sweep()
				log.Debug("cache sweep completed",
					"removed", removed,
					"remaining", c.Len(),
					"duration_ms", time.Since(start).Milliseconds())
			case <-ctx.Done():
				log.Info("cache sweep shutting down")
				return
			}
		}
	}()
}
