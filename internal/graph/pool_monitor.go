package graph

import (
	"context"
	"time"
)

// PoolStats represents connection pool settings.
//
// The Go driver doesn't expose runtime pool metrics; use Neo4j's metrics
// endpoint for those.
type PoolStats struct {
	MaxPoolSize int `json:"maxPoolSize"`
}

// GetPoolStats returns the configured pool settings
func (c *Client) GetPoolStats() PoolStats {
	return PoolStats{MaxPoolSize: c.maxPoolSize}
}

// WatchPoolHealth runs periodic connectivity checks until ctx is done.
//
//	go client.WatchPoolHealth(ctx, 30*time.Second)
func (c *Client) WatchPoolHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("starting pool health monitor", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("pool health monitor stopped")
			return
		case <-ticker.C:
			if err := c.HealthCheck(ctx); err != nil {
				c.logger.Warn("pool health check failed", "error", err)
			} else {
				c.logger.Debug("pool health check passed")
			}
		}
	}
}

// RecommendedPoolSize returns a pool size for the expected number of
// concurrent graph writers, with headroom for API reads.
func RecommendedPoolSize(concurrentWriters int) int {
	size := concurrentWriters*2 + 10
	if size > 100 {
		return 100
	}
	return size
}
