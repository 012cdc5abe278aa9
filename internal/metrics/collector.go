package metrics

import (
	"context"
	"runtime"
	"time"
)

// StatusCountsProvider reports how many domains sit in each lifecycle
// status. Implemented by the domain registry.
type StatusCountsProvider interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// Collector periodically refreshes the domain status gauges and the
// system gauges.
type Collector struct {
	metrics   *Metrics
	counts    StatusCountsProvider
	interval  time.Duration
	startTime time.Time
}

// NewCollector creates a new gauge collector
func NewCollector(m *Metrics, counts StatusCountsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		metrics:   m,
		counts:    counts,
		interval:  interval,
		startTime: time.Now(),
	}
}

// Start runs the refresh loop until the context is cancelled
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Collector) refresh(ctx context.Context) {
	c.metrics.UptimeSeconds.Set(time.Since(c.startTime).Seconds())
	c.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

	if c.counts == nil {
		return
	}
	counts, err := c.counts.CountByStatus(ctx)
	if err != nil {
		return
	}
	// Reset so statuses that emptied out drop back to zero.
	c.metrics.DomainsByStatus.Reset()
	for status, n := range counts {
		c.metrics.DomainsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
