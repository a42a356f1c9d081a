package metrics

import "time"

// KernelStats is the subset of kernel.Kernel's introspection surface the
// collector needs, kept narrow to avoid an import cycle between
// pkg/metrics and pkg/kernel.
type KernelStats interface {
	IsLeader() bool
	RaftStats() map[string]uint64
	ActiveTimerCountsByTenant() map[string]int
}

// Collector periodically snapshots kernel state into the package's
// Prometheus gauges.
type Collector struct {
	kernel   KernelStats
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector for the given kernel.
func NewCollector(kernel KernelStats) *Collector {
	return &Collector{
		kernel:   kernel,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics on a background ticker.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.kernel.IsLeader() {
		RaftLeader.Set(1)
	} else {
		RaftLeader.Set(0)
	}

	stats := c.kernel.RaftStats()
	if lastIndex, ok := stats["last_log_index"]; ok {
		RaftLogIndex.Set(float64(lastIndex))
	}
	if appliedIndex, ok := stats["applied_index"]; ok {
		RaftAppliedIndex.Set(float64(appliedIndex))
	}
	if numPeers, ok := stats["num_peers"]; ok {
		RaftPeers.Set(float64(numPeers))
	}

	for tenantID, count := range c.kernel.ActiveTimerCountsByTenant() {
		TimersActive.WithLabelValues(tenantID).Set(float64(count))
	}
}
