package metrics

import (
	"time"

	"github.com/cuemby/scbackend/pkg/types"
)

// InstanceLister is the read side of the registry the collector samples.
type InstanceLister interface {
	List() []types.InstanceInfo
}

// SubscriberCounter reports the number of connected subscribers.
type SubscriberCounter interface {
	Count() int
}

// Collector periodically samples gauges from the registry and broadcaster
type Collector struct {
	instances   InstanceLister
	subscribers SubscriberCounter
	interval    time.Duration
	stopCh      chan struct{}
}

// NewCollector creates a new metrics collector. Either source may be nil.
func NewCollector(instances InstanceLister, subscribers SubscriberCounter) *Collector {
	return &Collector{
		instances:   instances,
		subscribers: subscribers,
		interval:    15 * time.Second,
		stopCh:      make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect samples every source once.
func (c *Collector) Collect() {
	c.collectInstanceMetrics()
	c.collectSubscriberMetrics()
}

func (c *Collector) collectInstanceMetrics() {
	if c.instances == nil {
		return
	}

	counts := map[types.InstanceState]int{
		types.InstanceStateCreated:  0,
		types.InstanceStateRunning:  0,
		types.InstanceStateDegraded: 0,
	}
	for _, info := range c.instances.List() {
		counts[info.State]++
	}

	for state, count := range counts {
		InstancesTotal.WithLabelValues(string(state)).Set(float64(count))
	}
}

func (c *Collector) collectSubscriberMetrics() {
	if c.subscribers == nil {
		return
	}
	SubscribersTotal.Set(float64(c.subscribers.Count()))
}
