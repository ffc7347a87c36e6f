package metrics

import "sync"

// Collector records one metric snapshot per trial iteration of a variant.
type Collector struct {
	mu sync.RWMutex

	next       int
	iterations map[int]Snapshot
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{iterations: make(map[int]Snapshot)}
}

// Record stores s under the next iteration index and returns that index.
// Indices are monotonic from zero.
func (c *Collector) Record(s Snapshot) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	iter := c.next
	c.iterations[iter] = s.Clone()
	c.next++
	return iter
}

// Len returns the number of recorded iterations
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.iterations)
}

// Iterations returns a copy of every recorded snapshot keyed by iteration.
func (c *Collector) Iterations() map[int]Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int]Snapshot, len(c.iterations))
	for k, s := range c.iterations {
		out[k] = s.Clone()
	}
	return out
}
