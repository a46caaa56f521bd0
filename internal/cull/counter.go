// Package cull runs the instance and meshlet culling passes: frustum,
// hierarchical-Z occlusion and the per-cluster LOD cut. Survivors are
// compacted through atomic append counters, so output order is unspecified.
package cull

import "sync/atomic"

// Counter is a fetch-and-add compaction counter. It must be reset before
// every pass that appends through it.
type Counter struct {
	v atomic.Uint32
}

// Add adds n and returns the value before the add, which is the first slot
// owned by the caller.
func (c *Counter) Add(n uint32) uint32 {
	return c.v.Add(n) - n
}

// Load returns the current value.
func (c *Counter) Load() uint32 { return c.v.Load() }

// Reset sets the counter to zero.
func (c *Counter) Reset() { c.v.Store(0) }
