package framegraph

import (
	"github.com/Faultbox/geoscape/internal/cull"
	"github.com/Faultbox/geoscape/internal/visbuf"
)

// Scheduler owns the double-buffered HZB. The pyramid built during a frame
// becomes the previous pyramid of the next frame by swapping handles.
type Scheduler struct {
	hzb   [2]*visbuf.Pyramid
	write int
	frame uint64
}

// NewScheduler creates a scheduler with no previous pyramid.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Previous returns the pyramid built last frame, or nil before the first
// frame completes.
func (s *Scheduler) Previous() cull.HZB {
	if p := s.hzb[1-s.write]; p != nil {
		return p
	}
	return nil
}

// PreviousPyramid returns the previous pyramid without the interface wrap.
func (s *Scheduler) PreviousPyramid() *visbuf.Pyramid { return s.hzb[1-s.write] }

// Current returns the pyramid being built this frame.
func (s *Scheduler) Current() *visbuf.Pyramid { return s.hzb[s.write] }

// Build rebuilds the current pyramid from a depth buffer, reusing its slot.
func (s *Scheduler) Build(depth []float32, width, height int) *visbuf.Pyramid {
	p := s.hzb[s.write]
	if p == nil {
		p = visbuf.BuildHZB(depth, width, height)
		s.hzb[s.write] = p
		return p
	}
	if w, h := p.Size(0); w != width || h != height {
		*p = *visbuf.BuildHZB(depth, width, height)
		return p
	}
	p.Rebuild(depth)
	return p
}

// Swap exchanges the current and previous handles and advances the frame.
func (s *Scheduler) Swap() {
	s.write = 1 - s.write
	s.frame++
}

// Frame returns the number of completed frames.
func (s *Scheduler) Frame() uint64 { return s.frame }

// ResetCounters zeroes compaction counters before the passes that use them.
func (s *Scheduler) ResetCounters(counters ...*cull.Counter) {
	for _, c := range counters {
		c.Reset()
	}
}
