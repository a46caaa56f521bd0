package cull

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultGroupSize is the number of invocations per workgroup.
const DefaultGroupSize = 64

// Dispatcher runs a kernel over n independent invocations. With one worker
// invocations run in order, which makes compaction order deterministic.
type Dispatcher struct {
	Workers   int
	GroupSize int
}

// Sequential returns a single-worker dispatcher.
func Sequential() *Dispatcher {
	return &Dispatcher{Workers: 1, GroupSize: DefaultGroupSize}
}

// Dispatch invokes kernel for every index in [0, n). It stops between
// workgroups when ctx is cancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, n int, kernel func(i int)) error {
	group := d.GroupSize
	if group <= 0 {
		group = DefaultGroupSize
	}

	if d.Workers <= 1 {
		for start := 0; start < n; start += group {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < min(start+group, n); i++ {
				kernel(i)
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Workers)
	for start := 0; start < n; start += group {
		end := min(start+group, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				kernel(i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
