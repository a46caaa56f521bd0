// Package framegraph orders the per-frame passes by their declared resource
// reads and writes and drives one frame of culling, visibility raster,
// reprojection and HZB rebuild.
package framegraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle         = errors.New("frame graph has a cycle")
	ErrDuplicatePass = errors.New("duplicate pass name")
)

// Pass is one node of the frame graph.
type Pass struct {
	Name   string
	Reads  []string
	Writes []string
	Run    func(ctx context.Context) error
}

// Graph collects passes in declaration order.
type Graph struct {
	passes []*Pass
}

// Add appends a pass.
func (g *Graph) Add(p *Pass) {
	g.passes = append(g.passes, p)
}

// Compile returns the passes in dependency order. A pass that reads a
// resource runs after every pass that writes it, and writers of the same
// resource keep their declaration order. Ties resolve by declaration order.
func (g *Graph) Compile() ([]*Pass, error) {
	n := len(g.passes)
	names := make(map[string]bool, n)
	for _, p := range g.passes {
		if names[p.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePass, p.Name)
		}
		names[p.Name] = true
	}

	writers := make(map[string][]int)
	for i, p := range g.passes {
		for _, r := range p.Writes {
			writers[r] = append(writers[r], i)
		}
	}

	edges := make([]map[int]bool, n)
	indegree := make([]int, n)
	link := func(from, to int) {
		if from == to {
			return
		}
		if edges[from] == nil {
			edges[from] = make(map[int]bool)
		}
		if !edges[from][to] {
			edges[from][to] = true
			indegree[to]++
		}
	}
	for i, p := range g.passes {
		for _, r := range p.Reads {
			for _, w := range writers[r] {
				link(w, i)
			}
		}
	}
	for _, ws := range writers {
		for k := 1; k < len(ws); k++ {
			link(ws[k-1], ws[k])
		}
	}

	order := make([]*Pass, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, p := range g.passes {
				if !done[i] {
					stuck = append(stuck, p.Name)
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, g.passes[next])
		for to := range edges[next] {
			indegree[to]--
		}
	}
	return order, nil
}
