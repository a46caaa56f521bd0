package visbuf

import "github.com/Faultbox/geoscape/internal/cull"

// Pyramid is a max-depth mip chain. Level 0 is the full-resolution depth.
type Pyramid struct {
	widths, heights []int
	levels          [][]float32
}

var _ cull.HZB = (*Pyramid)(nil)

// BuildHZB downsamples a depth buffer until both sides reach one texel.
// Each texel keeps the farthest depth of its footprint; odd edges fold the
// leftover row or column into the last texel.
func BuildHZB(depth []float32, width, height int) *Pyramid {
	p := &Pyramid{}
	level := make([]float32, len(depth))
	copy(level, depth)
	p.push(level, width, height)

	for width > 1 || height > 1 {
		nw, nh := max(width/2, 1), max(height/2, 1)
		next := make([]float32, nw*nh)
		for y := 0; y < nh; y++ {
			y0, y1 := span(y, nh, height)
			for x := 0; x < nw; x++ {
				x0, x1 := span(x, nw, width)
				d := float32(0)
				for sy := y0; sy < y1; sy++ {
					for sx := x0; sx < x1; sx++ {
						d = max(d, level[sy*width+sx])
					}
				}
				next[y*nw+x] = d
			}
		}
		level, width, height = next, nw, nh
		p.push(level, width, height)
	}
	return p
}

// Rebuild refreshes the pyramid from a new depth buffer of the same size.
func (p *Pyramid) Rebuild(depth []float32) {
	*p = *BuildHZB(depth, p.widths[0], p.heights[0])
}

func span(i, n, src int) (lo, hi int) {
	lo = 2 * i
	hi = min(lo+2, src)
	if i == n-1 {
		hi = src
	}
	return lo, hi
}

func (p *Pyramid) push(level []float32, w, h int) {
	p.levels = append(p.levels, level)
	p.widths = append(p.widths, w)
	p.heights = append(p.heights, h)
}

// Levels returns the number of mip levels.
func (p *Pyramid) Levels() int { return len(p.levels) }

// Size returns the dimensions of a level.
func (p *Pyramid) Size(level int) (w, h int) {
	return p.widths[level], p.heights[level]
}

// Load returns the depth of a texel.
func (p *Pyramid) Load(level, x, y int) float32 {
	return p.levels[level][y*p.widths[level]+x]
}

// Level returns a level's texels, row-major.
func (p *Pyramid) Level(level int) []float32 {
	return p.levels[level]
}
