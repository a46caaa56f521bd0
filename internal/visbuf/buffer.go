package visbuf

// Buffer holds packed ids and window depths, row 0 at the top.
type Buffer struct {
	Width, Height int
	IDs           []uint32
	Depth         []float32
}

// NewBuffer creates a cleared buffer.
func NewBuffer(width, height int) *Buffer {
	b := &Buffer{
		Width:  width,
		Height: height,
		IDs:    make([]uint32, width*height),
		Depth:  make([]float32, width*height),
	}
	b.Clear()
	return b
}

// Clear resets every texel to no coverage at the far plane.
func (b *Buffer) Clear() {
	for i := range b.IDs {
		b.IDs[i] = NoCoverage
		b.Depth[i] = 1
	}
}

// At returns the packed id of a texel.
func (b *Buffer) At(x, y int) uint32 {
	return b.IDs[y*b.Width+x]
}

// Covered counts texels with coverage.
func (b *Buffer) Covered() int {
	n := 0
	for _, v := range b.IDs {
		if v != NoCoverage {
			n++
		}
	}
	return n
}
