// Package debug renders visibility and depth buffers to images and writes
// them to disk for inspection.
package debug

import (
	"image"
	"image/color"
	"math"

	"github.com/Faultbox/geoscape/internal/visbuf"
)

// VisibilityImage colours each covered texel by its runtime meshlet.
// Uncovered texels are black.
func VisibilityImage(buf *visbuf.Buffer) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			meshlet, tri, ok := visbuf.Decode(buf.At(x, y))
			if !ok {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			img.SetNRGBA(x, y, MeshletColor(meshlet, tri))
		}
	}
	return img
}

// MeshletColor hashes a meshlet index into a bright colour; odd triangles
// are drawn slightly darker so triangle edges stay visible.
func MeshletColor(meshlet, tri uint32) color.NRGBA {
	h := meshlet*2654435761 + 0x9e3779b9
	c := color.NRGBA{
		R: 64 + uint8(h>>24)%192,
		G: 64 + uint8(h>>16)%192,
		B: 64 + uint8(h>>8)%192,
		A: 255,
	}
	if tri%2 == 1 {
		c.R -= c.R / 8
		c.G -= c.G / 8
		c.B -= c.B / 8
	}
	return c
}

// DepthImage renders one HZB level as grayscale, near bright and far dark.
// Depths are stretched over the range present in the level.
func DepthImage(p *visbuf.Pyramid, level int) *image.Gray {
	w, h := p.Size(level)
	texels := p.Level(level)
	img := image.NewGray(image.Rect(0, 0, w, h))

	lo, hi := float32(math.MaxFloat32), float32(0)
	for _, d := range texels {
		if d >= 1 {
			continue
		}
		lo = min(lo, d)
		hi = max(hi, d)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := texels[y*w+x]
			var v uint8
			switch {
			case d >= 1:
				v = 0
			case hi <= lo:
				v = 255
			default:
				v = uint8(32 + 223*(hi-d)/(hi-lo))
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
