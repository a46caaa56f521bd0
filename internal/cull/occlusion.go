package cull

import (
	gomath "math"

	"github.com/Faultbox/geoscape/pkg/math"
)

// DefaultNearMargin is the view-space distance from the near plane inside
// which spheres skip the occlusion test.
const DefaultNearMargin = 4

// HZB is a max-depth mip pyramid. Depths are window depths in [0, 1] with 1
// at the far plane. Row 0 is the top of the screen.
type HZB interface {
	Levels() int
	Size(level int) (w, h int)
	Load(level, x, y int) float32
}

// Occluder tests bounding spheres against the previous frame's HZB.
type Occluder struct {
	View       math.Mat4
	P00, P11   float32
	Near, Far  float32
	NearMargin float32
	HZB        HZB
}

// ScreenRect is a screen-space box in UV coordinates, v pointing down.
type ScreenRect struct {
	U0, V0, U1, V1 float32
}

// ViewSpace transforms a world point into view space with z measured as a
// positive distance in front of the camera.
func (o *Occluder) ViewSpace(world math.Vec3) math.Vec3 {
	v := o.View.TransformPoint(world)
	return math.Vec3{X: v[0], Y: v[1], Z: -v[2]}
}

// ProjectSphere bounds the silhouette of a view-space sphere that lies fully
// in front of the near plane. Perspective projection only.
func ProjectSphere(c math.Vec3, r, p00, p11 float32) ScreenRect {
	cx, cy, cz := float64(c.X), float64(c.Y), float64(c.Z)
	rr := float64(r)
	czr2 := cz*cz - rr*rr

	vx := gomath.Sqrt(cx*cx + czr2)
	minX := (vx*cx - rr*cz) / (vx*cz + cx*rr)
	maxX := (vx*cx + rr*cz) / (vx*cz - cx*rr)

	vy := gomath.Sqrt(cy*cy + czr2)
	minY := (vy*cy - rr*cz) / (vy*cz + cy*rr)
	maxY := (vy*cy + rr*cz) / (vy*cz - cy*rr)

	minX *= float64(p00)
	maxX *= float64(p00)
	minY *= float64(p11)
	maxY *= float64(p11)

	return ScreenRect{
		U0: float32(0.5 + 0.5*minX),
		V0: float32(0.5 - 0.5*maxY),
		U1: float32(0.5 + 0.5*maxX),
		V1: float32(0.5 - 0.5*minY),
	}
}

// LinearizeDepth converts a [0, 1] window depth to view-space distance.
func LinearizeDepth(d, near, far float32) float32 {
	ndc := 2*d - 1
	return 2 * near * far / (far + near - ndc*(far-near))
}

// IsVisible reports whether a world-space sphere may be visible. Spheres
// close to the near plane and tests without an HZB always pass.
func (o *Occluder) IsVisible(center math.Vec3, radius float32) bool {
	if o.HZB == nil || o.HZB.Levels() == 0 {
		return true
	}
	c := o.ViewSpace(center)
	if c.Z-radius < o.Near+o.NearMargin {
		return true
	}

	rect := ProjectSphere(c, radius, o.P00, o.P11)
	rect.U0, rect.U1 = clamp01(rect.U0), clamp01(rect.U1)
	rect.V0, rect.V1 = clamp01(rect.V0), clamp01(rect.V1)

	w0, h0 := o.HZB.Size(0)
	spanW := (rect.U1 - rect.U0) * float32(w0)
	spanH := (rect.V1 - rect.V0) * float32(h0)
	level := MipLevel(spanW, spanH, o.HZB.Levels())

	lw, lh := o.HZB.Size(level)
	depth := max(
		o.HZB.Load(level, texel(rect.U0, lw), texel(rect.V0, lh)),
		o.HZB.Load(level, texel(rect.U1, lw), texel(rect.V0, lh)),
		o.HZB.Load(level, texel(rect.U0, lw), texel(rect.V1, lh)),
		o.HZB.Load(level, texel(rect.U1, lw), texel(rect.V1, lh)),
	)

	closest := c.Z - radius
	return closest <= LinearizeDepth(depth, o.Near, o.Far)
}

// MipLevel picks the HZB level whose texels cover a span with at most a
// 2x2 footprint, clamped to the available levels.
func MipLevel(spanW, spanH float32, levels int) int {
	span := max(spanW, spanH) / 2
	if span <= 1 {
		return 0
	}
	level := int(gomath.Ceil(gomath.Log2(float64(span))))
	return min(max(level, 0), levels-1)
}

func texel(u float32, size int) int {
	return min(max(int(u*float32(size)), 0), size-1)
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}
