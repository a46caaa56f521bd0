package visbuf

import (
	"context"
	"fmt"
	gomath "math"

	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/pkg/math"
)

// Rasterizer draws the culled meshlets into a visibility buffer. Each draw
// command's FirstInstance is its runtime meshlet index.
type Rasterizer struct {
	ViewProj math.Mat4
}

type screenVertex struct {
	x, y, z float64
}

// Draw rasterizes every triangle of every draw with a less-than depth test.
// It returns the number of triangles submitted. A draw whose runtime index
// cannot be packed fails with ErrMeshletIndexOverflow.
func (r *Rasterizer) Draw(ctx context.Context, buf *Buffer, records []gpu.RuntimeMeshletRecord, draws []gpu.DrawIndexedIndirect, tables gpu.View) (int, error) {
	submitted := 0
	for _, d := range draws {
		if err := ctx.Err(); err != nil {
			return submitted, err
		}
		runtime := d.FirstInstance
		if runtime > MaxMeshletIndex {
			return submitted, fmt.Errorf("%w: draw for runtime meshlet %d", ErrMeshletIndexOverflow, runtime)
		}
		if int(runtime) >= len(records) {
			return submitted, fmt.Errorf("draw for runtime meshlet %d, only %d records", runtime, len(records))
		}
		rec := records[runtime]
		mvp := r.ViewProj.Mul(tables.Instances[rec.InstanceID].Model)

		for tri := uint32(0); tri < d.IndexCount/3; tri++ {
			var sv [3]screenVertex
			visible := true
			for k := uint32(0); k < 3; k++ {
				v := tables.Indices[d.FirstIndex+tri*3+k] + uint32(d.VertexOffset)
				clip := mvp.TransformPoint(tables.Positions[v])
				if clip[3] <= 0 {
					visible = false
					break
				}
				sv[k] = toScreen(clip, buf.Width, buf.Height)
			}
			submitted++
			if !visible {
				continue
			}
			id, err := Encode(runtime, tri)
			if err != nil {
				return submitted, err
			}
			fillTriangle(buf, sv, id)
		}
	}
	return submitted, nil
}

func toScreen(clip math.Vec4, w, h int) screenVertex {
	inv := 1 / float64(clip[3])
	x, y, z := float64(clip[0])*inv, float64(clip[1])*inv, float64(clip[2])*inv
	return screenVertex{
		x: (x + 1) * 0.5 * float64(w),
		y: (1 - y) * 0.5 * float64(h),
		z: z*0.5 + 0.5,
	}
}

// fillTriangle covers pixel centres inside the triangle, either winding.
func fillTriangle(buf *Buffer, sv [3]screenVertex, id uint32) {
	area := edge(sv[0], sv[1], sv[2].x, sv[2].y)
	if area == 0 {
		return
	}

	minX := max(0, int(gomath.Floor(min(sv[0].x, sv[1].x, sv[2].x))))
	maxX := min(buf.Width-1, int(gomath.Ceil(max(sv[0].x, sv[1].x, sv[2].x))))
	minY := max(0, int(gomath.Floor(min(sv[0].y, sv[1].y, sv[2].y))))
	maxY := min(buf.Height-1, int(gomath.Ceil(max(sv[0].y, sv[1].y, sv[2].y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float64(x)+0.5, float64(y)+0.5
			w0 := edge(sv[1], sv[2], px, py) / area
			w1 := edge(sv[2], sv[0], px, py) / area
			w2 := edge(sv[0], sv[1], px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*sv[0].z + w1*sv[1].z + w2*sv[2].z
			if z < 0 || z > 1 {
				continue
			}
			i := y*buf.Width + x
			if float32(z) >= buf.Depth[i] {
				continue
			}
			buf.Depth[i] = float32(z)
			buf.IDs[i] = id
		}
	}
}

func edge(a, b screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}
