package main

import (
	"math"

	"github.com/Faultbox/geoscape/internal/cull"
	"github.com/Faultbox/geoscape/internal/gpu"
)

// coarseError is the object-space error of the two-triangle patch.
const coarseError = 0.25

// patchMesh builds a unit patch on z=0 spanning [-1,1] with a two-level
// meshlet hierarchy: one meshlet per row of n quads, and a coarse root
// meshlet covering the patch with two triangles.
func patchMesh(n int) gpu.MeshPayload {
	verts := make([]float32, 0, (n+1)*(n+1)*3)
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			x := -1 + 2*float32(i)/float32(n)
			y := -1 + 2*float32(j)/float32(n)
			verts = append(verts, x, y, 0)
		}
	}
	at := func(i, j int) uint32 { return uint32(j*(n+1) + i) }

	root := float32(math.Sqrt2)
	coarse := []float32{0, 0, 0, root, coarseError}

	meshlets := make([]gpu.MeshletPayload, 0, n+1)
	rowRadius := float32(math.Sqrt(1 + 1/float64(n*n)))
	for j := 0; j < n; j++ {
		idx := make([]uint32, 0, n*6)
		for i := 0; i < n; i++ {
			a, b, c, d := at(i, j), at(i+1, j), at(i+1, j+1), at(i, j+1)
			idx = append(idx, a, b, c, a, c, d)
		}
		cy := -1 + (2*float32(j)+1)/float32(n)
		meshlets = append(meshlets, gpu.MeshletPayload{
			SelfBounds:   []float32{0, cy, 0, rowRadius, 0},
			ParentBounds: coarse,
			Indices:      idx,
		})
	}

	a, b, c, d := at(0, 0), at(n, 0), at(n, n), at(0, n)
	meshlets = append(meshlets, gpu.MeshletPayload{
		SelfBounds:   coarse,
		ParentBounds: []float32{0, 0, 0, root, cull.NoParentError},
		Indices:      []uint32{a, b, c, a, c, d},
	})

	return gpu.MeshPayload{
		Vertices:       verts,
		VertexStride:   3,
		Meshlets:       meshlets,
		BoundingSphere: [4]float32{0, 0, 0, root},
		AABB:           [6]float32{-1, -1, 0, 1, 1, 0},
		Material:       gpu.MaterialLambert,
	}
}
