// Package visbuf implements the visibility buffer: packed per-pixel
// (runtime meshlet, triangle) ids, a software visibility raster, the
// max-depth pyramid built from it and the reprojection compaction that turns
// covered texels into a deduplicated triangle draw set.
package visbuf

import (
	"errors"
	"fmt"

	"github.com/Faultbox/geoscape/internal/gpu"
)

// Packing layout: the low 7 bits hold the triangle, the high 25 bits hold
// the runtime meshlet index plus one so that 0 never encodes a triangle.
const (
	TriangleBits     = 7
	TriangleMask     = 1<<TriangleBits - 1
	MaxTriangleIndex = TriangleMask
	MaxMeshletIndex  = gpu.MaxRuntimeMeshlets - 1
	NoCoverage       = 0
)

var (
	ErrMeshletIndexOverflow  = errors.New("runtime meshlet index does not fit 25 bits")
	ErrTriangleIndexOverflow = errors.New("triangle index does not fit 7 bits")
)

// Encode packs a runtime meshlet index and a triangle index.
func Encode(meshlet, triangle uint32) (uint32, error) {
	if meshlet > MaxMeshletIndex {
		return 0, fmt.Errorf("%w: %d", ErrMeshletIndexOverflow, meshlet)
	}
	if triangle > MaxTriangleIndex {
		return 0, fmt.Errorf("%w: %d", ErrTriangleIndexOverflow, triangle)
	}
	return (meshlet+1)<<TriangleBits | triangle&TriangleMask, nil
}

// MustEncode is Encode for indices already known to be in range.
func MustEncode(meshlet, triangle uint32) uint32 {
	v, err := Encode(meshlet, triangle)
	if err != nil {
		panic(err)
	}
	return v
}

// Decode unpacks a texel. ok is false for texels with no coverage.
func Decode(v uint32) (meshlet, triangle uint32, ok bool) {
	if v == NoCoverage {
		return 0, 0, false
	}
	return v>>TriangleBits - 1, v & TriangleMask, true
}
