package lod

import (
	"math"

	"github.com/Faultbox/geoscape/pkg/quadtree"
)

// Selection constants.
const (
	TableLevels           = 21 // levels 0..20
	DefaultSamplesPerTile = 65
	DefaultSSEThreshold   = 2.0
)

// ErrorTable holds the per-level geometric error of a schema.
type ErrorTable struct {
	schema         *quadtree.Schema
	samplesPerTile float64
	errors         []float64
}

// NewErrorTable precomputes geometric errors for levels 0..20.
func NewErrorTable(s *quadtree.Schema, samplesPerTile float64) *ErrorTable {
	if samplesPerTile <= 0 {
		samplesPerTile = DefaultSamplesPerTile
	}
	t := &ErrorTable{
		schema:         s,
		samplesPerTile: samplesPerTile,
		errors:         make([]float64, TableLevels),
	}
	for level := range t.errors {
		t.errors[level] = t.compute(level)
	}
	return t
}

func (t *ErrorTable) compute(level int) float64 {
	maxRadius := t.schema.Ellipsoid().MaximumRadius()
	return maxRadius * math.Pi * 0.5 / (t.samplesPerTile * float64(t.schema.NumberOfXTilesAtLevel(level)))
}

// GeometricError returns the maximum geometric error of a tile at level.
func (t *ErrorTable) GeometricError(level int) float64 {
	if level >= 0 && level < len(t.errors) {
		return t.errors[level]
	}
	return t.compute(level)
}

// MaxCameraHeight returns the height below which a tile at level exceeds
// the SSE threshold. Diagnostic only; selection uses ScreenSpaceError.
func (t *ErrorTable) MaxCameraHeight(level int, viewportHeight, sseDenominator, threshold float64) float64 {
	return t.GeometricError(level) * viewportHeight / (threshold * sseDenominator)
}

// projectError turns a geometric error into pixels for a camera height.
func projectError(geometricError, cameraHeight, viewportHeight, sseDenominator float64) float64 {
	cameraHeight = math.Max(cameraHeight, 1e-3)
	return geometricError * viewportHeight / (cameraHeight * sseDenominator)
}
