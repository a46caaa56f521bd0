// Package lod selects the set of quadtree tiles to stream and render for a
// camera by walking the tile tree with a screen-space-error test.
package lod

import "errors"

// ErrWalkInFlight is returned when a walk is requested while another runs.
var ErrWalkInFlight = errors.New("lod walk already in flight")
