package cull

import gomath "math"

// DefaultLODThreshold is the pixel error threshold of the cluster cut.
const DefaultLODThreshold = 1.0

// NoParentError marks root clusters, which have no coarser parent.
const NoParentError = gomath.MaxFloat32

// ProjectError converts a simplification error at a distance into pixels.
// verticalScale is viewportHeight / tan(fovY/2).
func ProjectError(err, distance, near, verticalScale float32) float32 {
	return err / max(distance, near) * verticalScale * 0.5
}

// IsSelectedLOD reports whether a cluster is the finest sufficient level:
// its own error is invisible while its parent's is not.
func IsSelectedLOD(selfPixels, parentPixels, threshold float32) bool {
	return selfPixels <= threshold && parentPixels > threshold
}
