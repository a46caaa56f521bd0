package cull

import (
	"github.com/Faultbox/geoscape/internal/gpu"
	"github.com/Faultbox/geoscape/pkg/math"
)

// Planes holds six frustum planes (left, right, bottom, top, near, far).
type Planes [6]math.Vec4

// Outward flips inward-facing planes.
func (p Planes) Outward() Planes {
	var out Planes
	for i := range p {
		out[i] = p[i].Negate()
	}
	return out
}

// IsPassFrustumInstance tests a sphere against planes whose normals point
// out of the frustum. The sphere is rejected when it lies further than its
// radius outside any plane.
func IsPassFrustumInstance(outward Planes, center math.Vec3, radius float32) bool {
	c := center.Vec4(1)
	for _, pl := range outward {
		if c.Dot(pl) > radius {
			return false
		}
	}
	return true
}

// IsPassFrustum tests a sphere against planes whose normals point into the
// frustum. The sphere is rejected when its signed distance to any plane is
// below -radius.
func IsPassFrustum(inward Planes, center math.Vec3, radius float32) bool {
	c := center.Vec4(1)
	for _, pl := range inward {
		if c.Dot(pl) < -radius {
			return false
		}
	}
	return true
}

// WorldSphere moves a bounding sphere by a model matrix. The radius grows by
// the matrix's largest axis scale so the result stays conservative.
func WorldSphere(model math.Mat4, s gpu.Sphere) (math.Vec3, float32) {
	c := model.TransformPoint(s.Center)
	return c.XYZ(), s.Radius * model.MaxAxisScale()
}
