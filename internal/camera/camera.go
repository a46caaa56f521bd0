// Package camera provides the perspective camera used by the culling stage
// and the globe camera that drives tile LOD selection.
package camera

import (
	gomath "math"

	"github.com/Faultbox/geoscape/pkg/math"
)

// Camera is a perspective camera in the scene's local frame.
type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	FovY   float32 // Vertical field of view (radians)
	Aspect float32
	Near   float32
	Far    float32

	ViewportWidth  int
	ViewportHeight int
}

// New creates a camera with a 60° vertical field of view.
func New(width, height int) *Camera {
	return &Camera{
		Position:       math.Vec3{X: 0, Y: 0, Z: 10},
		Target:         math.Vec3{},
		Up:             math.Vec3{X: 0, Y: 1, Z: 0},
		FovY:           float32(gomath.Pi / 3),
		Aspect:         float32(width) / float32(height),
		Near:           0.1,
		Far:            10000,
		ViewportWidth:  width,
		ViewportHeight: height,
	}
}

// ViewMatrix returns the world-to-view transform.
func (c *Camera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position, c.Target, c.Up)
}

// ProjectionMatrix returns the perspective projection.
func (c *Camera) ProjectionMatrix() math.Mat4 {
	return math.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns projection * view.
func (c *Camera) ViewProjection() math.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// FrustumPlanes returns the inward-facing world-space clip planes.
func (c *Camera) FrustumPlanes() [6]math.Vec4 {
	return c.ViewProjection().FrustumPlanes()
}

// SSEDenominator is 2·tan(fovY/2), the view height at unit distance.
func (c *Camera) SSEDenominator() float32 {
	return 2 * float32(gomath.Tan(float64(c.FovY)/2))
}

// VerticalScalingFactor converts error/distance into pixels when halved:
// viewportHeight / tan(fovY/2).
func (c *Camera) VerticalScalingFactor() float32 {
	return float32(c.ViewportHeight) / float32(gomath.Tan(float64(c.FovY)/2))
}

// OrbitCamera orbits around a center point in the local frame.
type OrbitCamera struct {
	Center math.Vec3

	// Spherical coordinates
	Distance  float32 // Distance from center
	RotationX float32 // Pitch (vertical angle, radians)
	RotationY float32 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        200.0,
		RotationX:       0.5,
		MinDistance:     5.0,
		MaxDistance:     5000.0,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	x := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Sin(float64(c.RotationY)))
	y := c.Distance * float32(gomath.Sin(float64(c.RotationX)))
	z := c.Distance * float32(gomath.Cos(float64(c.RotationX))*gomath.Cos(float64(c.RotationY)))

	return c.Center.Add(math.Vec3{X: x, Y: y, Z: z})
}

// Apply positions cam on the orbit, looking at the center.
func (c *OrbitCamera) Apply(cam *Camera) {
	cam.Position = c.Position()
	cam.Target = c.Center
	cam.Up = math.Vec3{X: 0, Y: 1, Z: 0}
}

// HandleDrag updates rotation based on a drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.RotationX = min(max(c.RotationX, c.MinPitch), c.MaxPitch)
}

// HandleZoom updates distance based on a scroll delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = min(max(c.Distance, c.MinDistance), c.MaxDistance)
}
