// Package geo provides ellipsoid geometry, geodetic rectangles and map
// projections used by the tiling schema and the LOD selector.
package geo

import (
	"fmt"
	"math"
)

// Tolerances shared by the ellipsoid and rectangle math.
const (
	Epsilon1  = 0.1
	Epsilon12 = 1e-12
	Epsilon14 = 1e-14

	TwoPi = 2 * math.Pi
)

// Cartesian3 is a double-precision point in ellipsoid-centred space or in a
// projection's metric plane.
type Cartesian3 struct {
	X, Y, Z float64
}

// Add returns c + o.
func (c Cartesian3) Add(o Cartesian3) Cartesian3 {
	return Cartesian3{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

// Sub returns c - o.
func (c Cartesian3) Sub(o Cartesian3) Cartesian3 {
	return Cartesian3{c.X - o.X, c.Y - o.Y, c.Z - o.Z}
}

// Scale returns c * s.
func (c Cartesian3) Scale(s float64) Cartesian3 {
	return Cartesian3{c.X * s, c.Y * s, c.Z * s}
}

// MulComponents returns the component-wise product.
func (c Cartesian3) MulComponents(o Cartesian3) Cartesian3 {
	return Cartesian3{c.X * o.X, c.Y * o.Y, c.Z * o.Z}
}

// Dot returns the dot product.
func (c Cartesian3) Dot(o Cartesian3) float64 {
	return c.X*o.X + c.Y*o.Y + c.Z*o.Z
}

// Magnitude returns the length of c.
func (c Cartesian3) Magnitude() float64 {
	return math.Sqrt(c.Dot(c))
}

// Normalize returns c scaled to unit length. The zero vector is returned unchanged.
func (c Cartesian3) Normalize() Cartesian3 {
	m := c.Magnitude()
	if m == 0 {
		return c
	}
	return c.Scale(1 / m)
}

// GeodeticCoordinate is a longitude/latitude pair in degrees plus an altitude
// in metres above the ellipsoid.
type GeodeticCoordinate struct {
	Longitude float64
	Latitude  float64
	Altitude  float64
}

// IsGeodetic reports whether the coordinate lies on the ellipsoid surface.
func (g GeodeticCoordinate) IsGeodetic() bool {
	return g.Altitude == 0
}

// Radians returns longitude and latitude in radians.
func (g GeodeticCoordinate) Radians() (lon, lat float64) {
	return ToRadians(g.Longitude), ToRadians(g.Latitude)
}

// String implements fmt.Stringer.
func (g GeodeticCoordinate) String() string {
	return fmt.Sprintf("(%.6f°, %.6f°, %.2fm)", g.Longitude, g.Latitude, g.Altitude)
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// ZeroToTwoPi maps an angle in radians into [0, 2π).
func ZeroToTwoPi(angle float64) float64 {
	return math.Mod(math.Mod(angle, TwoPi)+TwoPi, TwoPi)
}

// EqualsEpsilon compares two values with an absolute tolerance.
func EqualsEpsilon(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
