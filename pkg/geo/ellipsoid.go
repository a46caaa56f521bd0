package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateInput is matched by DegenerateInputError via errors.Is.
var ErrDegenerateInput = errors.New("degenerate input near ellipsoid center")

// maxNewtonIterations bounds the surface projection; the iteration normally
// converges in a handful of steps.
const maxNewtonIterations = 100

// DegenerateInputError is returned when a point is too close to the ellipsoid
// center for the surface projection to converge.
type DegenerateInputError struct {
	Point       Cartesian3
	SquaredNorm float64
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("%v: point (%g, %g, %g), squared norm %g",
		ErrDegenerateInput, e.Point.X, e.Point.Y, e.Point.Z, e.SquaredNorm)
}

// Is makes errors.Is(err, ErrDegenerateInput) succeed.
func (e *DegenerateInputError) Is(target error) bool {
	return target == ErrDegenerateInput
}

// Ellipsoid is an immutable ellipsoid centred at the origin.
type Ellipsoid struct {
	radii               Cartesian3
	radiiSquared        Cartesian3
	oneOverRadii        Cartesian3
	oneOverRadiiSquared Cartesian3
	maximumRadius       float64
	minimumRadius       float64
}

// NewEllipsoid creates an ellipsoid from its three semi-axis lengths.
func NewEllipsoid(x, y, z float64) *Ellipsoid {
	return &Ellipsoid{
		radii:               Cartesian3{x, y, z},
		radiiSquared:        Cartesian3{x * x, y * y, z * z},
		oneOverRadii:        Cartesian3{1 / x, 1 / y, 1 / z},
		oneOverRadiiSquared: Cartesian3{1 / (x * x), 1 / (y * y), 1 / (z * z)},
		maximumRadius:       max(x, y, z),
		minimumRadius:       min(x, y, z),
	}
}

// Radii returns the semi-axis lengths.
func (e *Ellipsoid) Radii() Cartesian3 { return e.radii }

// RadiiSquared returns the squared semi-axis lengths.
func (e *Ellipsoid) RadiiSquared() Cartesian3 { return e.radiiSquared }

// OneOverRadiiSquared returns the reciprocal squared semi-axes.
func (e *Ellipsoid) OneOverRadiiSquared() Cartesian3 { return e.oneOverRadiiSquared }

// MaximumRadius returns max(x, y, z).
func (e *Ellipsoid) MaximumRadius() float64 { return e.maximumRadius }

// MinimumRadius returns min(x, y, z).
func (e *Ellipsoid) MinimumRadius() float64 { return e.minimumRadius }

// GeodeticSurfaceNormal returns the outward surface normal at a point on (or
// near) the surface.
func (e *Ellipsoid) GeodeticSurfaceNormal(p Cartesian3) Cartesian3 {
	return p.MulComponents(e.oneOverRadiiSquared).Normalize()
}

// GeodeticSurfaceNormalCartographic returns the surface normal for a
// longitude/latitude pair.
func (e *Ellipsoid) GeodeticSurfaceNormalCartographic(g GeodeticCoordinate) Cartesian3 {
	lon, lat := g.Radians()
	cosLat := math.Cos(lat)
	return Cartesian3{
		X: cosLat * math.Cos(lon),
		Y: cosLat * math.Sin(lon),
		Z: math.Sin(lat),
	}.Normalize()
}

// ScaleToGeodeticSurface moves p along the geodetic normal onto the surface
// using a damped Newton iteration on the normal scale multiplier.
func (e *Ellipsoid) ScaleToGeodeticSurface(p Cartesian3) (Cartesian3, error) {
	inv := e.oneOverRadiiSquared

	x2 := p.X * p.X * inv.X
	y2 := p.Y * p.Y * inv.Y
	z2 := p.Z * p.Z * inv.Z

	squaredNorm := x2 + y2 + z2
	if squaredNorm < Epsilon1 {
		return Cartesian3{}, &DegenerateInputError{Point: p, SquaredNorm: squaredNorm}
	}

	ratio := math.Sqrt(1 / squaredNorm)
	intersection := p.Scale(ratio)
	gradient := intersection.MulComponents(inv).Scale(2)

	lambda := (1 - ratio) * p.Magnitude() / (0.5 * gradient.Magnitude())
	correction := 0.0

	var xm, ym, zm float64
	for i := 0; ; i++ {
		if i == maxNewtonIterations {
			return Cartesian3{}, &DegenerateInputError{Point: p, SquaredNorm: squaredNorm}
		}
		lambda -= correction

		xm = 1 / (1 + lambda*inv.X)
		ym = 1 / (1 + lambda*inv.Y)
		zm = 1 / (1 + lambda*inv.Z)

		xm2, ym2, zm2 := xm*xm, ym*ym, zm*zm
		xm3, ym3, zm3 := xm2*xm, ym2*ym, zm2*zm

		f := x2*xm2 + y2*ym2 + z2*zm2 - 1
		if math.Abs(f) <= Epsilon12 {
			break
		}

		denominator := x2*xm3*inv.X + y2*ym3*inv.Y + z2*zm3*inv.Z
		derivative := -2 * denominator
		correction = f / derivative
	}

	return Cartesian3{p.X * xm, p.Y * ym, p.Z * zm}, nil
}

// SpaceToGeographic converts a Cartesian point to geodetic coordinates.
func (e *Ellipsoid) SpaceToGeographic(p Cartesian3) (GeodeticCoordinate, error) {
	surface, err := e.ScaleToGeodeticSurface(p)
	if err != nil {
		return GeodeticCoordinate{}, err
	}

	n := e.GeodeticSurfaceNormal(surface)
	h := p.Sub(surface)

	height := h.Magnitude()
	if h.Dot(p) < 0 {
		height = -height
	}

	return GeodeticCoordinate{
		Longitude: ToDegrees(math.Atan2(n.Y, n.X)),
		Latitude:  ToDegrees(math.Asin(n.Z)),
		Altitude:  height,
	}, nil
}

// GeographicToSpace converts geodetic coordinates to a Cartesian point.
func (e *Ellipsoid) GeographicToSpace(g GeodeticCoordinate) Cartesian3 {
	n := e.GeodeticSurfaceNormalCartographic(g)
	k := e.radiiSquared.MulComponents(n)
	gamma := math.Sqrt(n.Dot(k))
	k = k.Scale(1 / gamma)
	return k.Add(n.Scale(g.Altitude))
}
