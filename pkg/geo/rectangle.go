package geo

import (
	"fmt"
	"math"
)

// Rectangle is a geodetic extent in degrees. East may be smaller than West
// when the rectangle crosses the antimeridian.
type Rectangle struct {
	West, South, East, North float64
}

// MaxRectangle covers the whole ellipsoid.
var MaxRectangle = Rectangle{West: -180, South: -90, East: 180, North: 90}

// NewRectangle builds a rectangle from degrees.
func NewRectangle(west, south, east, north float64) Rectangle {
	return Rectangle{West: west, South: south, East: east, North: north}
}

// Width returns the longitudinal extent in degrees, accounting for wrap.
func (r Rectangle) Width() float64 {
	return ToDegrees(r.widthRadians())
}

// Height returns the latitudinal extent in degrees.
func (r Rectangle) Height() float64 {
	return r.North - r.South
}

// Center returns the rectangle centre on the surface.
func (r Rectangle) Center() GeodeticCoordinate {
	west := ToRadians(r.West)
	lon := west + r.widthRadians()/2
	if lon > math.Pi {
		lon -= TwoPi
	}
	return GeodeticCoordinate{
		Longitude: ToDegrees(lon),
		Latitude:  (r.South + r.North) / 2,
	}
}

// Contains reports whether the surface point lies in the rectangle. Longitudes
// are normalized to [0, 2π) before comparison.
func (r Rectangle) Contains(g GeodeticCoordinate) bool {
	if g.Latitude < r.South || g.Latitude > r.North {
		return false
	}
	lo, hi := r.lonSpan()
	if hi-lo >= TwoPi-Epsilon14 {
		return true
	}
	lon := ZeroToTwoPi(ToRadians(g.Longitude))
	if lon < lo-Epsilon14 {
		lon += TwoPi
	}
	return lon <= hi+Epsilon14
}

// Intersects reports whether the two rectangles share a region of non-zero area.
func (r Rectangle) Intersects(o Rectangle) bool {
	_, ok := r.Intersection(o)
	return ok
}

// Intersection returns the overlap of r and o. When the longitude spans
// overlap in two places only the first one is returned.
func (r Rectangle) Intersection(o Rectangle) (Rectangle, bool) {
	south := max(r.South, o.South)
	north := min(r.North, o.North)
	if south >= north {
		return Rectangle{}, false
	}

	aLo, aHi := r.lonSpan()
	bLo, bHi := o.lonSpan()
	for _, shift := range []float64{0, -TwoPi, TwoPi} {
		lo := max(aLo, bLo+shift)
		hi := min(aHi, bHi+shift)
		if hi-lo > Epsilon14 {
			return Rectangle{
				West:  ToDegrees(wrapWest(lo)),
				South: south,
				East:  ToDegrees(wrapPi(hi)),
				North: north,
			}, true
		}
	}
	return Rectangle{}, false
}

// String implements fmt.Stringer.
func (r Rectangle) String() string {
	return fmt.Sprintf("[W %.6f S %.6f E %.6f N %.6f]", r.West, r.South, r.East, r.North)
}

func (r Rectangle) widthRadians() float64 {
	west, east := ToRadians(r.West), ToRadians(r.East)
	if east < west {
		east += TwoPi
	}
	return east - west
}

// lonSpan returns the longitude interval as [lo, hi] radians with lo in [0, 2π).
func (r Rectangle) lonSpan() (lo, hi float64) {
	lo = ZeroToTwoPi(ToRadians(r.West))
	return lo, lo + r.widthRadians()
}

// wrapWest maps an angle into [-π, π).
func wrapWest(a float64) float64 {
	a = ZeroToTwoPi(a)
	if a >= math.Pi {
		a -= TwoPi
	}
	return a
}

// wrapPi maps an angle into (-π, π], keeping +π for an eastern edge on the antimeridian.
func wrapPi(a float64) float64 {
	a = ZeroToTwoPi(a)
	if a > math.Pi+Epsilon14 {
		a -= TwoPi
	}
	return a
}
