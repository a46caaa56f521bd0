package geo

import (
	"fmt"
	"math"
	"sync"
)

// Web Mercator defaults.
const (
	// MaximumMercatorLatitude is the latitude at which the Mercator plane is square.
	MaximumMercatorLatitude = 85.0511287798
	DefaultTileSize         = 256
	DefaultMaxZoom          = 23
)

// Projection maps geodetic coordinates onto a metric plane and back.
type Projection interface {
	Name() string
	Ellipsoid() *Ellipsoid
	Project(g GeodeticCoordinate) Cartesian3
	Unproject(p Cartesian3) GeodeticCoordinate
	// Resolution returns the metric width of one tile pixel at a level.
	Resolution(level int) float64
}

// WebMercatorProjection is the spherical Mercator projection (EPSG:3857).
type WebMercatorProjection struct {
	ellipsoid      *Ellipsoid
	semimajorAxis  float64
	oneOverSemiMaj float64
	tileSize       int
	resolutions    []float64
}

// NewWebMercatorProjection creates a projection with 256px tiles and
// precomputed resolutions for levels [0, DefaultMaxZoom).
func NewWebMercatorProjection(e *Ellipsoid) *WebMercatorProjection {
	return NewWebMercatorProjectionWithTiles(e, DefaultTileSize, DefaultMaxZoom)
}

// NewWebMercatorProjectionWithTiles creates a projection with a custom tile
// size and resolution table length.
func NewWebMercatorProjectionWithTiles(e *Ellipsoid, tileSize, maxZoom int) *WebMercatorProjection {
	p := &WebMercatorProjection{
		ellipsoid:      e,
		semimajorAxis:  e.MaximumRadius(),
		oneOverSemiMaj: 1 / e.MaximumRadius(),
		tileSize:       tileSize,
		resolutions:    make([]float64, maxZoom),
	}
	for level := range p.resolutions {
		p.resolutions[level] = p.computeResolution(level)
	}
	return p
}

// Name implements Projection.
func (p *WebMercatorProjection) Name() string { return "EPSG:3857" }

// Ellipsoid implements Projection.
func (p *WebMercatorProjection) Ellipsoid() *Ellipsoid { return p.ellipsoid }

// Project converts geodetic coordinates to Mercator metres. Latitude is
// silently clamped to ±MaximumMercatorLatitude.
func (p *WebMercatorProjection) Project(g GeodeticCoordinate) Cartesian3 {
	lon := ToRadians(g.Longitude)
	return Cartesian3{
		X: lon * p.semimajorAxis,
		Y: GeodeticLatitudeToMercatorAngle(ToRadians(g.Latitude)) * p.semimajorAxis,
		Z: g.Altitude,
	}
}

// Unproject converts Mercator metres to geodetic coordinates.
func (p *WebMercatorProjection) Unproject(c Cartesian3) GeodeticCoordinate {
	return GeodeticCoordinate{
		Longitude: ToDegrees(c.X * p.oneOverSemiMaj),
		Latitude:  ToDegrees(MercatorAngleToGeodeticLatitude(c.Y * p.oneOverSemiMaj)),
		Altitude:  c.Z,
	}
}

// Resolution implements Projection.
func (p *WebMercatorProjection) Resolution(level int) float64 {
	if level >= 0 && level < len(p.resolutions) {
		return p.resolutions[level]
	}
	return p.computeResolution(level)
}

func (p *WebMercatorProjection) computeResolution(level int) float64 {
	return TwoPi * p.semimajorAxis / (float64(p.tileSize) * math.Pow(2, float64(level)))
}

// GeodeticLatitudeToMercatorAngle converts a latitude in radians to the
// Mercator angle, clamping to the Web Mercator cutoff.
func GeodeticLatitudeToMercatorAngle(lat float64) float64 {
	maxLat := ToRadians(MaximumMercatorLatitude)
	lat = math.Max(-maxLat, math.Min(maxLat, lat))
	sinLat := math.Sin(lat)
	return 0.5 * math.Log((1+sinLat)/(1-sinLat))
}

// MercatorAngleToGeodeticLatitude is the inverse of GeodeticLatitudeToMercatorAngle.
func MercatorAngleToGeodeticLatitude(angle float64) float64 {
	return math.Pi/2 - 2*math.Atan(math.Exp(-angle))
}

// GeographicProjection is the equirectangular projection (EPSG:4326):
// metres are radians times the maximum radius.
type GeographicProjection struct {
	ellipsoid     *Ellipsoid
	semimajorAxis float64
	tileSize      int
}

// NewGeographicProjection creates an equirectangular projection.
func NewGeographicProjection(e *Ellipsoid) *GeographicProjection {
	return &GeographicProjection{
		ellipsoid:     e,
		semimajorAxis: e.MaximumRadius(),
		tileSize:      DefaultTileSize,
	}
}

// Name implements Projection.
func (p *GeographicProjection) Name() string { return "EPSG:4326" }

// Ellipsoid implements Projection.
func (p *GeographicProjection) Ellipsoid() *Ellipsoid { return p.ellipsoid }

// Project implements Projection.
func (p *GeographicProjection) Project(g GeodeticCoordinate) Cartesian3 {
	return Cartesian3{
		X: ToRadians(g.Longitude) * p.semimajorAxis,
		Y: ToRadians(g.Latitude) * p.semimajorAxis,
		Z: g.Altitude,
	}
}

// Unproject implements Projection.
func (p *GeographicProjection) Unproject(c Cartesian3) GeodeticCoordinate {
	return GeodeticCoordinate{
		Longitude: ToDegrees(c.X / p.semimajorAxis),
		Latitude:  ToDegrees(c.Y / p.semimajorAxis),
		Altitude:  c.Z,
	}
}

// Resolution implements Projection. Level 0 spans half the globe per tile.
func (p *GeographicProjection) Resolution(level int) float64 {
	return math.Pi * p.semimajorAxis / (float64(p.tileSize) * math.Pow(2, float64(level)))
}

// Well-known ellipsoids.
var (
	WGS84      = NewEllipsoid(6378137.0, 6378137.0, 6356752.3142451793)
	UnitSphere = NewEllipsoid(1, 1, 1)
)

var (
	registryOnce sync.Once
	registry     map[string]Projection
)

// ProjectionFor returns the process-wide projection for a coordinate
// reference system name.
func ProjectionFor(crs string) (Projection, error) {
	registryOnce.Do(func() {
		registry = map[string]Projection{
			"EPSG:3857": NewWebMercatorProjection(WGS84),
			"EPSG:4326": NewGeographicProjection(WGS84),
		}
	})
	p, ok := registry[crs]
	if !ok {
		return nil, fmt.Errorf("unknown coordinate reference system %q", crs)
	}
	return p, nil
}
