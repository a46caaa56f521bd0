// Package quadtree implements the tiling schema and the lazily materialised
// tile tree walked by the LOD selector.
package quadtree

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Faultbox/geoscape/pkg/geo"
)

// NativeRectangle is an axis-aligned extent in a projection's metric plane.
type NativeRectangle struct {
	West, South, East, North float64
}

// Width returns East - West.
func (r NativeRectangle) Width() float64 { return r.East - r.West }

// Height returns North - South.
func (r NativeRectangle) Height() float64 { return r.North - r.South }

var schemaIDs atomic.Int32

// Schema describes how the globe is split into tiles: a fixed grid of
// level-zero tiles, each divided into four at every following level.
type Schema struct {
	id              int
	projection      geo.Projection
	levelZeroTilesX int
	levelZeroTilesY int
	rectangle       geo.Rectangle
	native          NativeRectangle
}

// NewSchema creates a schema covering rectangle with the given level-zero
// tile grid. The native bounds are the projected rectangle corners.
func NewSchema(p geo.Projection, rectangle geo.Rectangle, tilesX, tilesY int) *Schema {
	sw := p.Project(geo.GeodeticCoordinate{Longitude: rectangle.West, Latitude: rectangle.South})
	ne := p.Project(geo.GeodeticCoordinate{Longitude: rectangle.East, Latitude: rectangle.North})
	return &Schema{
		id:              int(schemaIDs.Add(1)),
		projection:      p,
		levelZeroTilesX: tilesX,
		levelZeroTilesY: tilesY,
		rectangle:       rectangle,
		native:          NativeRectangle{West: sw.X, South: sw.Y, East: ne.X, North: ne.Y},
	}
}

// NewWebMercatorSchema returns the canonical single-root Web Mercator schema.
func NewWebMercatorSchema(e *geo.Ellipsoid) *Schema {
	rect := geo.NewRectangle(-180, -geo.MaximumMercatorLatitude, 180, geo.MaximumMercatorLatitude)
	return NewSchema(geo.NewWebMercatorProjection(e), rect, 1, 1)
}

// NewGeographicSchema returns the two-root equirectangular schema.
func NewGeographicSchema(e *geo.Ellipsoid) *Schema {
	return NewSchema(geo.NewGeographicProjection(e), geo.MaxRectangle, 2, 1)
}

// ID returns a process-unique schema identifier.
func (s *Schema) ID() int { return s.id }

// Projection returns the schema's projection.
func (s *Schema) Projection() geo.Projection { return s.projection }

// Ellipsoid returns the projection's ellipsoid.
func (s *Schema) Ellipsoid() *geo.Ellipsoid { return s.projection.Ellipsoid() }

// Rectangle returns the geodetic coverage.
func (s *Schema) Rectangle() geo.Rectangle { return s.rectangle }

// NativeRectangle returns the metric coverage.
func (s *Schema) NativeRectangle() NativeRectangle { return s.native }

// NumberOfXTilesAtLevel returns the tile count along X at a level.
func (s *Schema) NumberOfXTilesAtLevel(level int) int {
	return s.levelZeroTilesX << level
}

// NumberOfYTilesAtLevel returns the tile count along Y at a level.
func (s *Schema) NumberOfYTilesAtLevel(level int) int {
	return s.levelZeroTilesY << level
}

// IsCanonicalWebMercator reports whether this is the single-root Web Mercator
// schema, for which every root tile is a walk candidate.
func (s *Schema) IsCanonicalWebMercator() bool {
	_, ok := s.projection.(*geo.WebMercatorProjection)
	return ok && s.levelZeroTilesX == 1 && s.levelZeroTilesY == 1
}

// TileXYToNativeRectangle subdivides the native extent linearly. Row 0 is
// the northernmost row.
func (s *Schema) TileXYToNativeRectangle(x, y, level int) NativeRectangle {
	w := s.native.Width() / float64(s.NumberOfXTilesAtLevel(level))
	h := s.native.Height() / float64(s.NumberOfYTilesAtLevel(level))

	west := s.native.West + float64(x)*w
	north := s.native.North - float64(y)*h
	return NativeRectangle{West: west, South: north - h, East: west + w, North: north}
}

// TileXYToRectangle projects the native tile bounds back to a geodetic rectangle.
func (s *Schema) TileXYToRectangle(x, y, level int) geo.Rectangle {
	n := s.TileXYToNativeRectangle(x, y, level)
	sw := s.projection.Unproject(geo.Cartesian3{X: n.West, Y: n.South})
	ne := s.projection.Unproject(geo.Cartesian3{X: n.East, Y: n.North})
	return geo.Rectangle{West: sw.Longitude, South: sw.Latitude, East: ne.Longitude, North: ne.Latitude}
}

// PositionToTileXY returns the tile containing a surface position.
func (s *Schema) PositionToTileXY(g geo.GeodeticCoordinate, level int) (x, y int, ok bool) {
	if !s.rectangle.Contains(g) {
		return 0, 0, false
	}

	xTiles := s.NumberOfXTilesAtLevel(level)
	yTiles := s.NumberOfYTilesAtLevel(level)
	p := s.projection.Project(g)

	x = int(math.Floor((p.X - s.native.West) / (s.native.Width() / float64(xTiles))))
	y = int(math.Floor((s.native.North - p.Y) / (s.native.Height() / float64(yTiles))))
	x = min(max(x, 0), xTiles-1)
	y = min(max(y, 0), yTiles-1)
	return x, y, true
}

// String implements fmt.Stringer.
func (s *Schema) String() string {
	return fmt.Sprintf("schema#%d(%s %dx%d)", s.id, s.projection.Name(), s.levelZeroTilesX, s.levelZeroTilesY)
}
