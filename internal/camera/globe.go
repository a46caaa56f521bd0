package camera

import (
	"math"

	"github.com/Faultbox/geoscape/pkg/geo"
)

// GeoState is the camera snapshot consumed by the tile LOD selector.
type GeoState struct {
	Ground         geo.GeodeticCoordinate // Point below the camera
	Height         float64                // Metres above the ellipsoid
	ViewRectangle  geo.Rectangle          // Approximate visible ground extent
	ViewportHeight float64                // Pixels
	SSEDenominator float64                // 2·tan(fovY/2)
	Version        uint64
}

// GlobeCamera looks straight down at a geodetic target from a height above
// the ellipsoid. Every mutation bumps Version, which is the camera-change
// signal for LOD selection.
type GlobeCamera struct {
	ellipsoid *geo.Ellipsoid
	target    geo.GeodeticCoordinate
	height    float64
	fovY      float64

	viewportWidth  int
	viewportHeight int

	MinHeight       float64
	MaxHeight       float64
	ZoomSensitivity float64

	version uint64
}

// NewGlobeCamera creates a camera above target at the given height.
func NewGlobeCamera(e *geo.Ellipsoid, target geo.GeodeticCoordinate, height float64, width, viewportHeight int) *GlobeCamera {
	return &GlobeCamera{
		ellipsoid:       e,
		target:          target,
		height:          height,
		fovY:            math.Pi / 3,
		viewportWidth:   width,
		viewportHeight:  viewportHeight,
		MinHeight:       10,
		MaxHeight:       4 * e.MaximumRadius(),
		ZoomSensitivity: 0.1,
		version:         1,
	}
}

// Version increments whenever the camera moves.
func (c *GlobeCamera) Version() uint64 { return c.version }

// Height returns the height above the ellipsoid.
func (c *GlobeCamera) Height() float64 { return c.height }

// Ground returns the surface point below the camera.
func (c *GlobeCamera) Ground() geo.GeodeticCoordinate {
	return geo.GeodeticCoordinate{Longitude: c.target.Longitude, Latitude: c.target.Latitude}
}

// Position returns the camera position in ellipsoid-centred space.
func (c *GlobeCamera) Position() geo.Cartesian3 {
	g := c.Ground()
	g.Altitude = c.height
	return c.ellipsoid.GeographicToSpace(g)
}

// SetFovY sets the vertical field of view in radians.
func (c *GlobeCamera) SetFovY(fov float64) {
	c.fovY = fov
	c.version++
}

// SetViewport resizes the viewport.
func (c *GlobeCamera) SetViewport(width, height int) {
	c.viewportWidth, c.viewportHeight = width, height
	c.version++
}

// SetTarget moves the camera over a new ground point.
func (c *GlobeCamera) SetTarget(g geo.GeodeticCoordinate) {
	c.target = g
	c.version++
}

// SetHeight sets the height above the ellipsoid, clamped to the limits.
func (c *GlobeCamera) SetHeight(h float64) {
	c.height = min(max(h, c.MinHeight), c.MaxHeight)
	c.version++
}

// HandleZoom scales the height by a scroll delta.
func (c *GlobeCamera) HandleZoom(delta float64) {
	c.SetHeight(c.height - delta*c.height*c.ZoomSensitivity)
}

// HandlePan moves the target by a fraction of the visible extent.
func (c *GlobeCamera) HandlePan(right, up float64) {
	r := c.ViewRectangle()
	lon := c.target.Longitude + right*r.Width()/2
	lat := c.target.Latitude + up*r.Height()/2
	lon = math.Mod(lon+540, 360) - 180
	lat = min(max(lat, -90), 90)
	c.SetTarget(geo.GeodeticCoordinate{Longitude: lon, Latitude: lat})
}

// ViewRectangle approximates the visible ground extent of a nadir view.
func (c *GlobeCamera) ViewRectangle() geo.Rectangle {
	aspect := float64(c.viewportWidth) / float64(c.viewportHeight)
	halfV := c.height * math.Tan(c.fovY/2)
	halfH := halfV * aspect

	r := c.ellipsoid.MaximumRadius()
	dLat := geo.ToDegrees(halfV / r)
	cosLat := math.Cos(geo.ToRadians(c.target.Latitude))

	south := max(c.target.Latitude-dLat, -90)
	north := min(c.target.Latitude+dLat, 90)
	if cosLat < 1e-6 || south == -90 || north == 90 {
		return geo.Rectangle{West: -180, South: south, East: 180, North: north}
	}
	dLon := geo.ToDegrees(halfH/r) / cosLat
	if dLon >= 180 {
		return geo.Rectangle{West: -180, South: south, East: 180, North: north}
	}

	west := math.Mod(c.target.Longitude-dLon+540, 360) - 180
	east := math.Mod(c.target.Longitude+dLon+540, 360) - 180
	return geo.Rectangle{West: west, South: south, East: east, North: north}
}

// SSEDenominator is 2·tan(fovY/2).
func (c *GlobeCamera) SSEDenominator() float64 {
	return 2 * math.Tan(c.fovY/2)
}

// State snapshots the camera for LOD selection.
func (c *GlobeCamera) State() GeoState {
	return GeoState{
		Ground:         c.Ground(),
		Height:         c.height,
		ViewRectangle:  c.ViewRectangle(),
		ViewportHeight: float64(c.viewportHeight),
		SSEDenominator: c.SSEDenominator(),
		Version:        c.version,
	}
}
