package geo

import (
	"math"
	"testing"
)

func TestWebMercatorRoundTrip(t *testing.T) {
	p := NewWebMercatorProjection(WGS84)
	for _, g := range []GeodeticCoordinate{
		{Longitude: 0, Latitude: 0},
		{Longitude: 120.5, Latitude: 30.25, Altitude: 12},
		{Longitude: -179.9, Latitude: -84},
	} {
		back := p.Unproject(p.Project(g))
		if math.Abs(back.Longitude-g.Longitude) > 1e-9 || math.Abs(back.Latitude-g.Latitude) > 1e-9 ||
			back.Altitude != g.Altitude {
			t.Errorf("round trip %v -> %v", g, back)
		}
	}
}

func TestWebMercatorClampsLatitude(t *testing.T) {
	p := NewWebMercatorProjection(WGS84)
	top := p.Project(GeodeticCoordinate{Latitude: 89.9})
	limit := p.Project(GeodeticCoordinate{Latitude: MaximumMercatorLatitude})
	if top.Y != limit.Y {
		t.Errorf("latitude not clamped: %v vs %v", top.Y, limit.Y)
	}

	// At the cutoff the plane is square.
	halfWidth := math.Pi * WGS84.MaximumRadius()
	if math.Abs(limit.Y-halfWidth) > 1 {
		t.Errorf("y at cutoff = %v, want ~%v", limit.Y, halfWidth)
	}
}

func TestWebMercatorResolution(t *testing.T) {
	p := NewWebMercatorProjection(WGS84)
	r0 := p.Resolution(0)
	want := 2 * math.Pi * WGS84.MaximumRadius() / 256
	if math.Abs(r0-want) > 1e-9 {
		t.Errorf("Resolution(0) = %v, want %v", r0, want)
	}
	for level := 1; level < DefaultMaxZoom+2; level++ {
		if got := p.Resolution(level); math.Abs(got*2-p.Resolution(level-1)) > 1e-9 {
			t.Errorf("Resolution(%d) = %v should halve previous", level, got)
		}
	}
}

func TestProjectionFor(t *testing.T) {
	a, err := ProjectionFor("EPSG:3857")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ProjectionFor("EPSG:3857")
	if a != b {
		t.Error("projection registry should return the same instance")
	}
	if _, err := ProjectionFor("EPSG:0"); err == nil {
		t.Error("expected error for unknown CRS")
	}
}
