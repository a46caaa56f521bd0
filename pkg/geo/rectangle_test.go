package geo

import (
	"math"
	"testing"
)

func TestRectangleWidthWrap(t *testing.T) {
	tests := []struct {
		name string
		r    Rectangle
		want float64
	}{
		{"regular", NewRectangle(-10, 0, 20, 10), 30},
		{"antimeridian", NewRectangle(170, 0, -170, 10), 20},
		{"world", MaxRectangle, 360},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Width(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Width() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectangleContains(t *testing.T) {
	wrap := NewRectangle(170, -10, -170, 10)
	tests := []struct {
		name string
		r    Rectangle
		g    GeodeticCoordinate
		want bool
	}{
		{"inside", NewRectangle(0, 0, 10, 10), GeodeticCoordinate{Longitude: 5, Latitude: 5}, true},
		{"on west edge", NewRectangle(0, 0, 10, 10), GeodeticCoordinate{Longitude: 0, Latitude: 5}, true},
		{"outside lat", NewRectangle(0, 0, 10, 10), GeodeticCoordinate{Longitude: 5, Latitude: 11}, false},
		{"outside lon", NewRectangle(0, 0, 10, 10), GeodeticCoordinate{Longitude: -1, Latitude: 5}, false},
		{"wrap east side", wrap, GeodeticCoordinate{Longitude: 175, Latitude: 0}, true},
		{"wrap west side", wrap, GeodeticCoordinate{Longitude: -175, Latitude: 0}, true},
		{"wrap antimeridian", wrap, GeodeticCoordinate{Longitude: 180, Latitude: 0}, true},
		{"wrap outside", wrap, GeodeticCoordinate{Longitude: 0, Latitude: 0}, false},
		{"world", MaxRectangle, GeodeticCoordinate{Longitude: -180, Latitude: -90}, true},
		{"lon beyond 180", NewRectangle(-10, 0, 10, 10), GeodeticCoordinate{Longitude: 365, Latitude: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(tt.g); got != tt.want {
				t.Errorf("%v.Contains(%v) = %v, want %v", tt.r, tt.g, got, tt.want)
			}
		})
	}
}

func TestRectangleIntersection(t *testing.T) {
	a := NewRectangle(0, 0, 20, 20)
	b := NewRectangle(10, 10, 30, 30)
	got, ok := a.Intersection(b)
	if !ok {
		t.Fatal("expected intersection")
	}
	want := NewRectangle(10, 10, 20, 20)
	if math.Abs(got.West-want.West) > 1e-9 || math.Abs(got.East-want.East) > 1e-9 ||
		got.South != want.South || got.North != want.North {
		t.Errorf("Intersection = %v, want %v", got, want)
	}

	if a.Intersects(NewRectangle(20, 0, 30, 20)) {
		t.Error("rectangles sharing only an edge should not intersect")
	}
	if a.Intersects(NewRectangle(0, 30, 20, 40)) {
		t.Error("rectangles separated in latitude should not intersect")
	}
}

func TestRectangleIntersectionAcrossAntimeridian(t *testing.T) {
	wrap := NewRectangle(170, -10, -170, 10)
	east := NewRectangle(-180, -90, -90, 90)
	got, ok := wrap.Intersection(east)
	if !ok {
		t.Fatal("expected intersection across antimeridian")
	}
	if math.Abs(got.Width()-10) > 1e-9 {
		t.Errorf("intersection width = %v, want 10 (got %v)", got.Width(), got)
	}
	if !MaxRectangle.Intersects(wrap) {
		t.Error("world rectangle should intersect any rectangle")
	}
}

func TestRectangleCenter(t *testing.T) {
	c := NewRectangle(170, -10, -170, 10).Center()
	if math.Abs(math.Abs(c.Longitude)-180) > 1e-9 || c.Latitude != 0 {
		t.Errorf("Center() = %v, want (±180, 0)", c)
	}
}
