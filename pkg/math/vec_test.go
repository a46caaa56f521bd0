package math

import (
	"testing"
)

func TestVec2MinMax(t *testing.T) {
	a := Vec2{1, 4}
	b := Vec2{3, 2}
	if got, want := a.Min(b), (Vec2{1, 2}); got != want {
		t.Errorf("Vec2.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec2{3, 4}); got != want {
		t.Errorf("Vec2.Max() = %v, want %v", got, want)
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 4, 12}.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("zero vector should normalize to zero")
	}
}

func TestVec4Dot(t *testing.T) {
	plane := Vec4{0, 0, 1, -5}
	if got := plane.Dot(Vec3{7, 7, 8}.Vec4(1)); got != 3 {
		t.Errorf("Vec4.Dot() = %v, want 3", got)
	}
	if got := plane.Negate().Dot(Vec3{0, 0, 8}.Vec4(1)); got != -3 {
		t.Errorf("negated plane distance = %v, want -3", got)
	}
}
