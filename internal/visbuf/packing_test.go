package visbuf

import (
	"errors"
	"testing"
)

func TestEncodeDecodeBijection(t *testing.T) {
	meshlets := []uint32{0, 1, 2, 127, 128, 1 << 20, MaxMeshletIndex - 1, MaxMeshletIndex}
	for m := uint32(3); m < MaxMeshletIndex; m += 104729 {
		meshlets = append(meshlets, m)
	}
	for _, m := range meshlets {
		for tri := uint32(0); tri <= MaxTriangleIndex; tri++ {
			v, err := Encode(m, tri)
			if err != nil {
				t.Fatalf("Encode(%d, %d): %v", m, tri, err)
			}
			if v == NoCoverage {
				t.Fatalf("Encode(%d, %d) = 0", m, tri)
			}
			gm, gt, ok := Decode(v)
			if !ok || gm != m || gt != tri {
				t.Fatalf("Decode(Encode(%d, %d)) = %d, %d, %v", m, tri, gm, gt, ok)
			}
		}
	}
}

func TestEncodeLayout(t *testing.T) {
	if got := MustEncode(0, 0); got != 1<<7 {
		t.Errorf("MustEncode(0, 0) = %#x, want 0x80", got)
	}
	if got := MustEncode(2, 5); got != 3<<7|5 {
		t.Errorf("MustEncode(2, 5) = %#x", got)
	}
	if got := MustEncode(MaxMeshletIndex, MaxTriangleIndex); got != 0xFFFFFFFF {
		t.Errorf("max encoding = %#x, want 0xffffffff", got)
	}
}

func TestEncodeOverflow(t *testing.T) {
	if _, err := Encode(MaxMeshletIndex+1, 0); !errors.Is(err, ErrMeshletIndexOverflow) {
		t.Errorf("err = %v, want ErrMeshletIndexOverflow", err)
	}
	if _, err := Encode(0, 128); !errors.Is(err, ErrTriangleIndexOverflow) {
		t.Errorf("err = %v, want ErrTriangleIndexOverflow", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustEncode did not panic on overflow")
		}
	}()
	MustEncode(1<<25, 0)
}

func TestDecodeNoCoverage(t *testing.T) {
	if _, _, ok := Decode(NoCoverage); ok {
		t.Error("Decode(0) reported coverage")
	}
}
