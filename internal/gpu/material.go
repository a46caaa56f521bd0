package gpu

import "fmt"

// MaterialType selects the shading model of a mesh.
type MaterialType uint32

// Material types.
const (
	MaterialUnlit MaterialType = iota
	MaterialLambert
	MaterialPBR
	materialCount
)

// ParseMaterial maps an asset material name to a MaterialType.
func ParseMaterial(name string) (MaterialType, error) {
	switch name {
	case "", "unlit", "basic":
		return MaterialUnlit, nil
	case "lambert":
		return MaterialLambert, nil
	case "pbr", "standard":
		return MaterialPBR, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMaterial, name)
}

// Valid reports whether m is a known material.
func (m MaterialType) Valid() bool { return m < materialCount }

func (m MaterialType) String() string {
	switch m {
	case MaterialUnlit:
		return "unlit"
	case MaterialLambert:
		return "lambert"
	case MaterialPBR:
		return "pbr"
	}
	return fmt.Sprintf("material(%d)", uint32(m))
}
