package gpu

import "errors"

var (
	ErrUnknownMesh         = errors.New("instance references unknown mesh")
	ErrMalformedMesh       = errors.New("malformed mesh payload")
	ErrUnsupportedMaterial = errors.New("unsupported material type")
)
