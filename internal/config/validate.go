package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/geoscape/internal/gpu"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Validate checks value ranges that would otherwise surface as confusing
// failures deep inside the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Render.Width <= 0 || c.Render.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidConfig, c.Render.Width, c.Render.Height)
	case c.Render.FovDegrees <= 0 || c.Render.FovDegrees >= 180:
		return fmt.Errorf("%w: fov_degrees %v", ErrInvalidConfig, c.Render.FovDegrees)
	case c.Render.Near <= 0 || c.Render.Far <= c.Render.Near:
		return fmt.Errorf("%w: near %v far %v", ErrInvalidConfig, c.Render.Near, c.Render.Far)
	case c.LOD.Schema != "web-mercator" && c.LOD.Schema != "geographic":
		return fmt.Errorf("%w: unknown schema %q", ErrInvalidConfig, c.LOD.Schema)
	case c.LOD.MaxLevel < 0 || c.LOD.MaxLevel > 30:
		return fmt.Errorf("%w: max_level %d", ErrInvalidConfig, c.LOD.MaxLevel)
	case c.Cull.MaxMeshlets < 0 || c.Cull.MaxMeshlets > gpu.MaxRuntimeMeshlets:
		return fmt.Errorf("%w: max_meshlets %d, encodable %d", ErrInvalidConfig, c.Cull.MaxMeshlets, gpu.MaxRuntimeMeshlets)
	case c.Debug.DumpFormat != "png" && c.Debug.DumpFormat != "webp":
		return fmt.Errorf("%w: dump_format %q", ErrInvalidConfig, c.Debug.DumpFormat)
	}
	return nil
}
