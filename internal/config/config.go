// Package config handles pipeline configuration loading and management.
package config

import "time"

// Config holds all pipeline settings.
type Config struct {
	Render  RenderConfig  `yaml:"render"`
	LOD     LODConfig     `yaml:"lod"`
	Cull    CullConfig    `yaml:"cull"`
	Stream  StreamConfig  `yaml:"stream"`
	Debug   DebugConfig   `yaml:"debug"`
	Logging LoggingConfig `yaml:"logging"`
}

// RenderConfig holds viewport and camera settings.
type RenderConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FovDegrees float64 `yaml:"fov_degrees"`
	Near       float64 `yaml:"near"`
	Far        float64 `yaml:"far"`
	HZB        bool    `yaml:"hzb_enabled"`
	Workers    int     `yaml:"workers"` // 0 = sequential dispatch
	Frames     int     `yaml:"frames"`
}

// LODConfig holds tile selection settings.
type LODConfig struct {
	Schema         string  `yaml:"schema"` // web-mercator | geographic
	MaxLevel       int     `yaml:"max_level"`
	SSEThreshold   float64 `yaml:"sse_threshold"`
	SamplesPerTile float64 `yaml:"samples_per_tile"`
}

// CullConfig holds meshlet culling settings.
type CullConfig struct {
	ErrorThresholdPx float32 `yaml:"error_threshold_px"`
	NearPlaneMargin  float32 `yaml:"near_plane_margin"`
	MaxMeshlets      int     `yaml:"max_meshlets"`
}

// StreamConfig holds tile streaming settings.
type StreamConfig struct {
	MaxInFlight  int           `yaml:"max_in_flight"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DebugConfig holds debug dump settings.
type DebugConfig struct {
	DumpDir    string `yaml:"dump_dir"`
	DumpFormat string `yaml:"dump_format"` // png | webp
	DumpEvery  int    `yaml:"dump_every"`  // frames, 0 = never
	DumpScale  int    `yaml:"dump_scale"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Render: RenderConfig{
			Width:      320,
			Height:     180,
			FovDegrees: 60,
			Near:       0.1,
			Far:        5000,
			HZB:        true,
			Workers:    4,
			Frames:     8,
		},
		LOD: LODConfig{
			Schema:         "web-mercator",
			MaxLevel:       20,
			SSEThreshold:   2.0,
			SamplesPerTile: 65,
		},
		Cull: CullConfig{
			ErrorThresholdPx: 1.0,
			NearPlaneMargin:  4,
			MaxMeshlets:      1 << 20,
		},
		Stream: StreamConfig{
			MaxInFlight:  8,
			FetchTimeout: 5 * time.Second,
		},
		Debug: DebugConfig{
			DumpDir:    "",
			DumpFormat: "png",
			DumpEvery:  0,
			DumpScale:  2,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
