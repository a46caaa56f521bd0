package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagSchema  = flag.String("schema", "", "Tiling schema (web-mercator, geographic)")
	flagWidth   = flag.Int("width", 0, "Viewport width")
	flagHeight  = flag.Int("height", 0, "Viewport height")
	flagFrames  = flag.Int("frames", 0, "Number of frames to run")
	flagWorkers = flag.Int("workers", -1, "Culling workers (0 = sequential)")
	flagDumpDir = flag.String("dump", "", "Directory for visibility/HZB dumps")
	flagNoHZB   = flag.Bool("no-hzb", false, "Disable occlusion culling")
	flagWrite   = flag.String("write-config", "", "Write the resolved config to this path")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigPath returns the --write-config target, or "".
func WriteConfigPath() string {
	return *flagWrite
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagSchema != "" {
		cfg.LOD.Schema = *flagSchema
	}
	if *flagWidth > 0 {
		cfg.Render.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Render.Height = *flagHeight
	}
	if *flagFrames > 0 {
		cfg.Render.Frames = *flagFrames
	}
	if *flagWorkers >= 0 {
		cfg.Render.Workers = *flagWorkers
	}
	if *flagDumpDir != "" {
		cfg.Debug.DumpDir = *flagDumpDir
		if cfg.Debug.DumpEvery == 0 {
			cfg.Debug.DumpEvery = 1
		}
	}
	if *flagNoHZB {
		cfg.Render.HZB = false
	}
}
