package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagBackend = flag.String("backend", "", "Render backend: immediate, indexed or buffer")
	flagFlat    = flag.Bool("flat", false, "Compact without deduplication (flat vertex runs)")
	flagNoSwap  = flag.Bool("no-swap", false, "Keep the file's Y and Z axes")
	flagWidth   = flag.Int("width", 0, "Window width")
	flagHeight  = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagBackend != "" {
		cfg.Render.Backend = *flagBackend
	}
	if *flagFlat {
		cfg.Loader.Mode = "flat"
	}
	if *flagNoSwap {
		cfg.Loader.SwapYZ = false
	}
	if *flagWidth > 0 {
		cfg.Render.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Render.Height = *flagHeight
	}
}
