// Package config handles loading and saving of loader, cache and viewer
// settings.
package config

import (
	"path/filepath"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/engine/texture"
)

// Config holds all settings.
type Config struct {
	Loader  LoaderConfig  `yaml:"loader"`
	Cache   CacheConfig   `yaml:"cache"`
	Render  RenderConfig  `yaml:"render"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoaderConfig holds OBJ parsing and compaction settings.
type LoaderConfig struct {
	SwapYZ           bool   `yaml:"swap_yz"`
	ReorderMaterials bool   `yaml:"reorder_materials"`
	ReorderPolygons  bool   `yaml:"reorder_polygons"`
	TreatPolygon     bool   `yaml:"treat_polygon"`
	Mode             string `yaml:"mode"`             // indexed or flat
	TextureMaxSize   int    `yaml:"texture_max_size"` // 0 = no limit
	FlipTextures     bool   `yaml:"flip_textures"`
}

// CacheConfig holds binary model cache settings.
type CacheConfig struct {
	Dir            string `yaml:"dir"`
	Compress       bool   `yaml:"compress"`
	ActivateOnLoad bool   `yaml:"activate_on_load"`
}

// RenderConfig holds viewer settings.
type RenderConfig struct {
	Backend string  `yaml:"backend"` // immediate, indexed or buffer
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	VSync   bool    `yaml:"vsync"`
	FOV     float32 `yaml:"fov"` // Vertical, in degrees
	// Lighting enables the headlight for batches with normals.
	Lighting bool `yaml:"lighting"`

	ScreenshotDir string `yaml:"screenshot_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Loader: LoaderConfig{
			SwapYZ:           true,
			ReorderMaterials: true,
			ReorderPolygons:  true,
			TreatPolygon:     false,
			Mode:             "indexed",
			TextureMaxSize:   0,
			FlipTextures:     true,
		},
		Cache: CacheConfig{
			Dir:            filepath.Join(ConfigDir(), "cache"),
			Compress:       true,
			ActivateOnLoad: true,
		},
		Render: RenderConfig{
			Backend:  "buffer",
			Width:    1280,
			Height:   720,
			VSync:    true,
			FOV:      45,
			Lighting: true,

			ScreenshotDir: "screenshots",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Options converts the loader settings for model.Load.
func (c LoaderConfig) Options() (model.LoadOptions, error) {
	mode, err := model.ParseMode(c.Mode)
	if err != nil {
		return model.LoadOptions{}, err
	}
	return model.LoadOptions{
		SwapYZ:           c.SwapYZ,
		ReorderMaterials: c.ReorderMaterials,
		ReorderPolygons:  c.ReorderPolygons,
		TreatPolygon:     c.TreatPolygon,
		Mode:             mode,
		Images: texture.NewLoader(texture.Options{
			Flip:    c.FlipTextures,
			MaxSize: c.TextureMaxSize,
		}),
	}, nil
}
