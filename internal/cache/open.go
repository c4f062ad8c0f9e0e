package cache

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/logger"
)

// OpenOptions controls Open.
type OpenOptions struct {
	// Dir holds cache files. Empty disables caching for OBJ sources.
	Dir      string
	Compress bool
	// Rebuild ignores an existing cache file.
	Rebuild bool
	Loader  model.LoadOptions
	LoadOptions
}

// Open returns the model for path. A cache file loads directly. An OBJ file
// loads from its cache file when that is fresh and was built in the
// requested mode; otherwise the OBJ is parsed and the cache file rewritten.
// The second result reports whether a cache file was used.
func Open(path string, opts OpenOptions) (*model.Model, bool, error) {
	if strings.EqualFold(filepath.Ext(path), Ext) {
		m, err := Load(path, opts.LoadOptions)
		return m, err == nil, err
	}

	var cachePath string
	if opts.Dir != "" {
		cachePath = PathFor(opts.Dir, path)
		if m := openCached(cachePath, path, opts); m != nil {
			return m, true, nil
		}
	}

	m, err := model.Load(path, opts.Loader)
	if err != nil {
		return nil, false, err
	}
	if cachePath != "" {
		if err := Save(cachePath, m, opts.Compress); err != nil {
			// The model is usable without its cache file.
			logger.Warn("failed to write cache file", zap.String("path", cachePath), zap.Error(err))
		}
	}
	if opts.Activate && opts.Activator != nil {
		if err := m.Activate(opts.Activator); err != nil {
			return nil, false, err
		}
	}
	return m, false, nil
}

// openCached returns the cached model, or nil when it is missing, stale,
// unreadable or in the wrong mode.
func openCached(cachePath, source string, opts OpenOptions) *model.Model {
	if opts.Rebuild || !Fresh(cachePath, source) {
		return nil
	}

	m, err := Load(cachePath, LoadOptions{})
	if err != nil {
		logger.Warn("ignoring unreadable cache file", zap.String("path", cachePath), zap.Error(err))
		return nil
	}
	// Libraries and textures are only known after decoding.
	if m.Mode != opts.Loader.Mode || !Fresh(cachePath, m.Sources...) {
		logger.Debug("cache file stale", zap.String("path", cachePath))
		return nil
	}

	if opts.Activate && opts.Activator != nil {
		if err := m.Activate(opts.Activator); err != nil {
			logger.Warn("activating cached model", zap.Error(err))
			return nil
		}
	}
	return m
}
