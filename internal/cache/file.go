package cache

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/logger"
)

// Ext is the file extension of cache files.
const Ext = ".objc"

// LoadOptions controls what happens after a cache file is decoded.
type LoadOptions struct {
	// Activate acquires GPU state right after decoding. Otherwise the model
	// stays inactive until its first draw.
	Activate  bool
	Activator model.Activator
}

// Save writes m to path, replacing any existing file only once the new one
// is complete.
func Save(path string, m *model.Model, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	start := time.Now()
	w := bufio.NewWriter(tmp)
	if err := Encode(w, m, compress); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	logger.Info("model cached",
		zap.String("path", path),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("batches", m.BatchCount()),
		zap.Bool("compressed", compress),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Load reads a cache file. The source OBJ and MTL files are not needed.
func Load(path string, opts LoadOptions) (*model.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	start := time.Now()
	m, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if opts.Activate && opts.Activator != nil {
		if err := m.Activate(opts.Activator); err != nil {
			return nil, err
		}
	}

	logger.Info("model loaded from cache",
		zap.String("path", path),
		zap.String("name", m.Name),
		zap.Int("vertices", m.VertexCount()),
		zap.Bool("active", m.Active()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return m, nil
}

// PathFor returns the cache file for source inside dir. The name keeps the
// source's base name for readability and adds a hash of its absolute path so
// same-named models in different directories do not collide.
func PathFor(dir, source string) string {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	h := fnv.New64a()
	h.Write([]byte(abs))
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, fmt.Sprintf("%s-%016x%s", base, h.Sum64(), Ext))
}

// Fresh reports whether the cache file exists and is at least as new as
// every source. Missing sources count as unchanged.
func Fresh(cachePath string, sources ...string) bool {
	ci, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	for _, s := range sources {
		si, err := os.Stat(s)
		if err != nil {
			continue
		}
		if si.ModTime().After(ci.ModTime()) {
			return false
		}
	}
	return true
}
