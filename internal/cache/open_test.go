package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/fasterobj/internal/engine/model"
)

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	files := map[string]string{
		"box.mtl": "newmtl red\nKd 1 0 0\n",
		"box.obj": "mtllib box.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nv 1 1 0\nusemtl red\nf 1 2 4 3\nf 1 2 3\n",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "box.obj")
}

func age(t *testing.T, d time.Duration, paths ...string) {
	t.Helper()
	when := time.Now().Add(d)
	for _, p := range paths {
		if err := os.Chtimes(p, when, when); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir)
	mtl := filepath.Join(dir, "box.mtl")
	age(t, -time.Hour, source, mtl)

	opts := OpenOptions{
		Dir:      filepath.Join(dir, "cache"),
		Compress: true,
		Loader:   model.DefaultLoadOptions(),
	}

	m, cached, err := Open(source, opts)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if cached {
		t.Error("first Open cannot hit the cache")
	}
	if _, err := os.Stat(PathFor(opts.Dir, source)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	again, cached, err := Open(source, opts)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if !cached {
		t.Error("second Open should load the cache file")
	}
	if again.VertexCount() != m.VertexCount() || again.BatchCount() != m.BatchCount() {
		t.Error("cached model differs from parsed model")
	}

	t.Run("rebuild", func(t *testing.T) {
		o := opts
		o.Rebuild = true
		if _, cached, err := Open(source, o); err != nil || cached {
			t.Errorf("Rebuild: cached=%v err=%v", cached, err)
		}
	})

	t.Run("mode change", func(t *testing.T) {
		o := opts
		o.Loader.Mode = model.ModeFlat
		m, cached, err := Open(source, o)
		if err != nil || cached {
			t.Fatalf("mode change: cached=%v err=%v", cached, err)
		}
		if m.Mode != model.ModeFlat {
			t.Errorf("expected flat model, got %s", m.Mode)
		}
	})

	t.Run("library edited", func(t *testing.T) {
		// Rewrite the cache in indexed mode, then touch only the library.
		if _, _, err := Open(source, opts); err != nil {
			t.Fatal(err)
		}
		age(t, -time.Hour, source)
		age(t, time.Hour, mtl)
		if _, cached, err := Open(source, opts); err != nil || cached {
			t.Errorf("library edit: cached=%v err=%v", cached, err)
		}
	})
}

func TestOpen_CacheFileDirect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene"+Ext)
	if err := Save(path, buildModel(t, model.ModeIndexed), false); err != nil {
		t.Fatal(err)
	}

	a := &countingActivator{}
	m, cached, err := Open(path, OpenOptions{LoadOptions: LoadOptions{Activate: true, Activator: a}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !cached || !m.Active() || a.calls != 1 {
		t.Errorf("cached=%v active=%v calls=%d", cached, m.Active(), a.calls)
	}
}

func TestOpen_NoCacheDir(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir)

	a := &countingActivator{}
	m, cached, err := Open(source, OpenOptions{
		Loader:      model.DefaultLoadOptions(),
		LoadOptions: LoadOptions{Activate: true, Activator: a},
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if cached {
		t.Error("no cache dir means no cache hit")
	}
	if !m.Active() || a.calls != 1 {
		t.Error("model should be activated eagerly")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("no files should be written, found %d entries", len(entries))
	}
}
