package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubImages serves fixed images by base name and records requested paths.
type stubImages struct {
	images    map[string]*Image
	requested []string
}

func (s *stubImages) LoadImage(path string) (*Image, error) {
	s.requested = append(s.requested, path)
	img, ok := s.images[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return img, nil
}

func TestParseMTL_Basic(t *testing.T) {
	src := `
# exported by hand
newmtl red
Kd 1 0 0
Ns 96.0
illum 2

newmtl brick
Kd 0.5 0.5 0.5
map_Kd brick.png
`
	images := &stubImages{images: map[string]*Image{
		"brick.png": {Width: 1, Height: 1, Pix: []byte{1, 2, 3, 255}},
	}}
	lib, err := ParseMTL(strings.NewReader(src), "test.mtl", MTLOptions{Dir: "textures", Images: images})
	if err != nil {
		t.Fatalf("ParseMTL failed: %v", err)
	}

	if len(lib.Order) != 2 || lib.Order[0] != "red" || lib.Order[1] != "brick" {
		t.Errorf("unexpected order %v", lib.Order)
	}

	red := lib.Get("red")
	if red == nil {
		t.Fatal("expected material red")
	}
	if got := red.Property("Ns"); len(got) != 1 || got[0] != 96 {
		t.Errorf("Ns = %v, want [96]", got)
	}
	if got := red.Property("illum"); len(got) != 1 || got[0] != 2 {
		t.Errorf("illum = %v, want [2]", got)
	}
	if red.HasTexture() {
		t.Error("red should have no texture")
	}

	brick := lib.Get("brick")
	if brick == nil {
		t.Fatal("expected material brick")
	}
	if !brick.HasTexture() || brick.Image.Width != 1 {
		t.Errorf("expected decoded texture, got %+v", brick.Image)
	}
	wantPath := filepath.Join("textures", "brick.png")
	if brick.Texture != wantPath {
		t.Errorf("texture path = %q, want %q", brick.Texture, wantPath)
	}
	if len(images.requested) != 1 || images.requested[0] != wantPath {
		t.Errorf("unexpected image requests %v", images.requested)
	}
}

func TestParseMTL_NoImageLoader(t *testing.T) {
	lib, err := ParseMTL(strings.NewReader("newmtl a\nmap_Kd -s 2 2 1 tex.png\n"), "test.mtl", MTLOptions{})
	if err != nil {
		t.Fatalf("ParseMTL failed: %v", err)
	}
	a := lib.Get("a")
	if a.Texture != "tex.png" {
		t.Errorf("texture = %q, want tex.png", a.Texture)
	}
	if a.HasTexture() {
		t.Error("texture should not be decoded without a loader")
	}
}

func TestParseMTL_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		line   int
		reason string
	}{
		{"property before newmtl", "Kd 1 1 1\nnewmtl a\n", 1, "must start with newmtl"},
		{"map before newmtl", "# c\nmap_Kd a.png\n", 2, "must start with newmtl"},
		{"non-numeric", "newmtl a\nKd 1 red 1\n", 2, "non-numeric"},
		{"unknown texture map", "newmtl a\nmap_Bump bump.png\n", 2, "non-numeric"},
		{"missing name", "newmtl\n", 1, "without a material name"},
		{"missing texture", "newmtl a\nmap_Kd missing.png\n", 2, "missing.png"},
		{"empty map_Kd", "newmtl a\nmap_Kd\n", 2, "without a texture path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images := &stubImages{}
			_, err := ParseMTL(strings.NewReader(tt.src), "bad.mtl", MTLOptions{Images: images})
			if !errors.Is(err, ErrMalformedMaterialFile) {
				t.Fatalf("expected ErrMalformedMaterialFile, got %v", err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if perr.Line != tt.line {
				t.Errorf("line = %d, want %d", perr.Line, tt.line)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.reason)
			}
			if !strings.HasPrefix(err.Error(), "bad.mtl:") {
				t.Errorf("message %q does not name the file", err.Error())
			}
		})
	}
}

func TestParseMTLFile_MissingTexture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.mtl")
	if err := os.WriteFile(path, []byte("newmtl skin\nmap_Kd missing.png\n"), 0644); err != nil {
		t.Fatalf("failed to write mtl: %v", err)
	}

	_, err := ParseMTLFile(path, MTLOptions{Images: &stubImages{}})
	if !errors.Is(err, ErrMalformedMaterialFile) {
		t.Fatalf("expected ErrMalformedMaterialFile, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist cause, got %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(dir, "missing.png")) {
		t.Errorf("message %q does not name the texture", err.Error())
	}
}

func TestMTL_Merge(t *testing.T) {
	a := NewMTL("a.mtl")
	a.Materials["x"] = &Material{Name: "x"}
	a.Order = []string{"x"}

	b := NewMTL("b.mtl")
	b.Materials["y"] = &Material{Name: "y"}
	b.Materials["x"] = &Material{Name: "x", Texture: "new.png"}
	b.Order = []string{"y", "x"}

	a.Merge(b)
	if len(a.Order) != 2 || a.Order[0] != "x" || a.Order[1] != "y" {
		t.Errorf("unexpected order %v", a.Order)
	}
	if a.Get("x").Texture != "new.png" {
		t.Error("expected later library to replace x")
	}
}

func TestMaterial_DiffuseDefault(t *testing.T) {
	m := &Material{Name: "plain", Properties: map[string][]float32{}}
	if m.Diffuse() != [3]float32{1, 1, 1} {
		t.Errorf("Diffuse() = %v, want white", m.Diffuse())
	}
	var lib *MTL
	if lib.Get("plain") != nil {
		t.Error("nil library should return nil material")
	}
}
