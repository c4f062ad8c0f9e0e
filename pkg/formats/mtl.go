// MTL (material library) parser.

package formats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Image is a decoded texture: 8-bit RGBA pixels, Width*Height*4 bytes, rows
// laid out in the order the texture should be uploaded.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// ImageLoader decodes a texture file referenced by a material.
type ImageLoader interface {
	LoadImage(path string) (*Image, error)
}

// Material is one newmtl entry.
type Material struct {
	Name       string
	Properties map[string][]float32 // Every numeric directive, e.g. "Kd" -> [r g b]
	Texture    string               // map_Kd path as resolved on disk, empty if none
	Image      *Image               // Decoded map_Kd, nil if none or not loaded
}

// Property returns the values stored under key, or nil.
func (m *Material) Property(key string) []float32 {
	return m.Properties[key]
}

// Diffuse returns the Kd color, white when the material does not set one.
func (m *Material) Diffuse() [3]float32 {
	kd := m.Properties["Kd"]
	if len(kd) < 3 {
		return [3]float32{1, 1, 1}
	}
	return [3]float32{kd[0], kd[1], kd[2]}
}

// HasTexture reports whether a diffuse image was decoded for the material.
func (m *Material) HasTexture() bool {
	return m.Image != nil
}

// MTL is a parsed material library.
type MTL struct {
	Name      string
	Materials map[string]*Material
	Order     []string // Material names in declaration order
}

// NewMTL returns an empty library.
func NewMTL(name string) *MTL {
	return &MTL{Name: name, Materials: make(map[string]*Material)}
}

// Get returns the named material, or nil.
func (m *MTL) Get(name string) *Material {
	if m == nil {
		return nil
	}
	return m.Materials[name]
}

// Merge adds every material of other, replacing same-named entries.
func (m *MTL) Merge(other *MTL) {
	for _, name := range other.Order {
		if _, exists := m.Materials[name]; !exists {
			m.Order = append(m.Order, name)
		}
		m.Materials[name] = other.Materials[name]
	}
}

// MTLOptions controls material library parsing.
type MTLOptions struct {
	// Dir resolves relative map_Kd paths. Empty means the current directory.
	Dir string
	// Images decodes map_Kd textures. When nil the path is recorded but not loaded.
	Images ImageLoader
}

// ParseMTL parses a material library. name is used in error messages.
func ParseMTL(r io.Reader, name string, opts MTLOptions) (*MTL, error) {
	lib := NewMTL(name)
	lr := newLineReader(r)

	var current *Material
	for {
		fields, line, ok := lr.next()
		if !ok {
			break
		}
		fail := func(reason string, cause error) error {
			return &ParseError{
				File:      name,
				Line:      line,
				Directive: fields[0],
				Reason:    reason,
				Err:       ErrMalformedMaterialFile,
				Cause:     cause,
			}
		}

		switch {
		case fields[0] == "newmtl":
			if len(fields) < 2 {
				return nil, fail("newmtl without a material name", nil)
			}
			current = &Material{Name: fields[1], Properties: make(map[string][]float32)}
			if _, exists := lib.Materials[current.Name]; !exists {
				lib.Order = append(lib.Order, current.Name)
			}
			lib.Materials[current.Name] = current

		case current == nil:
			return nil, fail("material file must start with newmtl", nil)

		case fields[0] == "map_Kd":
			if len(fields) < 2 {
				return nil, fail("map_Kd without a texture path", nil)
			}
			// Texture options (-s, -o, ...) precede the file name.
			path := fields[len(fields)-1]
			if !filepath.IsAbs(path) && opts.Dir != "" {
				path = filepath.Join(opts.Dir, path)
			}
			current.Texture = path
			if opts.Images != nil {
				img, err := opts.Images.LoadImage(path)
				if err != nil {
					return nil, fail(fmt.Sprintf("cannot load texture %q", path), err)
				}
				current.Image = img
			}

		default:
			values := make([]float32, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				f, err := strconv.ParseFloat(tok, 32)
				if err != nil {
					return nil, fail(fmt.Sprintf("non-numeric value %q", tok), nil)
				}
				values = append(values, float32(f))
			}
			current.Properties[fields[0]] = values
		}
	}
	if err := lr.err(); err != nil {
		return nil, &ParseError{File: name, Line: lr.line, Reason: "read failed", Err: ErrMalformedMaterialFile, Cause: err}
	}

	return lib, nil
}

// ParseMTLFile parses a material library from disk. Relative texture paths
// resolve against the library's directory unless opts.Dir is set.
func ParseMTLFile(path string, opts MTLOptions) (*MTL, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Reason: "cannot open material file", Err: ErrMalformedMaterialFile, Cause: err}
	}
	defer f.Close()

	if opts.Dir == "" {
		opts.Dir = filepath.Dir(path)
	}
	return ParseMTL(f, path, opts)
}
