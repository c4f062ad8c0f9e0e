// OBJ (Wavefront object) parser.

package formats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Corner is one face vertex: 1-based indices into the position, normal and
// texcoord sequences. Normal and TexCoord are 0 when the face omits them.
type Corner struct {
	Position int
	Normal   int
	TexCoord int
}

// FaceKey partitions faces into draw batches.
type FaceKey struct {
	Arity       int // 3, 4, or 5 for any larger polygon
	HasTexCoord bool
	HasNormal   bool
}

// Primitive returns the primitive the key's faces are drawn with.
func (k FaceKey) Primitive() Primitive {
	switch k.Arity {
	case 3:
		return PrimitiveTriangles
	case 4:
		return PrimitiveQuads
	default:
		return PrimitivePolygon
	}
}

// FaceGroup is a run of faces sharing one key, corners concatenated in file
// order. Triangle and quad groups may hold many faces; a polygon group always
// holds exactly one so it stays individually drawable.
type FaceGroup struct {
	Key     FaceKey
	Corners []Corner
	Faces   int
	Smooth  int // Smoothing group active when the group was opened, 0 = off
}

// MaterialGroup holds the face groups drawn with one material. Material is
// empty for faces that precede any usemtl.
type MaterialGroup struct {
	Material string
	faces    Accumulator[FaceKey, *FaceGroup]
}

// Faces returns the group's face runs in draw order.
func (g *MaterialGroup) Faces() []*FaceGroup {
	return g.faces.Values()
}

// OBJOptions controls how an OBJ file is read and grouped.
type OBJOptions struct {
	// SwapYZ swaps the second and third components of positions and normals.
	SwapYZ bool
	// ReorderMaterials joins faces into an earlier group of the same material
	// even when other materials were used in between.
	ReorderMaterials bool
	// ReorderPolygons joins triangles and quads into an earlier run with the same
	// key inside a material even when other keys came in between.
	ReorderPolygons bool
	// TreatPolygon classifies every face as a general polygon.
	TreatPolygon bool
	// Dir resolves mtllib paths. ParseOBJFile defaults it to the file's directory.
	Dir string
	// MTL is passed to ParseMTLFile for every mtllib directive.
	MTL MTLOptions
}

// DefaultOBJOptions returns the options most renderers want.
func DefaultOBJOptions() OBJOptions {
	return OBJOptions{
		SwapYZ:           true,
		ReorderMaterials: true,
		ReorderPolygons:  true,
	}
}

// OBJ is a parsed object file: raw attribute sequences plus faces grouped by
// material and key.
type OBJ struct {
	Name      string
	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][2]float32
	Libraries []string // mtllib paths as resolved on disk
	Materials *MTL     // Merged contents of every mtllib, nil if none

	groups   Accumulator[string, *MaterialGroup]
	released bool
}

// Groups returns material groups in draw order.
func (o *OBJ) Groups() []*MaterialGroup {
	if o.groups == nil {
		return nil
	}
	return o.groups.Values()
}

// FaceCount returns the number of faces parsed.
func (o *OBJ) FaceCount() int {
	n := 0
	for _, g := range o.Groups() {
		for _, fg := range g.Faces() {
			n += fg.Faces
		}
	}
	return n
}

// ResolveCorner dereferences a corner. Absent normals and texcoords resolve
// to zero vectors.
func (o *OBJ) ResolveCorner(c Corner) (pos, norm [3]float32, tex [2]float32) {
	pos = o.Positions[c.Position-1]
	if c.Normal != 0 {
		norm = o.Normals[c.Normal-1]
	}
	if c.TexCoord != 0 {
		tex = o.TexCoords[c.TexCoord-1]
	}
	return pos, norm, tex
}

// Release drops the raw sequences and faces. The material library is kept.
func (o *OBJ) Release() {
	o.Positions = nil
	o.Normals = nil
	o.TexCoords = nil
	o.groups = nil
	o.released = true
}

// Released reports whether Release was called.
func (o *OBJ) Released() bool {
	return o.released
}

// Directives this loader rejects, by reason.
var (
	notImplementedDirectives = map[string]bool{
		"p": true, "l": true, "o": true, "g": true,
		"vp": true, "cstype": true, "deg": true, "bmat": true, "step": true,
		"curv": true, "curv2": true, "surf": true, "parm": true, "trim": true,
		"hole": true, "scrv": true, "sp": true, "end": true, "con": true,
		"ng": true, "bevel": true, "c_interp": true, "d_interp": true,
		"lod": true, "maplib": true, "usemap": true, "shadow_obj": true,
		"trace_obj": true, "ctech": true, "stech": true,
	}
	deprecatedDirectives = map[string]bool{
		"fo": true, "bsp": true, "bzp": true, "cdc": true, "cdp": true, "res": true,
	}
	supportedDirectives = map[string]bool{
		"v": true, "vn": true, "vt": true, "f": true, "s": true,
		"usemtl": true, "usemat": true, "mtllib": true,
	}
)

// ClassifyDirective reports whether an OBJ directive is handled, and if not, why.
func ClassifyDirective(token string) DirectiveClass {
	switch {
	case supportedDirectives[token]:
		return DirectiveSupported
	case notImplementedDirectives[token]:
		return DirectiveNotImplemented
	case deprecatedDirectives[token]:
		return DirectiveDeprecated
	default:
		return DirectiveUnrecognized
	}
}

// objParser holds state that only lives while one file is read.
type objParser struct {
	obj      *OBJ
	opts     OBJOptions
	name     string
	material string
	smooth   int

	line   int
	fields []string
}

// ParseOBJ parses an OBJ stream. name is used in error messages.
func ParseOBJ(r io.Reader, name string, opts OBJOptions) (*OBJ, error) {
	p := &objParser{
		obj: &OBJ{
			Name:   name,
			groups: NewAccumulator[string, *MaterialGroup](opts.ReorderMaterials),
		},
		opts: opts,
		name: name,
	}

	lr := newLineReader(r)
	for {
		fields, line, ok := lr.next()
		if !ok {
			break
		}
		p.line, p.fields = line, fields
		if err := p.dispatch(); err != nil {
			return nil, err
		}
	}
	if err := lr.err(); err != nil {
		return nil, &ParseError{File: name, Line: lr.line, Reason: "read failed", Err: ErrMalformedDirective, Cause: err}
	}

	return p.obj, nil
}

// ParseOBJFile parses an OBJ file from disk. mtllib paths resolve against the
// file's directory unless opts.Dir is set.
func ParseOBJFile(path string, opts OBJOptions) (*OBJ, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()

	if opts.Dir == "" {
		opts.Dir = filepath.Dir(path)
	}
	return ParseOBJ(f, path, opts)
}

func (p *objParser) fail(class error, reason string, cause error) error {
	return &ParseError{
		File:      p.name,
		Line:      p.line,
		Directive: p.fields[0],
		Reason:    reason,
		Err:       class,
		Cause:     cause,
	}
}

func (p *objParser) dispatch() error {
	args := p.fields[1:]
	switch p.fields[0] {
	case "v":
		v, err := p.point(args)
		if err != nil {
			return err
		}
		p.obj.Positions = append(p.obj.Positions, v)

	case "vn":
		n, err := p.point(args)
		if err != nil {
			return err
		}
		p.obj.Normals = append(p.obj.Normals, n)

	case "vt":
		if len(args) != 2 {
			return p.fail(ErrMalformedFace, fmt.Sprintf("only 2-D texture coordinates are supported, got %d components", len(args)), nil)
		}
		var t [2]float32
		for i := range t {
			f, err := p.float(args[i])
			if err != nil {
				return err
			}
			t[i] = f
		}
		p.obj.TexCoords = append(p.obj.TexCoords, t)

	case "usemtl", "usemat":
		if len(args) < 1 {
			return p.fail(ErrMalformedDirective, "missing material name", nil)
		}
		p.material = args[0]

	case "mtllib":
		if len(args) < 1 {
			return p.fail(ErrMalformedDirective, "missing material library path", nil)
		}
		return p.loadLibraries(args)

	case "s":
		if len(args) < 1 {
			return p.fail(ErrMalformedDirective, "missing smoothing group", nil)
		}
		// Recorded on faces only; normals are never generated from it.
		// Any token other than off or a group number turns smoothing on.
		switch n, err := strconv.Atoi(args[0]); {
		case args[0] == "off":
			p.smooth = 0
		case err == nil:
			p.smooth = n
		default:
			p.smooth = 1
		}

	case "f":
		return p.face(args)

	default:
		class := ClassifyDirective(p.fields[0])
		return &ParseError{
			File:      p.name,
			Line:      p.line,
			Directive: p.fields[0],
			Class:     class,
			Reason:    fmt.Sprintf("%s OBJ directive", class),
			Err:       ErrUnsupportedDirective,
		}
	}
	return nil
}

// point reads a position or normal, applying the axis swap.
func (p *objParser) point(args []string) ([3]float32, error) {
	var v [3]float32
	if len(args) < 3 {
		return v, p.fail(ErrMalformedDirective, fmt.Sprintf("expected 3 components, got %d", len(args)), nil)
	}
	for i := range v {
		f, err := p.float(args[i])
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	if p.opts.SwapYZ {
		v[1], v[2] = v[2], v[1]
	}
	return v, nil
}

func (p *objParser) float(tok string) (float32, error) {
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, p.fail(ErrMalformedDirective, fmt.Sprintf("non-numeric value %q", tok), nil)
	}
	return float32(f), nil
}

func (p *objParser) loadLibraries(paths []string) error {
	for _, path := range paths {
		if !filepath.IsAbs(path) && p.opts.Dir != "" {
			path = filepath.Join(p.opts.Dir, path)
		}
		lib, err := ParseMTLFile(path, p.opts.MTL)
		if err != nil {
			return err
		}
		p.obj.Libraries = append(p.obj.Libraries, path)
		if p.obj.Materials == nil {
			p.obj.Materials = lib
		} else {
			p.obj.Materials.Merge(lib)
		}
	}
	return nil
}

// face parses the corners of an f directive and files them under the current
// material and key.
func (p *objParser) face(args []string) error {
	if len(args) < 3 {
		return p.fail(ErrMalformedFace, fmt.Sprintf("face needs at least 3 corners, got %d", len(args)), nil)
	}

	corners := make([]Corner, len(args))
	for i, spec := range args {
		c, err := p.corner(spec)
		if err != nil {
			return err
		}
		corners[i] = c
	}

	key := FaceKey{
		Arity:       min(len(corners), 5),
		HasTexCoord: corners[0].TexCoord != 0,
		HasNormal:   corners[0].Normal != 0,
	}
	if p.opts.TreatPolygon {
		key.Arity = 5
	}
	for i, c := range corners[1:] {
		if (c.TexCoord != 0) != key.HasTexCoord || (c.Normal != 0) != key.HasNormal {
			return p.fail(ErrMalformedFace, fmt.Sprintf("corner %d (%q) does not match the attributes of corner 1 (%q)", i+2, args[i+1], args[0]), nil)
		}
	}

	mg := p.obj.groups.Join(p.material, func() *MaterialGroup {
		return &MaterialGroup{
			Material: p.material,
			faces:    NewAccumulator[FaceKey, *FaceGroup](p.opts.ReorderPolygons),
		}
	})

	if key.Arity == 5 {
		mg.faces.Push(key, &FaceGroup{Key: key, Corners: corners, Faces: 1, Smooth: p.smooth})
		return nil
	}
	fg := mg.faces.Join(key, func() *FaceGroup {
		return &FaceGroup{Key: key, Smooth: p.smooth}
	})
	fg.Corners = append(fg.Corners, corners...)
	fg.Faces++
	return nil
}

// corner parses "v", "v/vt", "v//vn" or "v/vt/vn" and resolves relative indices
// against the sequences as they are at this point of the file.
func (p *objParser) corner(spec string) (Corner, error) {
	parts := strings.Split(spec, "/")
	if len(parts) > 3 || parts[0] == "" {
		return Corner{}, p.fail(ErrMalformedFace, fmt.Sprintf("invalid corner %q", spec), nil)
	}

	var c Corner
	var err error
	if c.Position, err = p.index(spec, parts[0], len(p.obj.Positions), "position"); err != nil {
		return Corner{}, err
	}
	if len(parts) > 1 && parts[1] != "" {
		if c.TexCoord, err = p.index(spec, parts[1], len(p.obj.TexCoords), "texture coordinate"); err != nil {
			return Corner{}, err
		}
	}
	if len(parts) > 2 && parts[2] != "" {
		if c.Normal, err = p.index(spec, parts[2], len(p.obj.Normals), "normal"); err != nil {
			return Corner{}, err
		}
	}
	return c, nil
}

// index resolves one corner sub-index to a 1-based index within [1, n].
func (p *objParser) index(spec, tok string, n int, what string) (int, error) {
	i, err := strconv.Atoi(tok)
	if err != nil {
		return 0, p.fail(ErrMalformedFace, fmt.Sprintf("invalid %s index %q in corner %q", what, tok, spec), nil)
	}
	resolved := i
	if i < 0 {
		resolved = n + 1 + i
	}
	if i == 0 || resolved < 1 || resolved > n {
		return 0, p.fail(ErrDanglingReference, fmt.Sprintf("%s index %d in corner %q out of range (have %d)", what, i, spec, n), nil)
	}
	return resolved, nil
}

// OBJStats summarises a parsed file.
type OBJStats struct {
	Positions      int
	Normals        int
	TexCoords      int
	Faces          int
	MaterialGroups int
}

// Stats returns counts describing the parsed file.
func (o *OBJ) Stats() OBJStats {
	return OBJStats{
		Positions:      len(o.Positions),
		Normals:        len(o.Normals),
		TexCoords:      len(o.TexCoords),
		Faces:          o.FaceCount(),
		MaterialGroups: len(o.Groups()),
	}
}
