package model

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/Faultbox/fasterobj/pkg/formats"
)

func parse(t *testing.T, src string, opts formats.OBJOptions) *formats.OBJ {
	t.Helper()
	obj, err := formats.ParseOBJ(strings.NewReader(src), "test.obj", opts)
	if err != nil {
		t.Fatalf("ParseOBJ failed: %v", err)
	}
	return obj
}

func compactString(t *testing.T, src string, mode Mode) *Model {
	t.Helper()
	return Compact(parse(t, src, formats.OBJOptions{ReorderMaterials: true, ReorderPolygons: true}), mode)
}

func checkLockStep(t *testing.T, m *Model) {
	t.Helper()
	if len(m.Positions) != len(m.Normals) || len(m.Positions) != len(m.TexCoords) {
		t.Errorf("buffers out of lock-step: %d positions, %d normals, %d texcoords",
			len(m.Positions), len(m.Normals), len(m.TexCoords))
	}
}

const triangle = `
v 0 0 0
v 1 0 0
v 0 1 0
`

func TestCompact_SingleTriangle(t *testing.T) {
	m := compactString(t, triangle+"f 1 2 3\n", ModeIndexed)

	if m.VertexCount() != 3 {
		t.Errorf("expected 3 vertices, got %d", m.VertexCount())
	}
	if m.BatchCount() != 1 {
		t.Fatalf("expected 1 batch, got %d", m.BatchCount())
	}
	b := m.Materials[0].Batches[0]
	if b.Primitive != formats.PrimitiveTriangles {
		t.Errorf("expected triangles, got %v", b.Primitive)
	}
	if !reflect.DeepEqual(b.Indices, []uint32{0, 1, 2}) {
		t.Errorf("indices = %v, want [0 1 2]", b.Indices)
	}
	if b.Count != 3 || b.Faces != 1 {
		t.Errorf("count = %d faces = %d, want 3 and 1", b.Count, b.Faces)
	}
	checkLockStep(t, m)
}

func TestCompact_RelativeIndexMatchesAbsolute(t *testing.T) {
	rel := compactString(t, triangle+"f 1 2 -1\n", ModeIndexed)
	abs := compactString(t, triangle+"f 1 2 3\n", ModeIndexed)

	if !reflect.DeepEqual(rel.Positions, abs.Positions) {
		t.Errorf("positions differ: %v vs %v", rel.Positions, abs.Positions)
	}
	if !reflect.DeepEqual(rel.Materials, abs.Materials) {
		t.Errorf("batches differ: %+v vs %+v", rel.Materials, abs.Materials)
	}
}

func TestCompact_SharedCornerReusesID(t *testing.T) {
	src := triangle + `v 1 1 0
vt 0 0
vt 1 0
vt 0 1
vt 1 1
vn 0 0 1
f 1/1/1 2/2/1 3/3/1
f 1/1/1 3/3/1 4/4/1
`
	m := compactString(t, src, ModeIndexed)

	idx := m.Materials[0].Batches[0].Indices
	if len(idx) != 6 {
		t.Fatalf("expected 6 indices, got %d", len(idx))
	}
	if idx[0] != idx[3] {
		t.Errorf("corner 1/1/1 got ids %d and %d", idx[0], idx[3])
	}
	if idx[2] != idx[4] {
		t.Errorf("corner 3/3/1 got ids %d and %d", idx[2], idx[4])
	}
	if m.VertexCount() != 4 {
		t.Errorf("expected 4 vertices, got %d", m.VertexCount())
	}
}

func TestCompact_DedupMatchesDistinctTriples(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"quad as two triangles", triangle + "v 1 1 0\nf 1 2 3\nf 1 3 4\n"},
		{"same position with and without normal", triangle + "vn 0 0 1\nf 1//1 2//1 3//1\nf 1 2 3\n"},
		{"duplicate values at different indices", triangle + "v 0 0 0\nf 1 2 3\nf 4 2 3\n"},
		{"mixed arities", triangle + "v 1 1 0\nv 2 2 0\nf 1 2 3\nf 1 2 4 3\nf 1 2 5 4 3\n"},
		{"materials", triangle + "usemtl a\nf 1 2 3\nusemtl b\nf 3 2 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := parse(t, tt.src, formats.DefaultOBJOptions())

			distinct := make(map[vertexKey]bool)
			for _, g := range obj.Groups() {
				for _, fg := range g.Faces() {
					for _, c := range fg.Corners {
						pos, norm, tex := obj.ResolveCorner(c)
						distinct[vertexKey{pos, norm, tex}] = true
					}
				}
			}

			m := Compact(obj, ModeIndexed)
			if m.VertexCount() != len(distinct) {
				t.Errorf("expected %d vertices, got %d", len(distinct), m.VertexCount())
			}
			checkLockStep(t, m)

			// Every id is in range and ids are first-use ordered.
			next := uint32(0)
			for _, mb := range m.Materials {
				for _, b := range mb.Batches {
					for _, id := range b.Indices {
						if id > next {
							t.Fatalf("id %d assigned before id %d", id, next)
						}
						if id == next {
							next++
						}
					}
				}
			}
			if int(next) != m.VertexCount() {
				t.Errorf("ids cover %d vertices, buffer has %d", next, m.VertexCount())
			}
		})
	}
}

func TestCompact_ArityNeverMerges(t *testing.T) {
	src := triangle + `v 1 1 0
v 2 2 0
f 1 2 3
f 1 2 4 3
f 1 2 5 4 3
f 3 2 1
f 3 4 2 1
f 3 4 5 2 1
`
	m := compactString(t, src, ModeIndexed)

	var got []formats.Primitive
	var faces []int32
	for _, b := range m.Materials[0].Batches {
		got = append(got, b.Primitive)
		faces = append(faces, b.Faces)
	}
	want := []formats.Primitive{
		formats.PrimitiveTriangles, formats.PrimitiveQuads,
		formats.PrimitivePolygon, formats.PrimitivePolygon,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("primitives = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(faces, []int32{2, 2, 1, 1}) {
		t.Errorf("faces per batch = %v, want [2 2 1 1]", faces)
	}
}

func TestCompact_AttributesConstantPerBatch(t *testing.T) {
	src := triangle + `vt 0 0
vn 0 0 1
f 1 2 3
f 1/1 2/1 3/1
f 1//1 2//1 3//1
f 1/1/1 2/1/1 3/1/1
`
	m := compactString(t, src, ModeIndexed)

	if m.BatchCount() != 4 {
		t.Fatalf("expected 4 batches, got %d", m.BatchCount())
	}
	seen := make(map[[2]bool]bool)
	for _, b := range m.Materials[0].Batches {
		k := [2]bool{b.HasTexCoord, b.HasNormal}
		if seen[k] {
			t.Errorf("two batches with attributes %v", k)
		}
		seen[k] = true
	}
	// Absent attributes are zero in the buffers.
	first := m.Materials[0].Batches[0]
	if first.HasNormal || first.HasTexCoord {
		t.Fatalf("first batch should have no attributes")
	}
	for _, id := range first.Indices {
		if m.Normals[id] != [3]float32{} || m.TexCoords[id] != [2]float32{} {
			t.Errorf("vertex %d has non-zero absent attributes", id)
		}
	}
}

func TestCompact_FlatMode(t *testing.T) {
	src := triangle + `v 1 1 0
usemtl a
f 1 2 3
usemtl b
f 1 3 4
f 1 2 3 4
usemtl a
f 1 3 4
`
	m := compactString(t, src, ModeFlat)

	if m.Mode != ModeFlat {
		t.Errorf("mode = %v, want flat", m.Mode)
	}
	// 3+3 corners for a, 3+4 for b; nothing deduplicated.
	if m.VertexCount() != 13 {
		t.Errorf("expected 13 vertices, got %d", m.VertexCount())
	}
	checkLockStep(t, m)

	type run struct{ offset, count int32 }
	var runs []run
	for _, mb := range m.Materials {
		for _, b := range mb.Batches {
			if b.Indices != nil {
				t.Errorf("flat batch has indices")
			}
			runs = append(runs, run{b.Offset, b.Count})
		}
	}
	want := []run{{0, 6}, {6, 3}, {9, 4}}
	if !reflect.DeepEqual(runs, want) {
		t.Errorf("runs = %v, want %v", runs, want)
	}
	// Second triangle of material a is 1 3 4.
	if m.Positions[5] != [3]float32{1, 1, 0} {
		t.Errorf("vertex 5 = %v, want [1 1 0]", m.Positions[5])
	}
}

func TestCompact_FlatAndIndexedDrawSameCorners(t *testing.T) {
	src := triangle + "v 1 1 0\nvn 0 0 1\nf 1//1 2//1 3//1\nf 1//1 3//1 4//1\nf 4 3 2 1\n"
	indexed := compactString(t, src, ModeIndexed)
	flat := compactString(t, src, ModeFlat)

	for i, mb := range indexed.Materials {
		for j, b := range mb.Batches {
			fb := flat.Materials[i].Batches[j]
			for k, id := range b.Indices {
				got := flat.Positions[int(fb.Offset)+k]
				if indexed.Positions[id] != got {
					t.Errorf("batch %d corner %d: %v vs %v", j, k, indexed.Positions[id], got)
				}
			}
		}
	}
}

func TestCompact_MaterialOrder(t *testing.T) {
	src := triangle + `usemtl b
f 1 2 3
usemtl a
f 1 2 3
usemtl b
f 3 2 1
`
	tests := []struct {
		name    string
		reorder bool
		want    []string
	}{
		{"joined", true, []string{"b", "a"}},
		{"ordered", false, []string{"b", "a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Compact(parse(t, src, formats.OBJOptions{ReorderMaterials: tt.reorder}), ModeIndexed)
			var got []string
			for _, mb := range m.Materials {
				got = append(got, mb.Material)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("materials = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompact_ReleasesOBJ(t *testing.T) {
	obj := parse(t, triangle+"f 1 2 3\n", formats.DefaultOBJOptions())
	Compact(obj, ModeIndexed)

	if !obj.Released() {
		t.Error("expected OBJ to be released")
	}
	if obj.Positions != nil || obj.Groups() != nil {
		t.Error("expected raw data to be dropped")
	}
}

func TestModel_BoundsAndStats(t *testing.T) {
	src := `v -1 0 0
v 1 0 0
v 0 2 0
v 0 0 4
f 1 2 3
f 1 2 4
f 1 2 3 4
`
	m := compactString(t, src, ModeIndexed)

	b := m.Bounds()
	if b.Min != [3]float32{-1, 0, 0} || b.Max != [3]float32{1, 2, 4} {
		t.Errorf("bounds = %+v", b)
	}
	if b.Center() != [3]float32{0, 1, 2} {
		t.Errorf("center = %v", b.Center())
	}
	// Half the diagonal of a 2x2x4 box.
	if r := b.Radius(); r < 2.449 || r > 2.45 {
		t.Errorf("radius = %v, want ~2.4495", r)
	}

	s := m.Stats()
	want := Stats{Vertices: 4, Indices: 10, Faces: 3, Batches: 2, Materials: 1, Triangles: 2, Quads: 1}
	if s != want {
		t.Errorf("stats = %+v, want %+v", s, want)
	}

	if (&Model{}).Bounds() != (Bounds{}) {
		t.Error("empty model should have zero bounds")
	}
}

func TestBounds_Edges(t *testing.T) {
	b := Bounds{Min: [3]float32{-1, 0, 2}, Max: [3]float32{1, 3, 5}}
	edges := b.Edges()

	uses := make(map[[3]float32]int)
	seen := make(map[[2][3]float32]bool)
	for i := 0; i < len(edges); i += 2 {
		p, q := edges[i], edges[i+1]
		diff := 0
		for k := 0; k < 3; k++ {
			if p[k] != q[k] {
				diff++
			}
		}
		if diff != 1 {
			t.Errorf("edge %d %v-%v is not axis aligned", i/2, p, q)
		}
		if seen[[2][3]float32{p, q}] || seen[[2][3]float32{q, p}] {
			t.Errorf("edge %d %v-%v repeated", i/2, p, q)
		}
		seen[[2][3]float32{p, q}] = true
		uses[p]++
		uses[q]++
	}

	if len(uses) != 8 {
		t.Fatalf("expected 8 corners, got %d", len(uses))
	}
	for c, n := range uses {
		if n != 3 {
			t.Errorf("corner %v used by %d edges, want 3", c, n)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"indexed", ModeIndexed, false},
		{"", ModeIndexed, false},
		{"flat", ModeFlat, false},
		{"vbo", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if ModeFlat.String() != "flat" || Mode(9).String() != "Unknown(9)" {
		t.Error("unexpected Mode.String output")
	}
}

type fakeResources struct{ released int }

func (r *fakeResources) Release() { r.released++ }

type fakeActivator struct {
	calls int
	res   *fakeResources
	err   error
}

func (a *fakeActivator) Activate(m *Model) (Resources, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	a.res = &fakeResources{}
	return a.res, nil
}

func TestModel_ActivateLifecycle(t *testing.T) {
	m := compactString(t, triangle+"f 1 2 3\n", ModeIndexed)
	a := &fakeActivator{}

	if m.Active() {
		t.Fatal("new model should not be active")
	}
	for i := 0; i < 3; i++ {
		if err := m.Activate(a); err != nil {
			t.Fatalf("Activate failed: %v", err)
		}
	}
	if a.calls != 1 {
		t.Errorf("expected 1 activation, got %d", a.calls)
	}
	if !m.Active() || m.Resources() != a.res {
		t.Error("expected model to hold the activator's resources")
	}

	if err := m.Activate(&fakeActivator{}); !errors.Is(err, ErrActivatedElsewhere) {
		t.Errorf("expected ErrActivatedElsewhere, got %v", err)
	}

	res := a.res
	m.Release()
	m.Release()
	if res.released != 1 {
		t.Errorf("expected 1 release, got %d", res.released)
	}
	if m.Active() {
		t.Error("model should be inactive after Release")
	}
	if m.VertexCount() != 3 {
		t.Error("Release must keep geometry")
	}

	if err := m.Activate(a); err != nil || a.calls != 2 {
		t.Errorf("expected reactivation, err=%v calls=%d", err, a.calls)
	}
}

func TestModel_ActivateError(t *testing.T) {
	m := compactString(t, triangle+"f 1 2 3\n", ModeIndexed)
	boom := errors.New("no context")

	if err := m.Activate(&fakeActivator{err: boom}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped activator error, got %v", err)
	}
	if m.Active() {
		t.Error("failed activation must leave the model inactive")
	}
}

type stubImages struct{}

func (stubImages) LoadImage(path string) (*formats.Image, error) {
	if filepath.Base(path) == "missing.png" {
		return nil, os.ErrNotExist
	}
	return &formats.Image{Width: 1, Height: 1, Pix: []byte{1, 2, 3, 4}}, nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"box.mtl": "newmtl wood\nKd 0.5 0.4 0.3\nmap_Kd wood.png\nnewmtl paint\nKd 1 0 0\n",
		"box.obj": "mtllib box.mtl\n" + triangle + "v 1 1 0\nusemtl wood\nf 1 2 3\nusemtl paint\nf 1 3 4\nusemtl ghost\nf 2 3 4\n",
	})

	opts := DefaultLoadOptions()
	opts.Images = stubImages{}
	m, err := Load(filepath.Join(dir, "box.obj"), opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Materials) != 3 {
		t.Fatalf("expected 3 material groups, got %d", len(m.Materials))
	}
	if mat := m.Material("wood"); mat == nil || mat.Image == nil {
		t.Error("expected wood to carry its texture")
	}
	if m.Material("ghost") != nil {
		t.Error("undefined material should resolve to nil")
	}
	if m.Material("") != nil {
		t.Error("empty material should resolve to nil")
	}
	if s := m.Stats(); s.Textured != 1 {
		t.Errorf("expected 1 textured material, got %d", s.Textured)
	}
	// SwapYZ is on: v 0 1 0 is stored as 0 0 1.
	if m.Positions[2] != [3]float32{0, 0, 1} {
		t.Errorf("vertex 2 = %v, want swapped [0 0 1]", m.Positions[2])
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"bad.obj":     triangle + "g group1\nf 1 2 3\n",
		"tex.mtl":     "newmtl m\nmap_Kd missing.png\n",
		"tex.obj":     "mtllib tex.mtl\n" + triangle + "f 1 2 3\n",
		"dangle.obj":  triangle + "f 1 2 0\n",
		"badface.obj": triangle + "f 1 2\n",
	})
	opts := DefaultLoadOptions()
	opts.Images = stubImages{}

	tests := []struct {
		file string
		want error
	}{
		{"bad.obj", formats.ErrUnsupportedDirective},
		{"tex.obj", formats.ErrMalformedMaterialFile},
		{"dangle.obj", formats.ErrDanglingReference},
		{"badface.obj", formats.ErrMalformedFace},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			m, err := Load(filepath.Join(dir, tt.file), opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if m != nil {
				t.Error("failed load must not return a model")
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "nope.obj"), opts); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
