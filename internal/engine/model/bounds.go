package model

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/fasterobj/pkg/formats"
)

// Bounds holds the axis-aligned bounding box of the model.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Center returns the midpoint of the box.
func (b Bounds) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Size returns the extent along each axis.
func (b Bounds) Size() [3]float32 {
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Radius returns the radius of the sphere enclosing the box.
func (b Bounds) Radius() float32 {
	s := b.Size()
	return math32.Sqrt(s[0]*s[0]+s[1]*s[1]+s[2]*s[2]) / 2
}

// Edges returns the 12 box edges as 24 line endpoints, bottom face first,
// then top face, then the vertical edges.
func (b Bounds) Edges() [24][3]float32 {
	lo, hi := b.Min, b.Max
	corner := func(x, y, z bool) [3]float32 {
		c := lo
		if x {
			c[0] = hi[0]
		}
		if y {
			c[1] = hi[1]
		}
		if z {
			c[2] = hi[2]
		}
		return c
	}

	var out [24][3]float32
	i := 0
	for _, y := range []bool{false, true} {
		ring := [4][3]float32{
			corner(false, y, false), corner(true, y, false),
			corner(true, y, true), corner(false, y, true),
		}
		for j := range ring {
			out[i], out[i+1] = ring[j], ring[(j+1)%4]
			i += 2
		}
	}
	for _, xz := range [][2]bool{{false, false}, {true, false}, {true, true}, {false, true}} {
		out[i], out[i+1] = corner(xz[0], false, xz[1]), corner(xz[0], true, xz[1])
		i += 2
	}
	return out
}

// Bounds computes the bounding box of the vertex buffer. An empty model has
// zero bounds.
func (m *Model) Bounds() Bounds {
	if len(m.Positions) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: m.Positions[0], Max: m.Positions[0]}
	for _, p := range m.Positions[1:] {
		for i := 0; i < 3; i++ {
			b.Min[i] = math32.Min(b.Min[i], p[i])
			b.Max[i] = math32.Max(b.Max[i], p[i])
		}
	}
	return b
}

// Stats describes a compacted model.
type Stats struct {
	Vertices  int
	Indices   int // Corners drawn
	Faces     int
	Batches   int
	Materials int
	Textured  int // Materials with a decoded texture

	Triangles int
	Quads     int
	Polygons  int
}

// Stats returns counts describing the model.
func (m *Model) Stats() Stats {
	s := Stats{
		Vertices:  len(m.Positions),
		Materials: len(m.Materials),
	}
	for _, mb := range m.Materials {
		if mat := m.Material(mb.Material); mat != nil && mat.Image != nil {
			s.Textured++
		}
		for _, b := range mb.Batches {
			s.Batches++
			s.Indices += int(b.Count)
			s.Faces += int(b.Faces)
			switch b.Primitive {
			case formats.PrimitiveTriangles:
				s.Triangles += int(b.Faces)
			case formats.PrimitiveQuads:
				s.Quads += int(b.Faces)
			case formats.PrimitivePolygon:
				s.Polygons += int(b.Faces)
			}
		}
	}
	return s
}
