package model

import (
	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/logger"
	"github.com/Faultbox/fasterobj/pkg/formats"
)

// vertexKey identifies a unique vertex by value. Absent attributes are zero.
type vertexKey struct {
	pos  [3]float32
	norm [3]float32
	tex  [2]float32
}

type compactor struct {
	m   *Model
	ids map[vertexKey]uint32
}

func (c *compactor) push(pos, norm [3]float32, tex [2]float32) {
	c.m.Positions = append(c.m.Positions, pos)
	c.m.Normals = append(c.m.Normals, norm)
	c.m.TexCoords = append(c.m.TexCoords, tex)
}

// id returns the vertex id for a resolved corner, appending a new vertex on
// first occurrence.
func (c *compactor) id(pos, norm [3]float32, tex [2]float32) uint32 {
	k := vertexKey{pos, norm, tex}
	if id, ok := c.ids[k]; ok {
		return id
	}
	id := uint32(len(c.m.Positions))
	c.ids[k] = id
	c.push(pos, norm, tex)
	return id
}

// Compact walks obj's material groups in order and builds the vertex buffers
// and batches. obj's raw sequences and faces are released afterwards; its
// material library moves to the model.
func Compact(obj *formats.OBJ, mode Mode) *Model {
	m := &Model{
		Name:    obj.Name,
		Mode:    mode,
		Library: obj.Materials,
		Sources: sources(obj),
	}
	c := &compactor{m: m}
	if mode == ModeIndexed {
		c.ids = make(map[vertexKey]uint32, len(obj.Positions))
	}

	corners := 0
	for _, g := range obj.Groups() {
		mb := MaterialBatches{Material: g.Material}
		for _, fg := range g.Faces() {
			b := Batch{
				Primitive:   fg.Key.Primitive(),
				HasTexCoord: fg.Key.HasTexCoord,
				HasNormal:   fg.Key.HasNormal,
				Faces:       int32(fg.Faces),
				Count:       int32(len(fg.Corners)),
			}
			if mode == ModeIndexed {
				b.Indices = make([]uint32, 0, len(fg.Corners))
			} else {
				b.Offset = int32(len(m.Positions))
			}

			for _, corner := range fg.Corners {
				pos, norm, tex := obj.ResolveCorner(corner)
				if mode == ModeIndexed {
					b.Indices = append(b.Indices, c.id(pos, norm, tex))
				} else {
					c.push(pos, norm, tex)
				}
			}
			corners += len(fg.Corners)
			mb.Batches = append(mb.Batches, b)
		}
		m.Materials = append(m.Materials, mb)
	}

	obj.Release()

	ratio := 0.0
	if corners > 0 {
		ratio = float64(len(m.Positions)) / float64(corners)
	}
	logger.Debug("model compacted",
		zap.String("name", m.Name),
		zap.Stringer("mode", mode),
		zap.Int("corners", corners),
		zap.Int("vertices", len(m.Positions)),
		zap.Int("batches", m.BatchCount()),
		zap.Float64("vertex_ratio", ratio),
	)
	return m
}

func sources(obj *formats.OBJ) []string {
	out := append([]string{obj.Name}, obj.Libraries...)
	if obj.Materials != nil {
		for _, name := range obj.Materials.Order {
			if tex := obj.Materials.Materials[name].Texture; tex != "" {
				out = append(out, tex)
			}
		}
	}
	return out
}
