package glrender

import (
	"fmt"
	"runtime"

	"github.com/go-gl/gl/v2.1/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/engine/renderer"
	"github.com/Faultbox/fasterobj/internal/logger"
)

// resourcesOf returns the state a backend stored on m, activating first.
func resourcesOf[R model.Resources](m *model.Model, a model.Activator) (R, error) {
	var zero R
	if err := m.Activate(a); err != nil {
		return zero, err
	}
	res, ok := m.Resources().(R)
	if !ok {
		return zero, fmt.Errorf("model %s holds %T", m.Name, m.Resources())
	}
	return res, nil
}

// Immediate draws every corner with glVertex calls. Only textures live on
// the GPU.
type Immediate struct {
	lighting bool
}

type immediateResources struct {
	textures textures
}

func (r *immediateResources) Release() {
	r.textures.release()
}

func (b *Immediate) Kind() renderer.Kind { return renderer.KindImmediate }

func (b *Immediate) Activate(m *model.Model) (model.Resources, error) {
	res := &immediateResources{textures: uploadTextures(m)}
	logger.Debug("model activated",
		zap.String("name", m.Name),
		zap.Stringer("backend", b.Kind()),
		zap.Int("textures", len(res.textures)),
	)
	return res, nil
}

func (b *Immediate) Draw(m *model.Model) error {
	res, err := resourcesOf[*immediateResources](m, b)
	if err != nil {
		return err
	}

	var tex, norm bool
	corner := func(i uint32) {
		if tex {
			gl.TexCoord2fv(&m.TexCoords[i][0])
		}
		if norm {
			gl.Normal3fv(&m.Normals[i][0])
		}
		gl.Vertex3fv(&m.Positions[i][0])
	}

	renderer.Emit(m, &target{
		textures: res.textures,
		lighting: b.lighting,
		streams:  func(t, n bool) { tex, norm = t, n },
		draw: func(batch *model.Batch) {
			gl.Begin(primitiveMode(batch.Primitive))
			if batch.Indices != nil {
				for _, i := range batch.Indices {
					corner(i)
				}
			} else {
				for i := batch.Offset; i < batch.Offset+batch.Count; i++ {
					corner(uint32(i))
				}
			}
			gl.End()
		},
	})
	resetState()
	return nil
}

func (b *Immediate) Close() {}

// Indexed draws from client-side vertex arrays with glDrawElements, or
// glDrawArrays for flat models. The arrays are pinned while the model is
// active because GL keeps the pointers between calls.
type Indexed struct {
	lighting bool
}

type indexedResources struct {
	textures textures
	pinner   runtime.Pinner
}

func (r *indexedResources) Release() {
	r.textures.release()
	r.pinner.Unpin()
}

func (b *Indexed) Kind() renderer.Kind { return renderer.KindIndexed }

func (b *Indexed) Activate(m *model.Model) (model.Resources, error) {
	res := &indexedResources{textures: uploadTextures(m)}
	if m.VertexCount() > 0 {
		res.pinner.Pin(&m.Positions[0])
		res.pinner.Pin(&m.Normals[0])
		res.pinner.Pin(&m.TexCoords[0])
	}
	logger.Debug("model activated",
		zap.String("name", m.Name),
		zap.Stringer("backend", b.Kind()),
		zap.Int("textures", len(res.textures)),
	)
	return res, nil
}

func (b *Indexed) Draw(m *model.Model) error {
	res, err := resourcesOf[*indexedResources](m, b)
	if err != nil {
		return err
	}
	if m.VertexCount() == 0 {
		return nil
	}

	gl.EnableClientState(gl.VERTEX_ARRAY)
	gl.VertexPointer(3, gl.FLOAT, 0, gl.Ptr(&m.Positions[0][0]))
	gl.NormalPointer(gl.FLOAT, 0, gl.Ptr(&m.Normals[0][0]))
	gl.TexCoordPointer(2, gl.FLOAT, 0, gl.Ptr(&m.TexCoords[0][0]))

	renderer.Emit(m, &target{
		textures: res.textures,
		lighting: b.lighting,
		streams:  setClientStreams,
		draw: func(batch *model.Batch) {
			mode := primitiveMode(batch.Primitive)
			if batch.Indices != nil {
				gl.DrawElements(mode, int32(len(batch.Indices)), gl.UNSIGNED_INT, gl.Ptr(batch.Indices))
			} else {
				gl.DrawArrays(mode, batch.Offset, batch.Count)
			}
		},
	})
	resetState()
	return nil
}

func (b *Indexed) Close() {}

// BufferObject uploads the vertex buffers and all indices into buffer
// objects once, at activation.
type BufferObject struct {
	lighting bool
}

type bufferResources struct {
	textures textures
	// positions, normals, texcoords, indices
	buffers [4]uint32
	// Start of each batch in the index buffer, in draw order.
	starts []int
}

func (r *bufferResources) Release() {
	r.textures.release()
	gl.DeleteBuffers(int32(len(r.buffers)), &r.buffers[0])
	r.buffers = [4]uint32{}
}

func (b *BufferObject) Kind() renderer.Kind { return renderer.KindBuffer }

func (b *BufferObject) Activate(m *model.Model) (model.Resources, error) {
	res := &bufferResources{textures: uploadTextures(m)}
	if m.VertexCount() == 0 {
		return res, nil
	}

	var indices []uint32
	for _, mb := range m.Materials {
		for _, batch := range mb.Batches {
			res.starts = append(res.starts, len(indices))
			indices = append(indices, batch.Indices...)
		}
	}

	gl.GenBuffers(int32(len(res.buffers)), &res.buffers[0])
	upload := func(target, id uint32, size int, data any) {
		gl.BindBuffer(target, id)
		gl.BufferData(target, size, gl.Ptr(data), gl.STATIC_DRAW)
	}
	upload(gl.ARRAY_BUFFER, res.buffers[0], len(m.Positions)*12, &m.Positions[0][0])
	upload(gl.ARRAY_BUFFER, res.buffers[1], len(m.Normals)*12, &m.Normals[0][0])
	upload(gl.ARRAY_BUFFER, res.buffers[2], len(m.TexCoords)*8, &m.TexCoords[0][0])
	if len(indices) > 0 {
		upload(gl.ELEMENT_ARRAY_BUFFER, res.buffers[3], len(indices)*4, indices)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		res.Release()
		return nil, fmt.Errorf("uploading buffers: GL error 0x%x", e)
	}

	logger.Debug("model activated",
		zap.String("name", m.Name),
		zap.Stringer("backend", b.Kind()),
		zap.Int("textures", len(res.textures)),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("indices", len(indices)),
	)
	return res, nil
}

func (b *BufferObject) Draw(m *model.Model) error {
	res, err := resourcesOf[*bufferResources](m, b)
	if err != nil {
		return err
	}
	if m.VertexCount() == 0 {
		return nil
	}

	gl.EnableClientState(gl.VERTEX_ARRAY)
	gl.BindBuffer(gl.ARRAY_BUFFER, res.buffers[0])
	gl.VertexPointer(3, gl.FLOAT, 0, nil)
	gl.BindBuffer(gl.ARRAY_BUFFER, res.buffers[1])
	gl.NormalPointer(gl.FLOAT, 0, nil)
	gl.BindBuffer(gl.ARRAY_BUFFER, res.buffers[2])
	gl.TexCoordPointer(2, gl.FLOAT, 0, nil)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, res.buffers[3])

	next := 0
	renderer.Emit(m, &target{
		textures: res.textures,
		lighting: b.lighting,
		streams:  setClientStreams,
		draw: func(batch *model.Batch) {
			mode := primitiveMode(batch.Primitive)
			if batch.Indices != nil {
				gl.DrawElements(mode, int32(len(batch.Indices)), gl.UNSIGNED_INT, gl.PtrOffset(res.starts[next]*4))
			} else {
				gl.DrawArrays(mode, batch.Offset, batch.Count)
			}
			next++
		},
	})

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
	resetState()
	return nil
}

func (b *BufferObject) Close() {}
