// Package glrender draws compacted models with OpenGL 2.1. The compatibility
// profile is required: quad and polygon primitives do not exist in core
// profiles.
package glrender

import (
	"fmt"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/internal/engine/renderer"
	"github.com/Faultbox/fasterobj/internal/logger"
	"github.com/Faultbox/fasterobj/pkg/formats"
)

// Config holds renderer configuration.
type Config struct {
	Width    int
	Height   int
	Lighting bool
}

// Renderer owns per-frame GL state: viewport, matrices and lights.
type Renderer struct {
	config Config
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.ShadeModel(gl.SMOOTH)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	// Diffuse comes from glColor so untextured materials show their Kd.
	gl.Enable(gl.COLOR_MATERIAL)
	gl.ColorMaterial(gl.FRONT_AND_BACK, gl.AMBIENT_AND_DIFFUSE)
	gl.LightModeli(gl.LIGHT_MODEL_TWO_SIDE, gl.TRUE)

	ambient := [4]float32{0.25, 0.25, 0.25, 1}
	diffuse := [4]float32{0.8, 0.8, 0.8, 1}
	gl.Lightfv(gl.LIGHT0, gl.AMBIENT, &ambient[0])
	gl.Lightfv(gl.LIGHT0, gl.DIFFUSE, &diffuse[0])
	gl.Enable(gl.LIGHT0)

	r := &Renderer{config: cfg}
	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// Begin clears the frame and loads the camera matrices. The light is placed
// in eye space so it follows the camera.
func (r *Renderer) Begin(projection, view mgl32.Mat4) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.MatrixMode(gl.PROJECTION)
	gl.LoadMatrixf(&projection[0])

	gl.MatrixMode(gl.MODELVIEW)
	gl.LoadIdentity()
	headlight := [4]float32{0.3, 0.5, 1, 0}
	gl.Lightfv(gl.LIGHT0, gl.POSITION, &headlight[0])
	gl.LoadMatrixf(&view[0])
}

// DrawAt runs draw with the model-view matrix translated by offset.
func (r *Renderer) DrawAt(offset mgl32.Vec3, draw func() error) error {
	gl.PushMatrix()
	defer gl.PopMatrix()
	gl.Translatef(offset[0], offset[1], offset[2])
	return draw()
}

// DrawLines draws unlit, untextured line segments.
func (r *Renderer) DrawLines(points [][3]float32, color [3]float32) {
	gl.Disable(gl.LIGHTING)
	gl.Disable(gl.TEXTURE_2D)
	gl.Color3f(color[0], color[1], color[2])
	gl.Begin(gl.LINES)
	for i := range points {
		gl.Vertex3fv(&points[i][0])
	}
	gl.End()
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.Flush()
}

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	if w <= 0 || h <= 0 {
		return nil, 0, 0
	}
	pixels := make([]byte, w*h*4)
	gl.ReadBuffer(gl.BACK)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}

// Backend creates a backend of the given kind using the renderer's lighting
// setting.
func (r *Renderer) Backend(kind renderer.Kind) (renderer.Backend, error) {
	return NewBackend(kind, r.config.Lighting)
}

// NewBackend creates the backend of the given kind. A GL context must be
// current.
func NewBackend(kind renderer.Kind, lighting bool) (renderer.Backend, error) {
	switch kind {
	case renderer.KindImmediate:
		return &Immediate{lighting: lighting}, nil
	case renderer.KindIndexed:
		return &Indexed{lighting: lighting}, nil
	case renderer.KindBuffer:
		return &BufferObject{lighting: lighting}, nil
	default:
		return nil, fmt.Errorf("unsupported backend %v", kind)
	}
}

func primitiveMode(p formats.Primitive) uint32 {
	switch p {
	case formats.PrimitiveQuads:
		return gl.QUADS
	case formats.PrimitivePolygon:
		return gl.POLYGON
	default:
		return gl.TRIANGLES
	}
}

// textures maps material names to GL texture names.
type textures map[string]uint32

// uploadTextures creates one GL texture per material with a decoded image.
func uploadTextures(m *model.Model) textures {
	out := make(textures)
	if m.Library == nil {
		return out
	}
	for _, name := range m.Library.Order {
		mat := m.Library.Materials[name]
		if mat.Image == nil || len(mat.Image.Pix) == 0 {
			continue
		}
		var id uint32
		gl.GenTextures(1, &id)
		gl.BindTexture(gl.TEXTURE_2D, id)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
			int32(mat.Image.Width), int32(mat.Image.Height), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(mat.Image.Pix))
		out[name] = id
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return out
}

func (t textures) release() {
	for name, id := range t {
		gl.DeleteTextures(1, &id)
		delete(t, name)
	}
}

// target is the GL side of renderer.DrawTarget shared by all backends.
type target struct {
	textures textures
	lighting bool
	streams  func(tex, norm bool)
	draw     func(b *model.Batch)
}

// BindMaterial binds the material's texture, or its diffuse color without a
// texture. Faces without a material draw white.
func (t *target) BindMaterial(name string, mat *formats.Material) {
	if id, ok := t.textures[name]; ok {
		gl.Enable(gl.TEXTURE_2D)
		gl.BindTexture(gl.TEXTURE_2D, id)
		gl.Color3f(1, 1, 1)
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.Disable(gl.TEXTURE_2D)
	c := [3]float32{1, 1, 1}
	if mat != nil {
		c = mat.Diffuse()
	}
	gl.Color3f(c[0], c[1], c[2])
}

// SetStreams toggles lighting with the normal stream; batches without
// normals draw unlit.
func (t *target) SetStreams(tex, norm bool) {
	if t.lighting && norm {
		gl.Enable(gl.LIGHTING)
	} else {
		gl.Disable(gl.LIGHTING)
	}
	if t.streams != nil {
		t.streams(tex, norm)
	}
}

func (t *target) Draw(b *model.Batch) {
	t.draw(b)
}

// setClientStreams enables the optional client-side arrays.
func setClientStreams(tex, norm bool) {
	if tex {
		gl.EnableClientState(gl.TEXTURE_COORD_ARRAY)
	} else {
		gl.DisableClientState(gl.TEXTURE_COORD_ARRAY)
	}
	if norm {
		gl.EnableClientState(gl.NORMAL_ARRAY)
	} else {
		gl.DisableClientState(gl.NORMAL_ARRAY)
	}
}

func resetState() {
	gl.DisableClientState(gl.VERTEX_ARRAY)
	gl.DisableClientState(gl.NORMAL_ARRAY)
	gl.DisableClientState(gl.TEXTURE_COORD_ARRAY)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.Disable(gl.TEXTURE_2D)
	gl.Disable(gl.LIGHTING)
}
