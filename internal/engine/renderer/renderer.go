// Package renderer defines how a compacted model is turned into draw calls.
// It holds no graphics API state; GL backends live in glrender.
package renderer

import (
	"fmt"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/pkg/formats"
)

// Kind selects a backend.
type Kind int

const (
	// KindImmediate issues one vertex call per corner.
	KindImmediate Kind = iota
	// KindIndexed draws from client-side vertex arrays.
	KindIndexed
	// KindBuffer uploads vertices and indices into buffer objects.
	KindBuffer
)

func (k Kind) String() string {
	switch k {
	case KindImmediate:
		return "immediate"
	case KindIndexed:
		return "indexed"
	case KindBuffer:
		return "buffer"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// ParseKind converts a backend name as used in config files and flags.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "immediate":
		return KindImmediate, nil
	case "indexed", "arrays":
		return KindIndexed, nil
	case "buffer", "vbo":
		return KindBuffer, nil
	default:
		return 0, fmt.Errorf("unknown backend %q (want immediate, indexed or buffer)", s)
	}
}

// Backend draws models. Activate acquires the GPU state a model needs;
// Draw activates lazily when the model is not active yet.
type Backend interface {
	model.Activator
	Kind() Kind
	Draw(m *model.Model) error
	Close()
}

// DrawTarget receives the draw sequence for one model.
type DrawTarget interface {
	// BindMaterial is called once per material group. mat is nil when the
	// group has no material or the library does not define it.
	BindMaterial(name string, mat *formats.Material)
	// SetStreams enables or disables the texcoord and normal streams.
	SetStreams(texCoords, normals bool)
	// Draw issues one batch.
	Draw(b *model.Batch)
}

// Emit walks m's batches in order, binding each material once and toggling
// attribute streams only when they change between batches.
func Emit(m *model.Model, t DrawTarget) {
	first := true
	var tex, norm bool
	for _, mb := range m.Materials {
		t.BindMaterial(mb.Material, m.Material(mb.Material))
		for i := range mb.Batches {
			b := &mb.Batches[i]
			if first || b.HasTexCoord != tex || b.HasNormal != norm {
				tex, norm = b.HasTexCoord, b.HasNormal
				t.SetStreams(tex, norm)
				first = false
			}
			t.Draw(b)
		}
	}
}
