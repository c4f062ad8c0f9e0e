// Package model compacts parsed OBJ geometry into render-ready vertex buffers
// and draw batches.
package model

import (
	"errors"
	"fmt"

	"github.com/Faultbox/fasterobj/pkg/formats"
)

// Mode selects how the compactor lays out vertex data.
type Mode uint8

const (
	// ModeIndexed deduplicates corners into shared vertices drawn by index.
	ModeIndexed Mode = iota
	// ModeFlat duplicates every corner; batches are contiguous vertex runs.
	ModeFlat
)

func (m Mode) String() string {
	switch m {
	case ModeIndexed:
		return "indexed"
	case ModeFlat:
		return "flat"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMode converts a mode name as used in config files and flags.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "indexed", "":
		return ModeIndexed, nil
	case "flat":
		return ModeFlat, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want indexed or flat)", s)
	}
}

// Batch is one draw call: faces of a single primitive class with constant
// attribute presence.
type Batch struct {
	Primitive   formats.Primitive
	HasTexCoord bool
	HasNormal   bool
	Faces       int32

	// Indices into the model's vertex buffers. Nil in flat mode.
	Indices []uint32

	// First vertex and number of corners. In indexed mode Offset is 0 and
	// Count equals len(Indices).
	Offset int32
	Count  int32
}

// MaterialBatches groups the batches drawn with one material. Material is
// empty for faces without a usemtl.
type MaterialBatches struct {
	Material string
	Batches  []Batch
}

// Resources is GPU-side state acquired for a model.
type Resources interface {
	Release()
}

// Activator acquires the GPU-side state a model needs to be drawn.
type Activator interface {
	Activate(m *Model) (Resources, error)
}

// ErrActivatedElsewhere is returned when a model that is already active is
// activated through a different activator.
var ErrActivatedElsewhere = errors.New("model already activated by another activator")

// Model is compacted geometry. Positions, Normals and TexCoords are always
// the same length; absent attributes are stored as zero vectors.
type Model struct {
	Name      string
	Mode      Mode
	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][2]float32
	Materials []MaterialBatches
	Library   *formats.MTL

	// Sources lists the files the model was built from: the OBJ, its
	// material libraries and their textures.
	Sources []string

	activator Activator
	resources Resources
}

// Material returns the material bound for a batch group, or nil when the
// group has no material or the library does not define it.
func (m *Model) Material(name string) *formats.Material {
	if name == "" {
		return nil
	}
	return m.Library.Get(name)
}

// VertexCount returns the number of vertices in the buffers.
func (m *Model) VertexCount() int {
	return len(m.Positions)
}

// BatchCount returns the number of draw batches across all materials.
func (m *Model) BatchCount() int {
	n := 0
	for _, mb := range m.Materials {
		n += len(mb.Batches)
	}
	return n
}

// Activate acquires GPU resources through a. Calling it again on an active
// model is a no-op.
func (m *Model) Activate(a Activator) error {
	if m.resources != nil {
		if m.activator != a {
			return ErrActivatedElsewhere
		}
		return nil
	}
	res, err := a.Activate(m)
	if err != nil {
		return fmt.Errorf("activating %s: %w", m.Name, err)
	}
	m.activator = a
	m.resources = res
	return nil
}

// Resources returns the state acquired by Activate, or nil.
func (m *Model) Resources() Resources {
	return m.resources
}

// Active reports whether the model holds GPU resources.
func (m *Model) Active() bool {
	return m.resources != nil
}

// Release frees GPU resources. The geometry stays and the model can be
// activated again.
func (m *Model) Release() {
	if m.resources == nil {
		return
	}
	m.resources.Release()
	m.resources = nil
	m.activator = nil
}
