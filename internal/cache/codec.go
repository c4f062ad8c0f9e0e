// Package cache stores compacted models in a binary form that loads without
// the source OBJ and MTL files.
package cache

import (
	"bufio"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/Faultbox/fasterobj/internal/engine/model"
	"github.com/Faultbox/fasterobj/pkg/formats"
)

const (
	magic   = "OBJC"
	version = 1

	flagCompressed = 1 << 0
)

// Batch flag bits.
const (
	batchHasTexCoord = 1 << 0
	batchHasNormal   = 1 << 1
)

// maxCount bounds any element count read from a file.
const maxCount = 1 << 28

// readChunk is the most elements a slice grows by before its data has been
// read, so memory use follows the bytes actually present in the input
// rather than the counts it declares.
const readChunk = 1 << 16

var (
	ErrInvalidMagic       = errors.New("invalid cache magic")
	ErrUnsupportedVersion = errors.New("unsupported cache version")
	ErrTruncated          = errors.New("cache data truncated")
	ErrCorrupt            = errors.New("cache data corrupt")
)

// Header is the fixed, uncompressed start of a cache file.
type Header struct {
	Magic   [4]byte
	Version uint16
	Flags   uint16
}

// Compressed reports whether the body is zlib compressed.
func (h Header) Compressed() bool {
	return h.Flags&flagCompressed != 0
}

// Encode writes m to w. Only the geometry, batches and material library are
// stored; GPU state is never serialized.
func Encode(w io.Writer, m *model.Model, compress bool) error {
	h := Header{Version: version}
	copy(h.Magic[:], magic)
	if compress {
		h.Flags |= flagCompressed
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	var body io.Writer = w
	var zw *zlib.Writer
	if compress {
		zw = zlib.NewWriter(w)
		body = zw
	}
	bw := bufio.NewWriter(body)

	e := &encoder{w: bw}
	e.model(m)
	if e.err == nil {
		e.err = bw.Flush()
	}
	if zw != nil {
		if err := zw.Close(); err != nil && e.err == nil {
			e.err = err
		}
	}
	if e.err != nil {
		return fmt.Errorf("writing body: %w", e.err)
	}
	return nil
}

// Decode reads a model written by Encode. The model is inactive.
func Decode(r io.Reader) (*model.Model, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading header: %w", truncated(err))
	}
	if string(h.Magic[:]) != magic {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, h.Magic[:])
	}
	if h.Version != version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	body := r
	if h.Compressed() {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening compressed body: %w", truncated(err))
		}
		defer zr.Close()
		body = zr
	}

	d := &decoder{r: bufio.NewReader(body)}
	m := d.model()
	if d.err != nil {
		return nil, fmt.Errorf("reading body: %w", truncated(d.err))
	}
	return m, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}

// encoder writes little-endian values and keeps the first error.
type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) count(n int) {
	e.write(uint32(n))
}

func (e *encoder) str(s string) {
	e.count(len(s))
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

func (e *encoder) model(m *model.Model) {
	e.str(m.Name)
	e.write(uint8(m.Mode))

	e.count(len(m.Sources))
	for _, s := range m.Sources {
		e.str(s)
	}

	e.count(len(m.Positions))
	e.write(m.Positions)
	e.write(m.Normals)
	e.write(m.TexCoords)

	e.count(len(m.Materials))
	for _, mb := range m.Materials {
		e.str(mb.Material)
		e.count(len(mb.Batches))
		for i := range mb.Batches {
			e.batch(&mb.Batches[i])
		}
	}

	e.library(m.Library)
}

func (e *encoder) batch(b *model.Batch) {
	var flags uint8
	if b.HasTexCoord {
		flags |= batchHasTexCoord
	}
	if b.HasNormal {
		flags |= batchHasNormal
	}
	e.write(uint8(b.Primitive))
	e.write(flags)
	e.write(b.Faces)
	e.write(b.Offset)
	e.write(b.Count)
	e.count(len(b.Indices))
	e.write(b.Indices)
}

func (e *encoder) library(lib *formats.MTL) {
	if lib == nil {
		e.write(uint8(0))
		return
	}
	e.write(uint8(1))
	e.str(lib.Name)
	e.count(len(lib.Order))
	for _, name := range lib.Order {
		e.material(lib.Materials[name])
	}
}

func (e *encoder) material(mat *formats.Material) {
	e.str(mat.Name)
	e.str(mat.Texture)

	// Sorted so equal materials encode to equal bytes.
	keys := make([]string, 0, len(mat.Properties))
	for k := range mat.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.count(len(keys))
	for _, k := range keys {
		e.str(k)
		e.count(len(mat.Properties[k]))
		e.write(mat.Properties[k])
	}

	if mat.Image == nil {
		e.write(uint8(0))
		return
	}
	e.write(uint8(1))
	e.count(mat.Image.Width)
	e.count(mat.Image.Height)
	e.count(len(mat.Image.Pix))
	e.write(mat.Image.Pix)
}

// decoder mirrors encoder.
type decoder struct {
	r   io.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

func (d *decoder) u8() uint8 {
	var v uint8
	d.read(&v)
	return v
}

func (d *decoder) i32() int32 {
	var v int32
	d.read(&v)
	return v
}

func (d *decoder) count() int {
	var v uint32
	d.read(&v)
	if d.err == nil && v > maxCount {
		d.err = fmt.Errorf("%w: count %d", ErrCorrupt, v)
	}
	if d.err != nil {
		return 0
	}
	return int(v)
}

// readSlice reads n fixed-size values, growing the result one chunk at a
// time. The result is non-nil unless an error occurred.
func readSlice[T any](d *decoder, n int) []T {
	if d.err != nil {
		return nil
	}
	out := make([]T, 0, min(n, readChunk))
	for len(out) < n {
		start := len(out)
		step := min(n-start, readChunk)
		out = slices.Grow(out, step)[:start+step]
		d.read(out[start:])
		if d.err != nil {
			return nil
		}
	}
	return out
}

func (d *decoder) str() string {
	n := d.count()
	if n == 0 {
		return ""
	}
	return string(readSlice[byte](d, n))
}

func (d *decoder) model() *model.Model {
	m := &model.Model{Name: d.str()}
	m.Mode = model.Mode(d.u8())
	if d.err == nil && m.Mode != model.ModeIndexed && m.Mode != model.ModeFlat {
		d.err = fmt.Errorf("%w: mode %d", ErrCorrupt, m.Mode)
	}

	// Records are appended one at a time; each consumes input, so a
	// declared count alone never allocates.
	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		m.Sources = append(m.Sources, d.str())
	}

	if n := d.count(); n > 0 {
		m.Positions = readSlice[[3]float32](d, n)
		m.Normals = readSlice[[3]float32](d, n)
		m.TexCoords = readSlice[[2]float32](d, n)
	}

	n = d.count()
	for i := 0; i < n && d.err == nil; i++ {
		mb := model.MaterialBatches{Material: d.str()}
		nb := d.count()
		for j := 0; j < nb && d.err == nil; j++ {
			var b model.Batch
			d.batch(&b, len(m.Positions))
			mb.Batches = append(mb.Batches, b)
		}
		m.Materials = append(m.Materials, mb)
	}
	if d.err != nil {
		return nil
	}

	m.Library = d.library()
	if d.err != nil {
		return nil
	}
	return m
}

func (d *decoder) batch(b *model.Batch, vertices int) {
	b.Primitive = formats.Primitive(d.u8())
	flags := d.u8()
	b.HasTexCoord = flags&batchHasTexCoord != 0
	b.HasNormal = flags&batchHasNormal != 0
	b.Faces = d.i32()
	b.Offset = d.i32()
	b.Count = d.i32()
	if n := d.count(); n > 0 {
		b.Indices = readSlice[uint32](d, n)
	}
	if d.err != nil {
		return
	}

	if !b.Primitive.Valid() {
		d.err = fmt.Errorf("%w: primitive %d", ErrCorrupt, b.Primitive)
		return
	}
	if b.Offset < 0 || b.Count < 0 {
		d.err = fmt.Errorf("%w: negative batch range %d+%d", ErrCorrupt, b.Offset, b.Count)
		return
	}
	if b.Indices == nil && int(b.Offset)+int(b.Count) > vertices {
		d.err = fmt.Errorf("%w: batch range %d+%d exceeds %d vertices", ErrCorrupt, b.Offset, b.Count, vertices)
		return
	}
	for _, id := range b.Indices {
		if int(id) >= vertices {
			d.err = fmt.Errorf("%w: index %d exceeds %d vertices", ErrCorrupt, id, vertices)
			return
		}
	}
}

func (d *decoder) library() *formats.MTL {
	if d.u8() == 0 {
		return nil
	}
	lib := formats.NewMTL(d.str())
	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		mat := d.material()
		if mat == nil {
			return nil
		}
		lib.Order = append(lib.Order, mat.Name)
		lib.Materials[mat.Name] = mat
	}
	return lib
}

func (d *decoder) material() *formats.Material {
	mat := &formats.Material{
		Name:       d.str(),
		Texture:    d.str(),
		Properties: make(map[string][]float32),
	}
	n := d.count()
	for i := 0; i < n && d.err == nil; i++ {
		key := d.str()
		mat.Properties[key] = readSlice[float32](d, d.count())
	}

	if d.u8() != 0 {
		img := &formats.Image{Width: d.count(), Height: d.count()}
		if n := d.count(); d.err == nil && n != img.Width*img.Height*4 {
			d.err = fmt.Errorf("%w: texture %s has %d bytes for %dx%d", ErrCorrupt, mat.Texture, n, img.Width, img.Height)
		} else {
			img.Pix = readSlice[byte](d, n)
		}
		mat.Image = img
	}
	if d.err != nil {
		return nil
	}
	return mat
}
