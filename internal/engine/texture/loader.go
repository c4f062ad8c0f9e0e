package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/fasterobj/internal/logger"
	"github.com/Faultbox/fasterobj/pkg/formats"
)

// Options controls how textures are decoded.
type Options struct {
	// Flip stores rows bottom-to-top, matching the GL texture origin.
	Flip bool
	// MaxSize downscales images whose larger side exceeds it. 0 disables.
	MaxSize int
}

// DefaultOptions returns the options used for GL upload.
func DefaultOptions() Options {
	return Options{Flip: true}
}

// Loader decodes texture files for material libraries.
// It implements formats.ImageLoader.
type Loader struct {
	opts Options
}

// NewLoader creates a texture loader.
func NewLoader(opts Options) *Loader {
	return &Loader{opts: opts}
}

// LoadImage reads and decodes the file at path into RGBA pixels.
func (l *Loader) LoadImage(path string) (*formats.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture: %w", err)
	}

	img, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	if l.opts.MaxSize > 0 {
		b := img.Bounds()
		if b.Dx() > l.opts.MaxSize || b.Dy() > l.opts.MaxSize {
			img = resize.Thumbnail(uint(l.opts.MaxSize), uint(l.opts.MaxSize), img, resize.Bilinear)
		}
	}

	pix := ImageToNRGBA(img, l.opts.Flip)
	logger.Debug("texture loaded",
		zap.String("path", path),
		zap.Int("width", pix.Rect.Dx()),
		zap.Int("height", pix.Rect.Dy()),
	)

	return &formats.Image{
		Width:  pix.Rect.Dx(),
		Height: pix.Rect.Dy(),
		Pix:    pix.Pix,
	}, nil
}

// Decode decodes image data. ext selects the TGA decoder; every other format
// is sniffed from its header.
func Decode(data []byte, ext string) (image.Image, error) {
	if strings.EqualFold(ext, ".tga") {
		return DecodeTGA(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ImageToNRGBA converts any image to tightly packed, non-premultiplied RGBA
// with origin (0,0). With flip set the rows are stored bottom-to-top.
func ImageToNRGBA(img image.Image, flip bool) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		destY := y
		if flip {
			destY = h - 1 - y
		}
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			out.SetNRGBA(x, destY, c)
		}
	}

	return out
}
