// Package screenshot writes framebuffer captures as PNG files.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Capturer names and writes screenshots into a directory.
type Capturer struct {
	dir    string
	prefix string
	now    func() time.Time
}

// New creates a capturer writing <prefix>_<timestamp>.png files into dir.
func New(dir, prefix string) *Capturer {
	return &Capturer{dir: dir, prefix: prefix, now: time.Now}
}

// Filename returns the path the next capture would be written to.
func (c *Capturer) Filename() string {
	name := fmt.Sprintf("%s_%s.png", c.prefix, c.now().Format("2006-01-02_15-04-05.000"))
	return filepath.Join(c.dir, name)
}

// Save writes bottom-up RGBA rows, as returned by glReadPixels, to a new PNG.
func (c *Capturer) Save(pixels []byte, width, height int) (string, error) {
	img, err := FromGL(pixels, width, height)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("creating screenshot dir: %w", err)
	}
	path := c.Filename()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating screenshot: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return path, f.Close()
}

// FromGL converts bottom-up RGBA rows to a top-down image.
func FromGL(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: %dx%d needs %d bytes, got %d",
			width, height, width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img, nil
}
