// Package texture decodes material texture images into raw RGBA pixels.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

var errTGATruncated = errors.New("TGA data truncated")

// DecodeTGA decodes a true-color TGA image, uncompressed (type 2) or RLE
// compressed (type 10), 24 or 32 bits per pixel. The image package has no
// TGA decoder and many OBJ exports ship their textures as TGA.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("unsupported TGA type %d (only uncompressed/RLE true-color supported)", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d (only 24/32 supported)", bpp)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, errTGATruncated
	}

	d := tgaDecoder{
		img:         image.NewNRGBA(image.Rect(0, 0, width, height)),
		src:         data[offset:],
		width:       width,
		height:      height,
		bytesPerPix: bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}

	var err error
	if imageType == TGATypeUncompressed {
		err = d.decodeRaw()
	} else {
		err = d.decodeRLE()
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img         *image.NRGBA
	src         []byte
	pos         int
	width       int
	height      int
	bytesPerPix int
	topToBottom bool
}

// pixel reads one BGR(A) pixel from the source.
func (d *tgaDecoder) pixel() (color.NRGBA, bool) {
	if d.pos+d.bytesPerPix > len(d.src) {
		return color.NRGBA{}, false
	}
	p := d.src[d.pos:]
	c := color.NRGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if d.bytesPerPix == 4 {
		c.A = p[3]
	}
	d.pos += d.bytesPerPix
	return c, true
}

// set writes the n-th pixel in file order, honoring the row order flag.
func (d *tgaDecoder) set(n int, c color.NRGBA) {
	x := n % d.width
	y := n / d.width
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.img.SetNRGBA(x, y, c)
}

func (d *tgaDecoder) decodeRaw() error {
	if len(d.src) < d.width*d.height*d.bytesPerPix {
		return errTGATruncated
	}
	for n := 0; n < d.width*d.height; n++ {
		c, _ := d.pixel()
		d.set(n, c)
	}
	return nil
}

// decodeRLE stops quietly at the end of the data; a short file leaves the
// remaining pixels transparent.
func (d *tgaDecoder) decodeRLE() error {
	total := d.width * d.height
	n := 0
	for n < total && d.pos < len(d.src) {
		packet := d.src[d.pos]
		d.pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			c, ok := d.pixel()
			if !ok {
				return nil
			}
			for i := 0; i < count && n < total; i++ {
				d.set(n, c)
				n++
			}
			continue
		}

		for i := 0; i < count && n < total; i++ {
			c, ok := d.pixel()
			if !ok {
				return nil
			}
			d.set(n, c)
			n++
		}
	}
	return nil
}
