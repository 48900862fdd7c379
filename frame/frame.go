/*
Package frame implements the brightness frames fed to the kpv encoder.

A frame is a fixed size grid holding one brightness level per pixel. Each
input pixel has every 8-bit channel reduced to the palette's bit depth before
the perceptual luma weighting is applied, so with the default 32 level palette
every value is in the range 0 to 31.
*/
package frame

import (
	"bytes"
	"image"
	"image/color"
)

// Luma weights applied to the red, green and blue channels
const (
	weightR = 0.2126
	weightG = 0.7152
	weightB = 0.0722
)

// Frame is a grid of brightness levels
type Frame struct {
	Width  int
	Height int
	Levels int
	Pix    []uint8
}

// New returns an all-zero frame
func New(width, height, levels int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Levels: levels,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the level at (x, y)
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// Set stores the level at (x, y)
func (f *Frame) Set(x, y int, v uint8) {
	f.Pix[y*f.Width+x] = v
}

// Equal reports whether both frames hold the same levels
func (f *Frame) Equal(o *Frame) bool {
	if o == nil || f.Width != o.Width || f.Height != o.Height {
		return false
	}
	return bytes.Equal(f.Pix, o.Pix)
}

// Image converts the frame to 8-bit grayscale, stretching the levels over the
// full range
func (f *Frame) Image() *image.Gray {
	m := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	top := f.Levels - 1
	if top < 1 {
		top = 1
	}
	for i, v := range f.Pix {
		m.Pix[i] = uint8(int(v) * 0xff / top)
	}
	return m
}

// Luma returns the perceived brightness of an RGB triple
func Luma(r, g, b uint8) uint8 {
	return uint8(weightR*float64(r) + weightG*float64(g) + weightB*float64(b))
}

// Non-premultiplied 8-bit channels, as an image loader hands them over
func rgb(c color.Color) (uint8, uint8, uint8) {
	if n, ok := c.(color.NRGBA); ok {
		return n.R, n.G, n.B
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return n.R, n.G, n.B
}
