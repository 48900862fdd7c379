package frame

import (
	"errors"
	"image"
	"math/bits"
)

var errWrongSize = errors.New("frame: image is wrong size")

// Quantizer converts images to frames and remembers the last frame that was
// kept so unchanged images can be skipped.
type Quantizer struct {
	width  int
	height int
	levels int
	shift  uint

	kept *Frame
}

// NewQuantizer returns a Quantizer for images of the given size reduced to
// levels brightness values. levels must be a power of two no larger than 256.
func NewQuantizer(width, height, levels int) *Quantizer {
	return &Quantizer{
		width:  width,
		height: height,
		levels: levels,
		shift:  uint(8 - (bits.Len(uint(levels)) - 1)),
		kept:   New(width, height, levels),
	}
}

// Quantize converts m to a frame without touching the kept frame
func (q *Quantizer) Quantize(m image.Image) (*Frame, error) {
	b := m.Bounds()
	if b.Dx() != q.width || b.Dy() != q.height {
		return nil, errWrongSize
	}

	f := New(q.width, q.height, q.levels)

	// Fast path for the common decoder outputs
	switch src := m.(type) {
	case *image.NRGBA:
		for y := 0; y < q.height; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			for x := 0; x < q.width; x++ {
				p := row[x*4 : x*4+3]
				f.Pix[y*q.width+x] = Luma(p[0]>>q.shift, p[1]>>q.shift, p[2]>>q.shift)
			}
		}
		return f, nil
	case *image.Gray:
		for y := 0; y < q.height; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
			for x := 0; x < q.width; x++ {
				v := row[x] >> q.shift
				f.Pix[y*q.width+x] = Luma(v, v, v)
			}
		}
		return f, nil
	}

	for y := 0; y < q.height; y++ {
		for x := 0; x < q.width; x++ {
			r, g, bl := rgb(m.At(b.Min.X+x, b.Min.Y+y))
			f.Pix[y*q.width+x] = Luma(r>>q.shift, g>>q.shift, bl>>q.shift)
		}
	}

	return f, nil
}

// Next quantizes m and compares it with the kept frame. If nothing changed
// it returns false and the kept frame stays as it is, otherwise the new
// frame replaces it. Before anything is kept the frame is all zero, matching
// the blank screen the player starts with.
func (q *Quantizer) Next(m image.Image) (*Frame, bool, error) {
	f, err := q.Quantize(m)
	if err != nil {
		return nil, false, err
	}

	if f.Equal(q.kept) {
		return f, false, nil
	}

	q.kept = f

	return f, true, nil
}

// Reset goes back to the all-zero frame
func (q *Quantizer) Reset() {
	q.kept = New(q.width, q.height, q.levels)
}
