package player

import (
	"image/png"
	"io"
	"sync"

	"github.com/bodgit/kpv/frame"
)

// Framebuffer is display memory. Draw only holds the lock for the copy.
type Framebuffer struct {
	mu     sync.Mutex
	frame  *frame.Frame
	frames int
}

// NewFramebuffer returns a blank display
func NewFramebuffer(width, height, levels int) *Framebuffer {
	return &Framebuffer{
		frame: frame.New(width, height, levels),
	}
}

// Draw copies pix to the display
func (f *Framebuffer) Draw(pix []byte) {
	f.mu.Lock()
	copy(f.frame.Pix, pix)
	f.frames++
	f.mu.Unlock()
}

// Draws returns the number of times the display has been drawn
func (f *Framebuffer) Draws() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Frame returns a copy of what is on the display
func (f *Framebuffer) Frame() *frame.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := frame.New(f.frame.Width, f.frame.Height, f.frame.Levels)
	copy(c.Pix, f.frame.Pix)

	return c
}

// WritePNG writes what is on the display as a grayscale PNG
func (f *Framebuffer) WritePNG(w io.Writer) error {
	return png.Encode(w, f.Frame().Image())
}
