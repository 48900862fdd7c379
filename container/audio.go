package container

import (
	"io"
)

// StereoSource splits interleaved 16-bit little-endian stereo PCM into blocks
// of left and right samples. Once the input runs out every block is silence.
type StereoSource struct {
	r   io.Reader
	buf []byte
	eof bool
}

// NewStereoSource returns a source reading from r, which may be nil for
// silence, in blocks of samples per channel
func NewStereoSource(r io.Reader, samples int) *StereoSource {
	return &StereoSource{
		r:   r,
		buf: make([]byte, samples*4),
		eof: r == nil,
	}
}

// Exhausted reports whether the input has run out
func (s *StereoSource) Exhausted() bool {
	return s.eof
}

// Next fills l and r, each samples*2 bytes, with the next block. Input that
// ends part way through a block leaves the rest of it silent.
func (s *StereoSource) Next(l, r []byte) error {
	n := 0
	if !s.eof {
		var err error
		n, err = io.ReadFull(s.r, s.buf)
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			s.eof = true
		default:
			return err
		}
	}

	// Only whole sample frames count
	n &^= 3

	for i := 0; i < len(s.buf)/4; i++ {
		if i*4 < n {
			copy(l[i*2:i*2+2], s.buf[i*4:i*4+2])
			copy(r[i*2:i*2+2], s.buf[i*4+2:i*4+4])
		} else {
			l[i*2], l[i*2+1] = 0, 0
			r[i*2], r[i*2+1] = 0, 0
		}
	}

	return nil
}
