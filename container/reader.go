package container

import (
	"bufio"
	"encoding/binary"
	"io"
)

func readFull(r io.Reader, b []byte) error {
	_, err := io.ReadFull(r, b)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Reader reads a container in the order it was written. It is up to the
// caller to interleave ReadAudio and ReadFrame following the Layout.
type Reader struct {
	r      *bufio.Reader
	layout Layout

	frames    int
	read      int
	exhausted bool
}

// NewReader reads the container header from r
func NewReader(r io.Reader, layout Layout) (*Reader, error) {
	cr := &Reader{
		r:      bufio.NewReader(r),
		layout: layout,
	}

	var tmp [4]byte
	if err := readFull(cr.r, tmp[:]); err != nil {
		return nil, err
	}
	cr.frames = int(binary.LittleEndian.Uint32(tmp[:]))

	return cr, nil
}

// Frames returns the frame count from the header
func (r *Reader) Frames() int {
	return r.frames
}

// Layout returns the audio layout the reader was created with
func (r *Reader) Layout() Layout {
	return r.layout
}

// AudioExhausted reports whether a block pair has come up short
func (r *Reader) AudioExhausted() bool {
	return r.exhausted
}

// ReadAudio fills l and r with the next block pair. Whatever is missing
// from a truncated file is silence rather than an error.
func (r *Reader) ReadAudio(left, right []byte) error {
	for _, b := range [][]byte{left, right} {
		n := 0
		if !r.exhausted {
			var err error
			n, err = io.ReadFull(r.r, b)
			switch err {
			case nil:
			case io.EOF, io.ErrUnexpectedEOF:
				r.exhausted = true
			default:
				return err
			}
		}
		for i := n; i < len(b); i++ {
			b[i] = 0
		}
	}
	return nil
}

// ReadFrame reads the next frame record. Flags the player can't act on
// return a *FlagError and a record cut short returns io.ErrUnexpectedEOF.
func (r *Reader) ReadFrame() (Record, error) {
	var tmp [2]byte
	if err := readFull(r.r, tmp[:1]); err != nil {
		return Record{}, err
	}

	rec := Record{Flags: Flag(tmp[0])}
	if !rec.Flags.Valid() {
		return rec, &FlagError{Frame: r.read, Flags: rec.Flags}
	}

	if rec.Flags.HasPayload() {
		if err := readFull(r.r, tmp[:]); err != nil {
			return Record{}, err
		}
		rec.Payload = make([]byte, binary.LittleEndian.Uint16(tmp[:]))
		if err := readFull(r.r, rec.Payload); err != nil {
			return Record{}, err
		}
	}

	r.read++

	return rec, nil
}
