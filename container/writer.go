package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

var (
	errTooLarge = errors.New("container: payload too large")
	errNoFlags  = errors.New("container: payload flags without a payload bit")
	errClosed   = errors.New("container: writer is closed")
)

// Writer writes a container. The frame count isn't known until the end so it
// is written as zero and filled in by Close.
type Writer struct {
	w      io.WriteSeeker
	bw     *bufio.Writer
	audio  *StereoSource
	layout Layout

	frames int
	start  int64
	closed bool

	left, right []byte
}

// NewWriter writes the header and audio preload to w and returns a Writer
// for the frame records. Audio is taken from audio as it is needed.
func NewWriter(w io.WriteSeeker, audio *StereoSource, layout Layout) (*Writer, error) {
	start, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	cw := &Writer{
		w:      w,
		bw:     bufio.NewWriter(w),
		audio:  audio,
		layout: layout,
		start:  start,
		left:   make([]byte, layout.BlockBytes()),
		right:  make([]byte, layout.BlockBytes()),
	}

	var tmp [4]byte
	if _, err := cw.bw.Write(tmp[:]); err != nil {
		return nil, err
	}

	for i := 0; i < layout.Preload; i++ {
		if err := cw.writeAudio(); err != nil {
			return nil, err
		}
	}

	return cw, nil
}

func (w *Writer) writeAudio() error {
	if err := w.audio.Next(w.left, w.right); err != nil {
		return err
	}
	if _, err := w.bw.Write(w.left); err != nil {
		return err
	}
	_, err := w.bw.Write(w.right)
	return err
}

// WriteFrame writes the next frame record, preceded by an audio block pair
// when one is due. payload is ignored for FlagStay.
func (w *Writer) WriteFrame(flags Flag, payload []byte) error {
	if w.closed {
		return errClosed
	}
	if flags != FlagStay {
		if !flags.HasPayload() {
			return errNoFlags
		}
		if len(payload) > MaxPayload {
			return errTooLarge
		}
	}

	if w.layout.AudioDue(w.frames) {
		if err := w.writeAudio(); err != nil {
			return err
		}
	}

	if flags == FlagStay {
		if err := w.bw.WriteByte(byte(flags)); err != nil {
			return err
		}
	} else {
		var tmp [3]byte
		tmp[0] = byte(flags)
		binary.LittleEndian.PutUint16(tmp[1:], uint16(len(payload)))
		if _, err := w.bw.Write(tmp[:]); err != nil {
			return err
		}
		if _, err := w.bw.Write(payload); err != nil {
			return err
		}
	}

	w.frames++

	return nil
}

// Frames returns the number of frame records written so far
func (w *Writer) Frames() int {
	return w.frames
}

// Close fills in the frame count in the header. It doesn't close the
// underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.bw.Flush(); err != nil {
		return err
	}

	end, err := w.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if _, err := w.w.Seek(w.start, io.SeekStart); err != nil {
		return err
	}

	if err := binary.Write(w.w, binary.LittleEndian, uint32(w.frames)); err != nil {
		return err
	}

	_, err = w.w.Seek(end, io.SeekStart)
	return err
}
