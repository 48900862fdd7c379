package player

import (
	"encoding/binary"
	"io"
	"sync/atomic"
)

// StreamSink writes played audio to an io.Writer as interleaved
// little-endian stereo. The tick hands samples to a writer goroutine over a
// bounded backlog; when the backlog is full the samples are dropped rather
// than holding up the tick.
type StreamSink struct {
	w       io.Writer
	ch      chan []byte
	done    chan struct{}
	dropped atomic.Uint64
	err     error
}

// NewStreamSink starts writing to w with room for backlog pending chunks
func NewStreamSink(w io.Writer, backlog int) *StreamSink {
	s := &StreamSink{
		w:    w,
		ch:   make(chan []byte, backlog),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *StreamSink) run() {
	defer close(s.done)
	for b := range s.ch {
		if s.err != nil {
			continue
		}
		_, s.err = s.w.Write(b)
	}
}

// Play queues the samples for writing
func (s *StreamSink) Play(left, right []int16) {
	b := make([]byte, len(left)*4)
	for i := range left {
		binary.LittleEndian.PutUint16(b[i*4:], uint16(left[i]))
		binary.LittleEndian.PutUint16(b[i*4+2:], uint16(right[i]))
	}

	select {
	case s.ch <- b:
	default:
		s.dropped.Add(uint64(len(left)))
	}
}

// Dropped returns the number of samples per channel that didn't fit in the
// backlog
func (s *StreamSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close waits for the backlog to be written and returns the first write
// error. Play must not be called after Close.
func (s *StreamSink) Close() error {
	close(s.ch)
	<-s.done
	return s.err
}
