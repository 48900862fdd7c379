package player

import (
	"encoding/binary"
	"sync/atomic"
)

// Sink receives audio as it is played. Play is called from the tick and the
// slices are only valid until it returns.
type Sink interface {
	Play(left, right []int16)
}

// AudioRing is the stereo ring buffer the audio hardware plays from. The
// main loop fills whole blocks in order; Advance plays samples at the fixed
// rate, wrapping around the ring.
type AudioRing struct {
	blocks  int
	samples int
	left    []int16
	right   []int16
	sink    Sink

	next      int // Block the next Fill writes
	written   atomic.Uint64
	pos       atomic.Uint64
	playing   atomic.Bool
	underruns atomic.Uint64
}

// NewAudioRing returns a ring of blocks blocks of samples samples per
// channel. sink may be nil.
func NewAudioRing(blocks, samples int, sink Sink) *AudioRing {
	return &AudioRing{
		blocks:  blocks,
		samples: samples,
		left:    make([]int16, blocks*samples),
		right:   make([]int16, blocks*samples),
		sink:    sink,
	}
}

// Fill decodes one little-endian block per channel into the next block of
// the ring
func (a *AudioRing) Fill(left, right []byte) {
	off := a.next * a.samples
	for i := 0; i < a.samples; i++ {
		a.left[off+i] = int16(binary.LittleEndian.Uint16(left[i*2:]))
		a.right[off+i] = int16(binary.LittleEndian.Uint16(right[i*2:]))
	}
	a.advanceWrite()
}

// Silence fills the next block of the ring with silence
func (a *AudioRing) Silence() {
	off := a.next * a.samples
	for i := 0; i < a.samples; i++ {
		a.left[off+i] = 0
		a.right[off+i] = 0
	}
	a.advanceWrite()
}

func (a *AudioRing) advanceWrite() {
	a.next = (a.next + 1) % a.blocks
	a.written.Add(1)
}

// Start begins playback from the start of the ring
func (a *AudioRing) Start() {
	a.playing.Store(true)
}

// Playing reports whether Start has been called
func (a *AudioRing) Playing() bool {
	return a.playing.Load()
}

// Written returns the number of blocks filled
func (a *AudioRing) Written() uint64 {
	return a.written.Load()
}

// Position returns the number of samples played per channel
func (a *AudioRing) Position() uint64 {
	return a.pos.Load()
}

// Free returns the number of blocks that have been played through and can be
// filled again without cutting off anything still to be played
func (a *AudioRing) Free() int {
	end, pos := a.written.Load()*uint64(a.samples), a.pos.Load()
	if pos >= end {
		return a.blocks
	}
	pending := int((end - pos + uint64(a.samples) - 1) / uint64(a.samples))
	if pending > a.blocks {
		return 0
	}
	return a.blocks - pending
}

// Underruns returns the number of times Advance has played past the last
// block filled
func (a *AudioRing) Underruns() uint64 {
	return a.underruns.Load()
}

// Advance plays n samples per channel
func (a *AudioRing) Advance(n int) {
	if !a.playing.Load() {
		return
	}

	size := uint64(len(a.left))
	pos := a.pos.Load()
	if pos+uint64(n) > a.written.Load()*uint64(a.samples) {
		a.underruns.Add(1)
	}
	for n > 0 {
		off := int(pos % size)
		chunk := len(a.left) - off
		if chunk > n {
			chunk = n
		}
		if a.sink != nil {
			a.sink.Play(a.left[off:off+chunk], a.right[off:off+chunk])
		}
		pos += uint64(chunk)
		n -= chunk
	}
	a.pos.Store(pos)
}
