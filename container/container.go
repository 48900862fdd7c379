/*
Package container implements the kpv video container.

All integers are little-endian. The file starts with the number of frames as
a 32-bit value followed by a preload of audio block pairs. Each frame record
is preceded by one more block pair whenever its index is a multiple of the
audio interval:

	uint32 frames
	preload × (left block, right block)
	for each frame i:
		if i % interval == 0: (left block, right block)
		uint8 flags
		if flags != STAY:
			uint16 length
			[length]byte payload

A block holds the samples of one channel as signed 16-bit values. The payload
of a changed frame is a tile map and codebook when CHARACTERS is set, raw
pixels otherwise, and is LZSS compressed when LZ77 is set. The encoder always
writes both.
*/
package container

import (
	"fmt"
	"strings"
)

// Flag describes how a frame record is stored
type Flag uint8

// Frame record flags
const (
	FlagStay       Flag = 1 << iota // Frame is identical to the previous one
	FlagCharacters                  // Payload is a tile map and codebook
	FlagLZ77                        // Payload is LZSS compressed
)

// MaxPayload is the largest payload a frame record can hold
const MaxPayload = 0xffff

// HasPayload reports whether a record with these flags carries a payload.
// Either of the payload bits is enough, as it is on the device.
func (f Flag) HasPayload() bool {
	return f&(FlagCharacters|FlagLZ77) != 0
}

// Valid reports whether the player knows what to do with the flags; zero or
// any combination without STAY alone or a payload bit is invalid
func (f Flag) Valid() bool {
	return f == FlagStay || f.HasPayload()
}

func (f Flag) String() string {
	if f == 0 {
		return "0"
	}
	var s []string
	for _, n := range []struct {
		flag Flag
		name string
	}{
		{FlagStay, "STAY"},
		{FlagCharacters, "CHARACTERS"},
		{FlagLZ77, "LZ77"},
	} {
		if f&n.flag != 0 {
			s = append(s, n.name)
			f &^= n.flag
		}
	}
	if f != 0 {
		s = append(s, fmt.Sprintf("%#04x", uint8(f)))
	}
	return strings.Join(s, "|")
}

// FlagError is returned when a frame record has flags the player can't act on
type FlagError struct {
	Frame int
	Flags Flag
}

func (e *FlagError) Error() string {
	return fmt.Sprintf("container: invalid flag byte %#04x at frame %d", uint8(e.Flags), e.Frame)
}

// Layout describes the audio interleaving
type Layout struct {
	BlockSamples int // Samples per channel in one block
	Preload      int // Block pairs before the first frame
	Interval     int // Frames per block pair
}

// BlockBytes returns the size in bytes of one channel's block
func (l Layout) BlockBytes() int {
	return l.BlockSamples * 2
}

// AudioDue reports whether a block pair precedes frame i
func (l Layout) AudioDue(i int) bool {
	return i%l.Interval == 0
}

// Record is one frame record
type Record struct {
	Flags   Flag
	Payload []byte
}
