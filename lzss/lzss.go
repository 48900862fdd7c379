/*
Package lzss implements the LZSS variant understood by the Nintendo GBA and DS
BIOS decompression routines.

A compressed block starts with a 4 byte header; the tag byte 0x10 followed by
the uncompressed length as a 24-bit little-endian value. The rest is a
sequence of groups, each a flag byte followed by up to eight tokens. Flag bits
are consumed from the most significant end; a clear bit is a single literal
byte, a set bit is a two byte back-reference:

	byte 0: (length-3)<<4 | (distance-1)>>8
	byte 1: (distance-1) & 0xff

Distances reach back at most 4096 bytes and a reference copies between 3 and
18 bytes.
*/
package lzss

import "errors"

// Tag is the first byte of every compressed block
const Tag = 0x10

// MaxLength is the largest input the 24-bit header can describe
const MaxLength = 1<<24 - 1

const (
	threshold = 2      // Longest match still cheaper to store as literals
	window    = 0x1000 // Sliding window, 12-bit distance
	maxMatch  = 0x12   // 4-bit length plus threshold plus one
	nilNode   = window // Out of range node index
)

var (
	// ErrTooLarge is returned when the input doesn't fit the header
	ErrTooLarge = errors.New("lzss: input too large")
	// ErrBadTag is returned when a block doesn't start with Tag
	ErrBadTag = errors.New("lzss: invalid tag")
	// ErrTruncated is returned when a block ends before its stated length
	ErrTruncated = errors.New("lzss: truncated input")
	// ErrBadReference is returned for a back-reference before the start of
	// the output
	ErrBadReference = errors.New("lzss: reference out of range")
)

// Option configures the compressor
type Option func(*tree)

// VRAM makes the match finder reject a match against the immediately
// preceding position. The device can only write VRAM 16 bits at a time so a
// distance of one reads a byte that hasn't been stored yet.
func VRAM() Option {
	return func(t *tree) {
		t.vram = true
	}
}
