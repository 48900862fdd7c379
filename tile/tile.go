/*
Package tile implements the tile map and codebook that make up a kpv frame.

A frame is split into square tiles in raster order. Identical tiles are
stored once in a codebook, in the order they are first seen, and the map
holds one codebook reference per tile position. Each reference is offset by a
base value so the low indices stay free for characters the player reserves.

The serialised form is the map as little-endian 16-bit entries followed by
the pixels of every codebook tile, one byte per pixel, row by row.
*/
package tile

import (
	"bytes"
	"errors"
)

var (
	errNotEnough  = errors.New("tile: not enough tile data")
	errTooMuch    = errors.New("tile: too much tile data")
	errBadIndex   = errors.New("tile: invalid codebook index")
	errTooMany    = errors.New("tile: too many unique tiles")
	errWrongFrame = errors.New("tile: frame is not a multiple of the tile size")
)

// Tile is the pixels of one tile, row by row
type Tile []uint8

// Equal reports whether both tiles hold identical pixels
func (t Tile) Equal(o Tile) bool {
	return bytes.Equal(t, o)
}

// Codebook is an ordered set of unique tiles
type Codebook struct {
	size  int
	tiles []Tile
}

// NewCodebook returns an empty codebook for size by size tiles
func NewCodebook(size int) *Codebook {
	return &Codebook{size: size}
}

// Len returns the number of tiles in the codebook
func (c *Codebook) Len() int {
	return len(c.tiles)
}

// Tile returns the tile at index i
func (c *Codebook) Tile(i int) Tile {
	return c.tiles[i]
}

// Index returns the position of t in the codebook. The search is linear in
// insertion order which is fine for the few hundred tiles in a frame.
func (c *Codebook) Index(t Tile) (int, bool) {
	for i, e := range c.tiles {
		if e.Equal(t) {
			return i, true
		}
	}
	return 0, false
}

// Add returns the index of t, appending a copy of it if it isn't already
// present
func (c *Codebook) Add(t Tile) int {
	if i, ok := c.Index(t); ok {
		return i
	}
	c.tiles = append(c.tiles, append(Tile(nil), t...))
	return len(c.tiles) - 1
}

// Map is a grid of codebook references, base offset included
type Map struct {
	Cols    int
	Rows    int
	Base    uint16
	Entries []uint16
}

// At returns the codebook index, without the base offset, used at tile
// position (tx, ty)
func (m *Map) At(tx, ty int) int {
	return int(m.Entries[ty*m.Cols+tx]) - int(m.Base)
}
