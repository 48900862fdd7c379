package player

import (
	"errors"
	"fmt"

	"github.com/bodgit/kpv/config"
	"github.com/bodgit/kpv/container"
	"github.com/bodgit/kpv/lzss"
	"github.com/bodgit/kpv/tile"
)

var errRawSize = errors.New("player: raw frame is wrong size")

// Decoder turns frame records into pixels
type Decoder struct {
	cols, rows int
	size       int
	base       uint16
	pixels     int
}

// NewDecoder returns a Decoder for frames of the given geometry
func NewDecoder(v config.VideoConfig) *Decoder {
	return &Decoder{
		cols:   v.TilesX(),
		rows:   v.TilesY(),
		size:   v.TileSize,
		base:   uint16(v.TileBase),
		pixels: v.Pixels(),
	}
}

// Decode renders rec into dst and reports whether the display needs
// redrawing. A STAY record leaves dst alone.
//
// With LZ77 set the payload is decompressed first. With CHARACTERS set it is
// then a tile map and codebook, otherwise it is the frame's pixels as is.
func (d *Decoder) Decode(rec container.Record, dst []byte) (bool, error) {
	if rec.Flags == container.FlagStay {
		return false, nil
	}
	if !rec.Flags.Valid() {
		return false, &container.FlagError{Flags: rec.Flags}
	}

	b := rec.Payload
	if rec.Flags&container.FlagLZ77 != 0 {
		var err error
		if b, err = lzss.Decompress(b); err != nil {
			return false, err
		}
	}

	if rec.Flags&container.FlagCharacters == 0 {
		if len(b) != d.pixels || len(dst) < d.pixels {
			return false, errRawSize
		}
		copy(dst, b)
		return true, nil
	}

	m, cb, err := tile.Unmarshal(b, d.cols, d.rows, d.size, d.base)
	if err != nil {
		return false, err
	}
	if err := tile.Render(m, cb, dst); err != nil {
		return false, fmt.Errorf("player: %w", err)
	}

	return true, nil
}
