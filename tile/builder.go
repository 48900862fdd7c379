package tile

import (
	"encoding/binary"

	"github.com/bodgit/kpv/frame"
)

// Build splits f into size by size tiles and deduplicates them, returning
// the map and codebook. base is added to every map entry.
func Build(f *frame.Frame, size int, base uint16) (*Map, *Codebook, error) {
	if size <= 0 || f.Width%size != 0 || f.Height%size != 0 {
		return nil, nil, errWrongFrame
	}

	cols, rows := f.Width/size, f.Height/size
	if int(base)+cols*rows > 0xffff {
		return nil, nil, errTooMany
	}

	m := &Map{
		Cols:    cols,
		Rows:    rows,
		Base:    base,
		Entries: make([]uint16, cols*rows),
	}
	cb := NewCodebook(size)

	t := make(Tile, size*size)
	for ty := 0; ty < rows; ty++ {
		for tx := 0; tx < cols; tx++ {
			for y := 0; y < size; y++ {
				dy := ty*size + y
				copy(t[y*size:(y+1)*size], f.Pix[dy*f.Width+tx*size:])
			}
			m.Entries[ty*cols+tx] = uint16(cb.Add(t)) + base
		}
	}

	return m, cb, nil
}

// Marshal serialises the map followed by the codebook
func Marshal(m *Map, cb *Codebook) []byte {
	b := make([]byte, len(m.Entries)*2, len(m.Entries)*2+cb.Len()*cb.size*cb.size)
	for i, e := range m.Entries {
		binary.LittleEndian.PutUint16(b[i*2:], e)
	}
	for _, t := range cb.tiles {
		b = append(b, t...)
	}
	return b
}

// Unmarshal parses the output of Marshal for a cols by rows map of size by
// size tiles
func Unmarshal(b []byte, cols, rows, size int, base uint16) (*Map, *Codebook, error) {
	mapBytes := cols * rows * 2
	tileBytes := size * size

	if size <= 0 {
		return nil, nil, errWrongFrame
	}
	if len(b) < mapBytes {
		return nil, nil, errNotEnough
	}
	if (len(b)-mapBytes)%tileBytes != 0 {
		return nil, nil, errTooMuch
	}

	m := &Map{
		Cols:    cols,
		Rows:    rows,
		Base:    base,
		Entries: make([]uint16, cols*rows),
	}
	for i := range m.Entries {
		m.Entries[i] = binary.LittleEndian.Uint16(b[i*2:])
	}

	cb := NewCodebook(size)
	for p := b[mapBytes:]; len(p) > 0; p = p[tileBytes:] {
		cb.tiles = append(cb.tiles, Tile(p[:tileBytes]))
	}

	for _, e := range m.Entries {
		if e < base || int(e-base) >= cb.Len() {
			return nil, nil, errBadIndex
		}
	}

	return m, cb, nil
}

// Render draws every tile referenced by m into dst, a row-major pixel buffer
// of cols*size by rows*size
func Render(m *Map, cb *Codebook, dst []uint8) error {
	size := cb.size
	width := m.Cols * size
	if len(dst) < width*m.Rows*size {
		return errNotEnough
	}

	for ty := 0; ty < m.Rows; ty++ {
		for tx := 0; tx < m.Cols; tx++ {
			i := m.At(tx, ty)
			if i < 0 || i >= cb.Len() {
				return errBadIndex
			}
			t := cb.tiles[i]
			for y := 0; y < size; y++ {
				dy := ty*size + y
				copy(dst[dy*width+tx*size:dy*width+(tx+1)*size], t[y*size:(y+1)*size])
			}
		}
	}

	return nil
}
