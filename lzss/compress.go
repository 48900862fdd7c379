package lzss

import "encoding/binary"

// Compress returns src encoded as a single LZSS block. The output for a
// given input and set of options never changes.
func Compress(src []byte, opts ...Option) ([]byte, error) {
	if len(src) > MaxLength {
		return nil, ErrTooLarge
	}

	// Worst case is every token a literal
	dst := make([]byte, 4, 4+len(src)+(len(src)+7)/8)
	binary.LittleEndian.PutUint32(dst, Tag|uint32(len(src))<<8)

	if len(src) == 0 {
		return dst, nil
	}

	t := newTree(opts...)

	// Bytes left in the lookahead
	n := len(src)
	if n > maxMatch {
		n = maxMatch
	}

	// r is the current position, s is where the next input byte goes. The
	// lookahead is loaded at the end of the ring so the first window is
	// all zeroes.
	r, s := window-n, 0
	copy(t.ring[r:], src[:n])
	in := src[n:]

	t.insert(r)

	var (
		mask byte
		flag int
	)

	for n > 0 {
		if mask >>= 1; mask == 0 {
			flag = len(dst)
			dst = append(dst, 0)
			mask = 0x80
		}

		if t.matchLen > n {
			t.matchLen = n
		}

		if t.matchLen > threshold {
			dst[flag] |= mask
			d := ((r - t.matchPos) & (window - 1)) - 1
			dst = append(dst, byte((t.matchLen-threshold-1)<<4|d>>8), byte(d))
		} else {
			t.matchLen = 1
			dst = append(dst, t.ring[r])
		}

		// Slide the window past the bytes just encoded
		advance, i := t.matchLen, 0
		for ; i < advance && len(in) > 0; i++ {
			t.delete(s)
			t.ring[s] = in[0]
			in = in[1:]
			if s < maxMatch-1 {
				t.ring[s+window] = t.ring[s]
			}
			s = (s + 1) & (window - 1)
			r = (r + 1) & (window - 1)
			t.insert(r)
		}

		// Input exhausted, drain the lookahead
		for ; i < advance; i++ {
			t.delete(s)
			s = (s + 1) & (window - 1)
			r = (r + 1) & (window - 1)
			if n--; n > 0 {
				t.insert(r)
			}
		}
	}

	return dst, nil
}
