package lzss

// Decompress expands a block produced by Compress, following the same rules
// as the BIOS routine on the device
func Decompress(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, ErrTruncated
	}
	if src[0] != Tag {
		return nil, ErrBadTag
	}

	n := int(src[1]) | int(src[2])<<8 | int(src[3])<<16
	dst := make([]byte, 0, n)

	p := 4
	for len(dst) < n {
		if p >= len(src) {
			return nil, ErrTruncated
		}
		flags := src[p]
		p++

		for mask := byte(0x80); mask != 0 && len(dst) < n; mask >>= 1 {
			if flags&mask == 0 {
				if p >= len(src) {
					return nil, ErrTruncated
				}
				dst = append(dst, src[p])
				p++
				continue
			}

			if p+1 >= len(src) {
				return nil, ErrTruncated
			}
			length := int(src[p]>>4) + threshold + 1
			distance := (int(src[p]&0x0f)<<8 | int(src[p+1])) + 1
			p += 2

			if distance > len(dst) {
				return nil, ErrBadReference
			}

			// Byte at a time as the source may overlap what's being written
			for i := 0; i < length && len(dst) < n; i++ {
				dst = append(dst, dst[len(dst)-distance])
			}
		}
	}

	return dst, nil
}
