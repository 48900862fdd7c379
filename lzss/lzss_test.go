package lzss

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token struct {
	literal  bool
	value    byte
	length   int
	distance int
}

// Walks a compressed block without expanding it
func parseTokens(t *testing.T, b []byte) []token {
	t.Helper()

	require.GreaterOrEqual(t, len(b), 4)
	n := int(b[1]) | int(b[2])<<8 | int(b[3])<<16

	var (
		tokens []token
		out    int
	)
	for p := 4; out < n; {
		flags := b[p]
		p++
		for mask := byte(0x80); mask != 0 && out < n; mask >>= 1 {
			if flags&mask == 0 {
				tokens = append(tokens, token{literal: true, value: b[p]})
				p++
				out++
				continue
			}
			tk := token{
				length:   int(b[p]>>4) + 3,
				distance: (int(b[p]&0x0f)<<8 | int(b[p+1])) + 1,
			}
			tokens = append(tokens, tk)
			p += 2
			out += tk.length
		}
	}
	return tokens
}

func testInputs() map[string][]byte {
	rng := rand.New(rand.NewSource(1))

	random := make([]byte, 10000)
	rng.Read(random)

	lowEntropy := make([]byte, 20000)
	for i := range lowEntropy {
		lowEntropy[i] = byte(rng.Intn(4))
	}

	ramp := make([]byte, 9000)
	for i := range ramp {
		ramp[i] = byte(i)
	}

	return map[string][]byte{
		"empty":       {},
		"one":         {0x42},
		"two":         {0x42, 0x42},
		"three":       {0x42, 0x42, 0x42},
		"17":          bytes.Repeat([]byte{7}, 17),
		"18":          bytes.Repeat([]byte{7}, 18),
		"19":          bytes.Repeat([]byte{7}, 19),
		"window":      bytes.Repeat([]byte("abcdefg"), window/7+1)[:window],
		"window+1":    bytes.Repeat([]byte("abcdefg"), window/7+1)[:window+1],
		"random":      random,
		"low entropy": lowEntropy,
		"ramp":        ramp,
		"zeros":       make([]byte, 3*window+5),
		"text":        []byte("the quick brown fox jumps over the lazy dog; the quick brown fox jumps over the lazy dog"),
	}
}

func TestRoundTrip(t *testing.T) {
	for name, in := range testInputs() {
		for _, vram := range []bool{false, true} {
			var opts []Option
			label := name
			if vram {
				opts = append(opts, VRAM())
				label += " vram"
			}

			t.Run(label, func(t *testing.T) {
				c, err := Compress(in, opts...)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(c), 4+len(in)+(len(in)+7)/8)

				d, err := Decompress(c)
				require.NoError(t, err)
				assert.Equal(t, len(in), len(d))
				assert.True(t, bytes.Equal(in, d))
			})
		}
	}
}

func TestCompress_Header(t *testing.T) {
	c, err := Compress(make([]byte, 0x012345))
	require.NoError(t, err)
	assert.Equal(t, []byte{Tag, 0x45, 0x23, 0x01}, c[:4])

	c, err = Compress(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{Tag, 0x00, 0x00, 0x00}, c)
}

func TestCompress_Deterministic(t *testing.T) {
	in := testInputs()["low entropy"]

	a, err := Compress(in)
	require.NoError(t, err)
	b, err := Compress(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompress_Repeated(t *testing.T) {
	c, err := Compress(bytes.Repeat([]byte{'A'}, 64))
	require.NoError(t, err)

	// One literal then references one byte back at the longest length
	assert.Equal(t, []byte{Tag, 64, 0, 0, 0x78, 'A', 0xf0, 0x00, 0xf0, 0x00, 0xf0, 0x00}, c[:12])

	tokens := parseTokens(t, c)
	require.Len(t, tokens, 5)
	assert.Equal(t, token{literal: true, value: 'A'}, tokens[0])
	for _, tk := range tokens[1:4] {
		assert.Equal(t, token{length: maxMatch, distance: 1}, tk)
	}
	assert.Equal(t, 9, tokens[4].length)
	assert.Len(t, c, 14)
}

func TestCompress_VRAM(t *testing.T) {
	for name, in := range testInputs() {
		t.Run(name, func(t *testing.T) {
			c, err := Compress(in, VRAM())
			require.NoError(t, err)

			for _, tk := range parseTokens(t, c) {
				if !tk.literal {
					assert.Greater(t, tk.distance, 1)
				}
			}
		})
	}
}

func TestCompress_PrefersNearest(t *testing.T) {
	// A full length run seen twice replaces the older copy in the tree so
	// the final copy refers to the nearer one
	run := []byte("abcdefghijklmnopqr")
	in := append(append(append(append(append([]byte{}, run...), 'X'), run...), 'Y'), run...)

	c, err := Compress(in)
	require.NoError(t, err)

	tokens := parseTokens(t, c)
	last := tokens[len(tokens)-1]
	assert.False(t, last.literal)
	assert.Equal(t, maxMatch, last.length)
	assert.Equal(t, len(run)+1, last.distance)
}

func TestCompress_TooLarge(t *testing.T) {
	_, err := Compress(make([]byte, MaxLength+1))
	assert.Equal(t, ErrTooLarge, err)
}

func TestDecompress_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"short header", []byte{Tag, 1}, ErrTruncated},
		{"bad tag", []byte{0x11, 1, 0, 0, 0, 'a'}, ErrBadTag},
		{"missing flags", []byte{Tag, 1, 0, 0}, ErrTruncated},
		{"missing literal", []byte{Tag, 2, 0, 0, 0x00, 'a'}, ErrTruncated},
		{"missing reference byte", []byte{Tag, 4, 0, 0, 0x40, 'a', 0x00}, ErrTruncated},
		{"reference before start", []byte{Tag, 4, 0, 0, 0x40, 'a', 0x00, 0x01}, ErrBadReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompress(tt.in)
			assert.Equal(t, tt.want, err)
		})
	}
}

func TestDecompress_Overlap(t *testing.T) {
	// Literal 'a', then copy 17 bytes from one back
	d, err := Decompress([]byte{Tag, 18, 0, 0, 0x40, 'a', 0xe0, 0x00})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{'a'}, 18), d)
}

func BenchmarkCompress(b *testing.B) {
	in := testInputs()["low entropy"]
	b.SetBytes(int64(len(in)))
	for i := 0; i < b.N; i++ {
		if _, err := Compress(in); err != nil {
			b.Fatal(err)
		}
	}
}
