package kpv

import (
	"context"
	"crypto/sha1"
	"fmt"
	"image"
	"io"

	"github.com/bodgit/kpv/container"
	"github.com/bodgit/kpv/lzss"
	"github.com/bodgit/kpv/tile"
)

// Source is one decoded input image
type Source struct {
	Index int
	Name  string
	Image image.Image
}

// Stats describes an encoded frame. It is zero for a STAY frame.
type Stats struct {
	Tiles   int // Unique tiles in the codebook
	Raw     int // Map and codebook bytes before compression
	Payload int
}

// EncodeFrame quantizes m and returns the record to store for it. A frame
// identical to the previous one is a STAY record with no payload.
func (e *Encoder) EncodeFrame(m image.Image) (container.Flag, []byte, Stats, error) {
	f, changed, err := e.quantizer.Next(m)
	if err != nil {
		return 0, nil, Stats{}, err
	}
	if !changed {
		return container.FlagStay, nil, Stats{}, nil
	}

	tm, cb, err := tile.Build(f, e.cfg.Video.TileSize, uint16(e.cfg.Video.TileBase))
	if err != nil {
		return 0, nil, Stats{}, err
	}
	raw := tile.Marshal(tm, cb)

	payload, err := lzss.Compress(raw, e.options...)
	if err != nil {
		return 0, nil, Stats{}, err
	}

	return container.FlagCharacters | container.FlagLZ77, payload, Stats{
		Tiles:   cb.Len(),
		Raw:     len(raw),
		Payload: len(payload),
	}, nil
}

// Encode writes a container to out holding every image received from
// images, in order, with audio interleaved from audio. audio is interleaved
// little-endian 16-bit stereo and may be nil for silence. It returns the
// number of frames written.
func (e *Encoder) Encode(ctx context.Context, images <-chan Source, audio io.Reader, out io.WriteSeeker) (int, error) {
	e.quantizer.Reset()

	if e.db != nil {
		if err := e.db.Reset(); err != nil {
			return 0, err
		}
	}

	w, err := container.NewWriter(out, container.NewStereoSource(audio, e.cfg.Audio.BlockSamples), e.layout())
	if err != nil {
		return 0, err
	}

	var stays int
	var total int64

	for {
		var src Source
		var ok bool
		select {
		case src, ok = <-images:
		case <-ctx.Done():
			return w.Frames(), ctx.Err()
		}
		if !ok {
			break
		}

		flags, payload, stats, err := e.EncodeFrame(src.Image)
		if err != nil {
			return w.Frames(), fmt.Errorf("%s: %w", src.Name, err)
		}

		n := w.Frames()
		if err := w.WriteFrame(flags, payload); err != nil {
			return n, fmt.Errorf("%s: %w", src.Name, err)
		}

		if flags == container.FlagStay {
			stays++
		}
		total += int64(len(payload))

		if e.db != nil {
			fr := FrameRecord{
				Number:  n,
				Source:  src.Name,
				Flags:   flags,
				Tiles:   stats.Tiles,
				Raw:     stats.Raw,
				Payload: stats.Payload,
			}
			if payload != nil {
				fr.SHA1 = fmt.Sprintf("%X", sha1.Sum(payload))
			}
			if err := e.db.AddFrame(fr); err != nil {
				return n, err
			}
		}

		if (n+1)%1000 == 0 {
			e.logger.Printf("Encoded %d frames\n", n+1)
		}
	}

	if err := w.Close(); err != nil {
		return w.Frames(), err
	}

	e.logger.Printf("Encoded %d frames, %d unchanged, %d payload bytes\n", w.Frames(), stays, total)

	return w.Frames(), nil
}
