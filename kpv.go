/*
Package kpv is a library for encoding a sequence of still images and a raw
PCM audio stream into a kpv video container for playback on the Nintendo DS.
*/
package kpv

import (
	"log"

	"github.com/bodgit/kpv/config"
	"github.com/bodgit/kpv/container"
	"github.com/bodgit/kpv/frame"
	"github.com/bodgit/kpv/lzss"
)

type Encoder struct {
	cfg    *config.Config
	db     *FrameDB
	logger *log.Logger

	quantizer *frame.Quantizer
	options   []lzss.Option
}

func New(cfg *config.Config, logger *log.Logger) *Encoder {
	e := &Encoder{
		cfg:       cfg,
		logger:    logger,
		quantizer: frame.NewQuantizer(cfg.Video.Width, cfg.Video.Height, cfg.Video.Levels),
	}
	if cfg.Compression.VRAM {
		e.options = append(e.options, lzss.VRAM())
	}
	return e
}

// SetIndex records every encoded frame in db
func (e *Encoder) SetIndex(db *FrameDB) {
	e.db = db
}

func (e *Encoder) layout() container.Layout {
	return container.Layout{
		BlockSamples: e.cfg.Audio.BlockSamples,
		Preload:      e.cfg.Audio.Preload,
		Interval:     e.cfg.Audio.Interval,
	}
}
