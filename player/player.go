/*
Package player plays kpv containers in real time.

Two roles share the state: the main loop reads and decodes frame records
into a bounded queue of frame buffers, and a fixed-rate tick, standing in
for the vertical blank interrupt, shows one queued frame per refresh and
advances the audio. The tick never waits on the main loop; when the queue
is empty it keeps showing whatever is on screen.
*/
package player

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/bodgit/kpv/config"
	"github.com/bodgit/kpv/container"
)

// Indicator shows a stream-fatal error to the viewer
type Indicator interface {
	Error(err error)
}

// Player plays one container
type Player struct {
	cfg    *config.Config
	r      *container.Reader
	queue  *Queue
	audio  *AudioRing
	dec    *Decoder
	logger *log.Logger

	indicator Indicator
	tick      chan struct{}

	left, right []byte
	read        int
	preloaded   bool
}

// New reads the container header from r. Frames are drawn to display and
// audio is played into sink, which may be nil.
func New(r io.Reader, cfg *config.Config, display Display, sink Sink, logger *log.Logger) (*Player, error) {
	layout := container.Layout{
		BlockSamples: cfg.Audio.BlockSamples,
		Preload:      cfg.Audio.Preload,
		Interval:     cfg.Audio.Interval,
	}

	cr, err := container.NewReader(r, layout)
	if err != nil {
		return nil, err
	}

	return &Player{
		cfg:    cfg,
		r:      cr,
		queue:  NewQueue(cfg.Player.QueueDepth, cfg.Video.Pixels(), display),
		audio:  NewAudioRing(cfg.Player.AudioBlocks, cfg.Audio.BlockSamples, sink),
		dec:    NewDecoder(cfg.Video),
		logger: logger,
		tick:   make(chan struct{}, 1),
		left:   make([]byte, layout.BlockBytes()),
		right:  make([]byte, layout.BlockBytes()),
	}, nil
}

// SetIndicator sets where stream-fatal errors are shown
func (p *Player) SetIndicator(i Indicator) {
	p.indicator = i
}

// Frames returns the frame count from the container header
func (p *Player) Frames() int {
	return p.r.Frames()
}

// Read returns the number of frame records read and decoded so far. It is
// only safe to call from the goroutine running Run.
func (p *Player) Read() int {
	return p.read
}

// Queue returns the frame queue
func (p *Player) Queue() *Queue {
	return p.queue
}

// Audio returns the audio ring
func (p *Player) Audio() *AudioRing {
	return p.audio
}

func (p *Player) readAudio() {
	if err := p.r.ReadAudio(p.left, p.right); err != nil {
		p.logger.Printf("Audio read failed, playing silence: %v", err)
		p.audio.Silence()
		return
	}
	p.audio.Fill(p.left, p.right)
}

// Preload fills the audio ring ahead of the first frame and starts the tick
// draining the frame queue
func (p *Player) Preload() {
	for i := 0; i < p.cfg.Audio.Preload; i++ {
		p.readAudio()
	}
	p.preloaded = true
	p.queue.Start()
}

// Run is the main loop, calling Preload first if needed. It returns nil
// once every frame has been shown and the audio has played out. A record
// that can't be decoded halts the stream; the frames already queued are
// still shown before Run returns the error.
func (p *Player) Run(ctx context.Context) error {
	if !p.preloaded {
		p.Preload()
	}

	layout := p.r.Layout()

	for p.read < p.r.Frames() {
		due := layout.AudioDue(p.read)
		if due {
			if err := p.waitAudio(ctx); err != nil {
				return err
			}
		}

		slot, err := p.queue.Acquire(ctx)
		if err != nil {
			return err
		}

		if due {
			p.readAudio()
			if p.read == 0 {
				p.audio.Start()
			}
		}

		rec, err := p.r.ReadFrame()
		if err != nil {
			return p.fatal(ctx, err)
		}

		redraw, err := p.dec.Decode(rec, slot.Pix)
		if err != nil {
			return p.fatal(ctx, err)
		}

		p.queue.Commit(redraw)
		p.read++
	}

	p.queue.End()
	p.logger.Printf("End of stream after %d frames", p.read)

	// Silence follows the last block read until that block has played
	end := p.audio.Written() * uint64(p.cfg.Audio.BlockSamples)
	for !p.finished(end) {
		select {
		case <-p.tick:
		case <-ctx.Done():
			return ctx.Err()
		}
		for p.audio.Free() > 0 {
			p.audio.Silence()
		}
	}

	return nil
}

// Waits for a block of the ring to finish playing so the next fill doesn't
// cut it off
func (p *Player) waitAudio(ctx context.Context) error {
	for p.audio.Playing() && p.audio.Free() == 0 {
		select {
		case <-p.tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *Player) finished(end uint64) bool {
	select {
	case <-p.queue.Done():
	default:
		return false
	}
	return !p.audio.Playing() || p.audio.Position() >= end
}

func (p *Player) fatal(ctx context.Context, err error) error {
	p.queue.Halt(err)
	p.logger.Printf("Stream halted at frame %d: %v", p.read, err)

	if p.indicator != nil {
		p.indicator.Error(err)
	}

	if werr := p.wait(ctx); werr != nil {
		return werr
	}

	return err
}

func (p *Player) wait(ctx context.Context) error {
	select {
	case <-p.queue.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick is one display refresh: the next queued frame is shown and the audio
// advances by one refresh worth of samples. It never blocks.
func (p *Player) Tick() {
	p.queue.Tick()
	p.audio.Advance(p.cfg.SamplesPerTick())

	select {
	case p.tick <- struct{}{}:
	default:
	}
}

// Clock calls Tick rate times a second until ctx is cancelled. A rate that
// isn't positive uses the configured refresh rate, and if that isn't either
// nothing ticks. The returned channel is closed once it has stopped.
func (p *Player) Clock(ctx context.Context, rate int) <-chan struct{} {
	if rate <= 0 {
		rate = p.cfg.Player.RefreshRate
	}

	done := make(chan struct{})
	if rate <= 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)

		t := time.NewTicker(time.Second / time.Duration(rate))
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.Tick()
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}
