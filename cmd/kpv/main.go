package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bodgit/kpv"
	"github.com/bodgit/kpv/config"
	"github.com/bodgit/kpv/container"
	"github.com/bodgit/kpv/player"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

const defaultDB = "kpv.db"

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(ioutil.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	if file := c.String("config"); file != "" {
		return config.Load(file)
	}
	cfg := config.Default()
	return cfg, cfg.Validate()
}

func layout(cfg *config.Config) container.Layout {
	return container.Layout{
		BlockSamples: cfg.Audio.BlockSamples,
		Preload:      cfg.Audio.Preload,
		Interval:     cfg.Audio.Interval,
	}
}

type indicator struct{}

func (indicator) Error(err error) {
	var fe *container.FlagError
	if errors.As(err, &fe) {
		red.Fprintf(os.Stderr, "\nCritical Error: Invalid flag byte %#04x at frame %d\n", uint8(fe.Flags), fe.Frame)
		return
	}
	red.Fprintf(os.Stderr, "\nCritical Error: %v\n", err)
}

func encode(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if c.Bool("vram") {
		cfg.Compression.VRAM = true
	}

	e := kpv.New(cfg, newLogger(c))

	if file := c.String("db"); file != "" {
		db, err := kpv.NewFrameDB(file)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer db.Close()
		e.SetIndex(db)
	}

	n, err := e.EncodeDirectory(c.String("images"), c.String("audio"), c.String("output"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	green.Printf("Encoded %d frames to %s\n", n, c.String("output"))

	return nil
}

func snapshot(fb *player.Framebuffer, dir string, n uint64) error {
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%06d.png", n)))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fb.WritePNG(f); err != nil {
		return err
	}

	return f.Close()
}

func play(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	logger := newLogger(c)

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	var sink player.Sink
	var stream *player.StreamSink
	if file := c.String("audio-out"); file != "" {
		af, err := os.Create(file)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		defer af.Close()

		bw := bufio.NewWriter(af)
		defer bw.Flush()

		stream = player.NewStreamSink(bw, 256)
		sink = stream
	}

	dir := c.String("snapshots")
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	fb := player.NewFramebuffer(cfg.Video.Width, cfg.Video.Height, cfg.Video.Levels)

	p, err := player.New(f, cfg, fb, sink, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	p.SetIndicator(indicator{})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	clock := p.Clock(ctx, c.Int("rate"))

	stop := make(chan struct{})
	progress := make(chan struct{})
	go func() {
		defer close(progress)
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				n := p.Queue().Displayed()
				fmt.Printf("\rframe %d of %d", n, p.Frames())
				if dir != "" {
					if err := snapshot(fb, dir, n); err != nil {
						logger.Printf("Snapshot failed: %v", err)
					}
				}
			case <-stop:
				return
			}
		}
	}()

	runErr := p.Run(ctx)

	cancel()
	<-clock
	close(stop)
	<-progress

	q := p.Queue()
	fmt.Printf("\rframe %d of %d\n", q.Displayed(), p.Frames())

	if dir != "" {
		if err := snapshot(fb, dir, q.Displayed()); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	if stream != nil {
		if err := stream.Close(); err != nil {
			return cli.NewExitError(err, 1)
		}
		if dropped := stream.Dropped(); dropped > 0 {
			yellow.Printf("Dropped %d audio samples\n", dropped)
		}
	}

	if runErr != nil {
		return cli.NewExitError(runErr, 1)
	}

	green.Printf("Played %d frames, %d redraws, %d underruns\n", q.Displayed(), q.Draws(), q.Underruns())

	return nil
}

func inspect(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer f.Close()

	l := layout(cfg)
	r, err := container.NewReader(f, l)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	left, right := make([]byte, l.BlockBytes()), make([]byte, l.BlockBytes())
	for i := 0; i < l.Preload; i++ {
		if err := r.ReadAudio(left, right); err != nil {
			return cli.NewExitError(err, 1)
		}
	}

	var stay, changed int
	var payload int64
	var fatal error
	for i := 0; i < r.Frames(); i++ {
		if l.AudioDue(i) {
			if err := r.ReadAudio(left, right); err != nil {
				return cli.NewExitError(err, 1)
			}
		}

		rec, err := r.ReadFrame()
		if err != nil {
			fatal = err
			break
		}

		if rec.Flags == container.FlagStay {
			stay++
		} else {
			changed++
			payload += int64(len(rec.Payload))
		}
	}

	fmt.Printf("Frames:    %d\n", r.Frames())
	fmt.Printf("Changed:   %d\n", changed)
	fmt.Printf("Unchanged: %d\n", stay)
	fmt.Printf("Payload:   %d bytes\n", payload)
	if r.AudioExhausted() {
		yellow.Println("Audio runs out before the last frame")
	}

	if fatal != nil {
		var fe *container.FlagError
		if errors.As(fatal, &fe) {
			red.Printf("Invalid flag byte %#04x at frame %d\n", uint8(fe.Flags), fe.Frame)
		} else {
			red.Printf("Stream ends early: %v\n", fatal)
		}
		return cli.NewExitError(fatal, 1)
	}

	return nil
}

func stats(c *cli.Context) error {
	db, err := kpv.NewFrameDB(c.String("db"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer db.Close()

	s, err := db.Summary()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	fmt.Printf("Frames:     %d\n", s.Frames)
	fmt.Printf("Unchanged:  %d\n", s.Stay)
	fmt.Printf("Payload:    %d bytes\n", s.Payload)
	fmt.Printf("Mean tiles: %.1f\n", s.MeanTiles)
	fmt.Printf("Duplicates: %d\n", s.Duplicates)

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "kpv"
	app.Usage = "Nintendo DS video encoder and player"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"KPV_CONFIG"},
			Usage:   "path to YAML configuration",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "encode",
			Usage:       "Encode a directory of images and raw audio",
			Description: "Images are taken in file name order. Audio is raw signed 16-bit little-endian stereo.",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "images",
					Usage:    "directory of images",
					Required: true,
				},
				&cli.StringFlag{
					Name:  "audio",
					Usage: "raw PCM audio file",
				},
				&cli.StringFlag{
					Name:     "output",
					Aliases:  []string{"o"},
					Usage:    "container to write",
					Required: true,
				},
				&cli.BoolFlag{
					Name:  "vram",
					Usage: "avoid matches a VRAM decompressor can't copy",
				},
				&cli.StringFlag{
					Name:    "db",
					EnvVars: []string{"KPV_DB"},
					Usage:   "record every frame in an index database",
				},
			},
			Action: encode,
		},
		{
			Name:      "play",
			Usage:     "Play a container in real time",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "snapshots",
					Usage: "write the display as PNG to this directory every second",
				},
				&cli.StringFlag{
					Name:  "audio-out",
					Usage: "write the played audio as raw PCM",
				},
				&cli.IntFlag{
					Name:  "rate",
					Usage: "ticks per second, defaults to the refresh rate",
				},
			},
			Action: play,
		},
		{
			Name:      "inspect",
			Usage:     "Check the structure of a container",
			ArgsUsage: "FILE",
			Action:    inspect,
		},
		{
			Name:  "stats",
			Usage: "Summarise an index database",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "db",
					EnvVars: []string{"KPV_DB"},
					Value:   filepath.Join(cwd, defaultDB),
					Usage:   "path to database",
				},
			},
			Action: stats,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
