package kpv

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/kpv/config"
	"github.com/bodgit/kpv/container"
	"github.com/bodgit/kpv/lzss"
	"github.com/bodgit/kpv/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Video = config.VideoConfig{Width: 16, Height: 16, TileSize: 8, Levels: 32, TileBase: 0x18}
	cfg.Audio = config.AudioConfig{BlockSamples: 8, Preload: 2, Interval: 4}
	cfg.Player = config.PlayerConfig{QueueDepth: 4, AudioBlocks: 4, RefreshRate: 60}
	return cfg
}

func testEncoder(cfg *config.Config) *Encoder {
	return New(cfg, log.New(ioutil.Discard, "", 0))
}

func gray(v uint8) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

func writePNG(t *testing.T, file string, m image.Image) {
	t.Helper()
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, m))
}

func sources(images ...image.Image) <-chan Source {
	c := make(chan Source, len(images))
	for i, m := range images {
		c <- Source{Index: i, Name: "test", Image: m}
	}
	close(c)
	return c
}

func readRecords(t *testing.T, cfg *config.Config, b []byte) []container.Record {
	t.Helper()

	layout := container.Layout{
		BlockSamples: cfg.Audio.BlockSamples,
		Preload:      cfg.Audio.Preload,
		Interval:     cfg.Audio.Interval,
	}
	r, err := container.NewReader(bytes.NewReader(b), layout)
	require.NoError(t, err)

	l, rr := make([]byte, layout.BlockBytes()), make([]byte, layout.BlockBytes())
	for i := 0; i < layout.Preload; i++ {
		require.NoError(t, r.ReadAudio(l, rr))
	}

	var records []container.Record
	for i := 0; i < r.Frames(); i++ {
		if layout.AudioDue(i) {
			require.NoError(t, r.ReadAudio(l, rr))
		}
		rec, err := r.ReadFrame()
		require.NoError(t, err)
		records = append(records, rec)
	}
	return records
}

func TestEncodeFrame(t *testing.T) {
	cfg := testConfig()
	e := testEncoder(cfg)

	flags, payload, stats, err := e.EncodeFrame(gray(0x80))
	require.NoError(t, err)
	assert.Equal(t, container.FlagCharacters|container.FlagLZ77, flags)
	assert.Equal(t, 1, stats.Tiles)
	assert.Equal(t, 4*2+64, stats.Raw)
	assert.Equal(t, len(payload), stats.Payload)

	raw, err := lzss.Decompress(payload)
	require.NoError(t, err)
	m, cb, err := tile.Unmarshal(raw, 2, 2, 8, 0x18)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x18, 0x18, 0x18, 0x18}, m.Entries)
	assert.Equal(t, 1, cb.Len())

	flags, payload, stats, err = e.EncodeFrame(gray(0x80))
	require.NoError(t, err)
	assert.Equal(t, container.FlagStay, flags)
	assert.Nil(t, payload)
	assert.Equal(t, Stats{}, stats)

	_, _, _, err = e.EncodeFrame(image.NewGray(image.Rect(0, 0, 8, 8)))
	assert.Error(t, err)
}

func TestEncodeFrame_BlackStart(t *testing.T) {
	cfg := testConfig()
	e := testEncoder(cfg)

	flags, payload, _, err := e.EncodeFrame(gray(0))
	require.NoError(t, err)
	assert.Equal(t, container.FlagStay, flags)
	assert.Nil(t, payload)

	flags, _, _, err = e.EncodeFrame(gray(0x80))
	require.NoError(t, err)
	assert.Equal(t, container.FlagCharacters|container.FlagLZ77, flags)
}

func TestEncode(t *testing.T) {
	cfg := testConfig()
	e := testEncoder(cfg)

	f, err := os.Create(filepath.Join(t.TempDir(), "out.kpv"))
	require.NoError(t, err)
	defer f.Close()

	n, err := e.Encode(context.Background(), sources(gray(0x80), gray(0x80)), nil, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := ioutil.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(b))

	records := readRecords(t, cfg, b)
	require.Len(t, records, 2)
	assert.Equal(t, container.FlagCharacters|container.FlagLZ77, records[0].Flags)
	assert.Equal(t, container.FlagStay, records[1].Flags)
	assert.Nil(t, records[1].Payload)
}

func TestEncode_Cancelled(t *testing.T) {
	e := testEncoder(testConfig())

	f, err := os.Create(filepath.Join(t.TempDir(), "out.kpv"))
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Encode(ctx, make(chan Source), nil, f)
	assert.Equal(t, context.Canceled, err)
}

func TestEncodeDirectory(t *testing.T) {
	cfg := testConfig()
	dir := t.TempDir()

	writePNG(t, filepath.Join(dir, "0001.png"), gray(0x40))
	writePNG(t, filepath.Join(dir, "0002.png"), gray(0x40))

	checker := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if (x/8+y/8)%2 == 0 {
				checker.Set(x, y, color.White)
			} else {
				checker.Set(x, y, color.Black)
			}
		}
	}
	writePNG(t, filepath.Join(dir, "0003.png"), checker)

	// None of these are frames
	writePNG(t, filepath.Join(dir, ".0000.png"), gray(0xff))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "extra"), 0755))
	writePNG(t, filepath.Join(dir, "extra", "0000.png"), gray(0xff))

	audio := filepath.Join(t.TempDir(), "audio.raw")
	require.NoError(t, ioutil.WriteFile(audio, bytes.Repeat([]byte{1, 0, 2, 0}, 64), 0644))

	db, err := NewFrameDB(filepath.Join(t.TempDir(), "frames.db"))
	require.NoError(t, err)
	defer db.Close()

	e := testEncoder(cfg)
	e.SetIndex(db)

	out := filepath.Join(t.TempDir(), "out.kpv")
	n, err := e.EncodeDirectory(dir, audio, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	b, err := ioutil.ReadFile(out)
	require.NoError(t, err)

	records := readRecords(t, cfg, b)
	require.Len(t, records, 3)
	assert.Equal(t, container.FlagCharacters|container.FlagLZ77, records[0].Flags)
	assert.Equal(t, container.FlagStay, records[1].Flags)
	assert.Equal(t, container.FlagCharacters|container.FlagLZ77, records[2].Flags)

	// First preload block is the left channel
	assert.Equal(t, []byte{1, 0, 1, 0}, b[4:8])

	s, err := db.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, 1, s.Stay)
	assert.Equal(t, 0, s.Duplicates)
	assert.Equal(t, 1.5, s.MeanTiles)
	assert.Equal(t, int64(len(records[0].Payload)+len(records[2].Payload)), s.Payload)

	fr, err := db.Frame(0)
	require.NoError(t, err)
	require.NotNil(t, fr)
	assert.Equal(t, "0001.png", fr.Source)
	assert.Len(t, fr.SHA1, 40)

	fr, err = db.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, container.FlagStay, fr.Flags)
	assert.Empty(t, fr.SHA1)

	fr, err = db.Frame(3)
	require.NoError(t, err)
	assert.Nil(t, fr)
}

func TestEncodeDirectory_BadImage(t *testing.T) {
	dir := t.TempDir()

	writePNG(t, filepath.Join(dir, "0001.png"), gray(0x40))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "0002.png"), []byte("not a png"), 0644))
	writePNG(t, filepath.Join(dir, "0003.png"), gray(0x40))

	e := testEncoder(testConfig())
	_, err := e.EncodeDirectory(dir, "", filepath.Join(t.TempDir(), "out.kpv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0002.png")
}

func TestReorder(t *testing.T) {
	in := make(chan Source, 3)
	for _, i := range []int{2, 0, 1} {
		in <- Source{Index: i}
	}
	close(in)

	var got []int
	for s := range reorder(context.Background(), in) {
		got = append(got, s.Index)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestReorder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan Source)
	out := reorder(ctx, in)

	// Frame 0 never arrives, the later frame must not be held onto
	in <- Source{Index: 1}
	cancel()

	_, ok := <-out
	assert.False(t, ok)

	// Anything still coming from the workers is discarded
	in <- Source{Index: 2}
	close(in)
}

func TestEncodeDirectory_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, ioutil.WriteFile(file, nil, 0644))

	e := testEncoder(testConfig())
	_, err := e.EncodeDirectory(file, "", filepath.Join(t.TempDir(), "out.kpv"))
	assert.Error(t, err)
}

func TestFrameDB_Reset(t *testing.T) {
	db, err := NewFrameDB(filepath.Join(t.TempDir(), "frames.db"))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.AddFrame(FrameRecord{Number: i, Source: "x", Flags: container.FlagCharacters | container.FlagLZ77, Tiles: 2, SHA1: "AB"}))
	}

	s, err := db.Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, 2, s.Duplicates)
	assert.Equal(t, 2.0, s.MeanTiles)

	require.NoError(t, db.Reset())
	s, err = db.Summary()
	require.NoError(t, err)
	assert.Equal(t, &Summary{}, s)
}
