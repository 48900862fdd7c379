/*
Package config holds the dimensions shared by the kpv encoder and player.

Every size that both sides of the container must agree on lives here as a
named value; the defaults describe a 256 by 192 screen drawn with 8 by 8
tiles in 32 shades of grey, with 48kHz stereo audio interleaved every four
frames.
*/
package config

import (
	"errors"
	"fmt"
	"math/bits"
	"os"

	"gopkg.in/yaml.v3"
)

// VideoConfig describes the frame geometry
type VideoConfig struct {
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	TileSize int `yaml:"tile_size"`
	Levels   int `yaml:"levels"`    // Brightness levels in the palette, power of two
	TileBase int `yaml:"tile_base"` // Offset added to every codebook index in the map
}

// AudioConfig describes the audio blocks stored in the container
type AudioConfig struct {
	BlockSamples int `yaml:"block_samples"` // Samples per channel in one block
	Preload      int `yaml:"preload"`       // Block pairs written before the first frame
	Interval     int `yaml:"interval"`      // Frames per interleaved block pair
}

// PlayerConfig describes the playback buffers
type PlayerConfig struct {
	QueueDepth  int `yaml:"queue_depth"`
	AudioBlocks int `yaml:"audio_blocks"`
	RefreshRate int `yaml:"refresh_rate"`
}

// CompressionConfig tunes the LZ encoder
type CompressionConfig struct {
	VRAM bool `yaml:"vram"`
}

// Config is the top-level kpv configuration
type Config struct {
	Video       VideoConfig       `yaml:"video"`
	Audio       AudioConfig       `yaml:"audio"`
	Player      PlayerConfig      `yaml:"player"`
	Compression CompressionConfig `yaml:"compression"`
}

// Default returns the configuration matching the Nintendo DS target
func Default() *Config {
	return &Config{
		Video: VideoConfig{
			Width:    256,
			Height:   192,
			TileSize: 8,
			Levels:   32,
			TileBase: 0x18,
		},
		Audio: AudioConfig{
			BlockSamples: 3200,
			Preload:      12,
			Interval:     4,
		},
		Player: PlayerConfig{
			QueueDepth:  8,
			AudioBlocks: 15,
			RefreshRate: 60,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result
func Load(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks the values are usable and consistent with each other
func (c *Config) Validate() error {
	v := c.Video
	switch {
	case v.TileSize <= 0:
		return errors.New("config: tile_size must be positive")
	case v.Width <= 0 || v.Height <= 0:
		return errors.New("config: width and height must be positive")
	case v.Width%v.TileSize != 0 || v.Height%v.TileSize != 0:
		return fmt.Errorf("config: %dx%d is not a multiple of the %d pixel tile", v.Width, v.Height, v.TileSize)
	case v.Levels < 2 || v.Levels > 256 || bits.OnesCount(uint(v.Levels)) != 1:
		return fmt.Errorf("config: levels must be a power of two between 2 and 256, not %d", v.Levels)
	case v.TileBase < 0 || v.TileBase+v.TilesX()*v.TilesY() > 0xffff:
		return fmt.Errorf("config: tile_base %#x leaves no room for %d tiles", v.TileBase, v.TilesX()*v.TilesY())
	}

	a := c.Audio
	switch {
	case a.BlockSamples <= 0:
		return errors.New("config: block_samples must be positive")
	case a.Preload < 0:
		return errors.New("config: preload cannot be negative")
	case a.Interval <= 0:
		return errors.New("config: interval must be positive")
	}

	p := c.Player
	switch {
	case p.QueueDepth < 2:
		return errors.New("config: queue_depth must be at least 2")
	case p.AudioBlocks <= a.Preload:
		return fmt.Errorf("config: audio_blocks (%d) must exceed preload (%d)", p.AudioBlocks, a.Preload)
	case p.RefreshRate <= 0:
		return errors.New("config: refresh_rate must be positive")
	case a.BlockSamples%a.Interval != 0:
		return errors.New("config: block_samples must divide evenly by interval")
	}

	// The main loop can get queue_depth-2 frames ahead of the display, reading
	// a block pair every interval frames on top of the preload and the block
	// currently playing
	if need := a.Preload + 1 + (p.QueueDepth-2+a.Interval-1)/a.Interval; p.AudioBlocks < need {
		return fmt.Errorf("config: audio_blocks (%d) is too small for preload %d and queue_depth %d, need %d", p.AudioBlocks, a.Preload, p.QueueDepth, need)
	}

	return nil
}

// TilesX returns the number of tile columns
func (v VideoConfig) TilesX() int {
	return v.Width / v.TileSize
}

// TilesY returns the number of tile rows
func (v VideoConfig) TilesY() int {
	return v.Height / v.TileSize
}

// Pixels returns the number of pixels in a frame
func (v VideoConfig) Pixels() int {
	return v.Width * v.Height
}

// BlockBytes returns the size of one channel's audio block in bytes
func (a AudioConfig) BlockBytes() int {
	return a.BlockSamples * 2
}

// SampleRate returns the playback rate implied by the block cadence
func (c *Config) SampleRate() int {
	return c.Audio.BlockSamples * c.Player.RefreshRate / c.Audio.Interval
}

// SamplesPerTick returns how many samples the audio hardware consumes per
// display refresh
func (c *Config) SamplesPerTick() int {
	return c.Audio.BlockSamples / c.Audio.Interval
}
