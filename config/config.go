// Package config provides the render configuration of the montage command.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dudk/montage/compositor"
	"github.com/dudk/montage/input"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config describes a layered render: a background and any number of
// layers placed on it.
type Config struct {
	// Format
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Colourspace string `yaml:"colourspace"`
	FPSNum      int    `yaml:"fps_num"`
	FPSDen      int    `yaml:"fps_den"`
	Frequency   int    `yaml:"frequency"`
	Channels    int    `yaml:"channels"`
	Frames      int    `yaml:"frames"`

	Background Source  `yaml:"background"`
	Layers     []Layer `yaml:"layers"`

	// Compositing
	Interp   string `yaml:"interp"`
	Threaded bool   `yaml:"threaded"`
	Queue    int    `yaml:"queue"`

	Output Output `yaml:"output"`
}

// Source is a colour picture with a tone.
type Source struct {
	Colour string  `yaml:"colour"`
	Shape  string  `yaml:"shape"`
	Pitch  float64 `yaml:"pitch"`
	Level  float64 `yaml:"level"`
}

// Layer is a source placed on the timeline and on the background.
type Layer struct {
	Source `yaml:",inline"`
	In     int     `yaml:"in"`
	Length int     `yaml:"length"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	W      float64 `yaml:"w"`
	H      float64 `yaml:"h"`
	Z      float64 `yaml:"z"`
	// Mix is a fixed level or a ramp from the first to the last frame.
	Mix  []float64 `yaml:"mix"`
	Mode string    `yaml:"mode"`
	// Clips replace the layer source with sources played in sequence.
	// Length is ignored then.
	Clips []Clip `yaml:"clips"`
}

// Clip is a source played for Length frames.
type Clip struct {
	Source `yaml:",inline"`
	Length int `yaml:"length"`
}

// Output names the produced files, relative to the output directory.
type Output struct {
	Audio    string `yaml:"audio"`
	BitDepth int    `yaml:"bit_depth"`
	Images   string `yaml:"images"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		Width:       720,
		Height:      576,
		Colourspace: "yuv420p",
		FPSNum:      25,
		FPSDen:      1,
		Frequency:   48000,
		Channels:    2,
		Frames:      250,

		Background: Source{
			Colour: "#000000",
			Pitch:  440,
			Level:  0,
		},

		Interp: "bilinear",
		Queue:  25,

		Output: Output{
			Audio:    "audio.wav",
			BitDepth: 16,
			Images:   "%05d.png",
		},
	}
}

// DefaultLayer returns a full screen layer of the given length.
func DefaultLayer(in, length int) Layer {
	return Layer{
		Source: Source{Colour: "#ffffff", Pitch: 440},
		In:     in,
		Length: length,
		W:      1,
		H:      1,
		Mix:    []float64{1},
		Mode:   string(compositor.Fill),
	}
}

// LoadFromFile loads configuration from a YAML file. Layer fields missing
// from the file take the values of DefaultLayer.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := Parse(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config '%s'", path)
	}
	return cfg, nil
}

// Parse decodes YAML data over cfg.
func Parse(data []byte, cfg *Config) error {
	var doc struct {
		Layers []yaml.Node `yaml:"layers"`
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	// decode again over defaults so absent fields keep them
	cfg.Layers = make([]Layer, len(doc.Layers))
	for i := range doc.Layers {
		cfg.Layers[i] = DefaultLayer(0, cfg.Frames)
		if err := doc.Layers[i].Decode(&cfg.Layers[i]); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	return nil
}

// Validate checks values that would fail the render.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return errors.Wrapf(ErrInvalid, "size %dx%d", c.Width, c.Height)
	case c.FPSNum <= 0 || c.FPSDen <= 0:
		return errors.Wrapf(ErrInvalid, "frame rate %d/%d", c.FPSNum, c.FPSDen)
	case c.Frequency <= 0 || c.Channels <= 0:
		return errors.Wrapf(ErrInvalid, "audio %d Hz %d channels", c.Frequency, c.Channels)
	case c.Frames <= 0:
		return errors.Wrapf(ErrInvalid, "frames %d", c.Frames)
	case c.Threaded && c.Queue <= 0:
		return errors.Wrapf(ErrInvalid, "queue %d", c.Queue)
	}
	switch c.Output.BitDepth {
	case 16, 24, 32:
	default:
		return errors.Wrapf(ErrInvalid, "bit depth %d", c.Output.BitDepth)
	}
	if !validShape(c.Background.Shape) {
		return errors.Wrapf(ErrInvalid, "background shape '%s'", c.Background.Shape)
	}
	for i, l := range c.Layers {
		if !validShape(l.Shape) {
			return errors.Wrapf(ErrInvalid, "layer %d shape '%s'", i, l.Shape)
		}
		if l.Length <= 0 && len(l.Clips) == 0 {
			return errors.Wrapf(ErrInvalid, "layer %d length %d", i, l.Length)
		}
		for j, clip := range l.Clips {
			if clip.Length <= 0 || clip.Colour == "" || !validShape(clip.Shape) {
				return errors.Wrapf(ErrInvalid, "layer %d clip %d length %d colour '%s' shape '%s'",
					i, j, clip.Length, clip.Colour, clip.Shape)
			}
		}
		if len(l.Mix) != 1 && len(l.Mix) != 2 {
			return errors.Wrapf(ErrInvalid, "layer %d mix %v", i, l.Mix)
		}
		switch compositor.Mode(l.Mode) {
		case compositor.Fill, compositor.Smart, compositor.Letter,
			compositor.Pillar, compositor.Native, compositor.Distort:
		default:
			return errors.Wrapf(ErrInvalid, "layer %d mode '%s'", i, l.Mode)
		}
	}
	return nil
}

func validShape(s string) bool {
	switch s {
	case "", input.Rectangle, input.Ellipse:
		return true
	}
	return false
}
