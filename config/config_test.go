package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/montage/config"
	"github.com/dudk/montage/input"
)

const graph = `
width: 64
height: 36
frames: 50
threaded: true
queue: 10
background:
  colour: "#202020"
  level: 0.1
layers:
  - colour: "#ff0000"
    in: 10
    length: 20
    x: 0.5
    w: 0.5
    z: 1
    mix: [0, 1]
  - colour: "#0000ff"
    mode: distort
output:
  bit_depth: 24
`

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	assert.Nil(t, os.WriteFile(path, []byte(graph), 0644))

	cfg, err := config.LoadFromFile(path)
	assert.Nil(t, err)
	assert.Nil(t, cfg.Validate())
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 50, cfg.Frames)
	assert.True(t, cfg.Threaded)
	assert.Equal(t, 10, cfg.Queue)
	assert.Equal(t, "#202020", cfg.Background.Colour)
	assert.Equal(t, 440.0, cfg.Background.Pitch)
	// defaults are kept
	assert.Equal(t, 25, cfg.FPSNum)
	assert.Equal(t, "yuv420p", cfg.Colourspace)
	assert.Equal(t, "audio.wav", cfg.Output.Audio)
	assert.Equal(t, 24, cfg.Output.BitDepth)

	assert.Equal(t, 2, len(cfg.Layers))
	first := cfg.Layers[0]
	assert.Equal(t, "#ff0000", first.Colour)
	assert.Equal(t, 10, first.In)
	assert.Equal(t, 20, first.Length)
	assert.Equal(t, 0.5, first.X)
	assert.Equal(t, 1.0, first.H)
	assert.Equal(t, []float64{0, 1}, first.Mix)
	assert.Equal(t, "fill", first.Mode)

	second := cfg.Layers[1]
	assert.Equal(t, 50, second.Length)
	assert.Equal(t, []float64{1}, second.Mix)
	assert.Equal(t, "distort", second.Mode)

	_, err = config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		description string
		modify      func(*config.Config)
		valid       bool
	}{
		{description: "defaults", modify: func(*config.Config) {}, valid: true},
		{description: "size", modify: func(c *config.Config) { c.Width = 0 }},
		{description: "frame rate", modify: func(c *config.Config) { c.FPSDen = 0 }},
		{description: "audio", modify: func(c *config.Config) { c.Channels = 0 }},
		{description: "frames", modify: func(c *config.Config) { c.Frames = -1 }},
		{description: "queue", modify: func(c *config.Config) { c.Threaded, c.Queue = true, 0 }},
		{description: "bit depth", modify: func(c *config.Config) { c.Output.BitDepth = 8 }},
		{
			description: "layer",
			modify: func(c *config.Config) {
				c.Layers = append(c.Layers, config.DefaultLayer(0, 10))
			},
			valid: true,
		},
		{
			description: "layer mode",
			modify: func(c *config.Config) {
				l := config.DefaultLayer(0, 10)
				l.Mode = "stretch"
				c.Layers = append(c.Layers, l)
			},
		},
		{
			description: "layer mix",
			modify: func(c *config.Config) {
				l := config.DefaultLayer(0, 10)
				l.Mix = nil
				c.Layers = append(c.Layers, l)
			},
		},
		{
			description: "clips",
			modify: func(c *config.Config) {
				l := config.DefaultLayer(0, 0)
				l.Clips = []config.Clip{{Source: config.Source{Colour: "#ff0000"}, Length: 5}}
				c.Layers = append(c.Layers, l)
			},
			valid: true,
		},
		{
			description: "clip length",
			modify: func(c *config.Config) {
				l := config.DefaultLayer(0, 10)
				l.Clips = []config.Clip{{Source: config.Source{Colour: "#ff0000"}}}
				c.Layers = append(c.Layers, l)
			},
		},
		{
			description: "clip colour",
			modify: func(c *config.Config) {
				l := config.DefaultLayer(0, 10)
				l.Clips = []config.Clip{{Length: 5}}
				c.Layers = append(c.Layers, l)
			},
		},
		{
			description: "shape",
			modify:      func(c *config.Config) { c.Background.Shape = "star" },
		},
		{
			description: "layer shape",
			modify: func(c *config.Config) {
				l := config.DefaultLayer(0, 10)
				l.Shape = input.Ellipse
				c.Layers = append(c.Layers, l)
			},
			valid: true,
		},
		{
			description: "layer length",
			modify: func(c *config.Config) {
				c.Layers = append(c.Layers, config.DefaultLayer(0, 0))
			},
		},
	}
	for _, test := range tests {
		cfg := config.Defaults()
		test.modify(&cfg)
		err := cfg.Validate()
		if test.valid {
			assert.Nil(t, err, test.description)
			continue
		}
		assert.Equal(t, config.ErrInvalid, errors.Cause(err), test.description)
	}
}
