package main

import (
	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/compositor"
	"github.com/dudk/montage/config"
	"github.com/dudk/montage/filter"
	"github.com/dudk/montage/input"
	"github.com/dudk/montage/log"
	"github.com/dudk/montage/threader"
	"github.com/dudk/montage/track"
)

// graph is a built composition.
type graph struct {
	root       montage.Node
	compositor *compositor.Compositor
	threader   *threader.Threader
}

// close stops the worker of the threader if there is one.
func (g *graph) close() error {
	if g.threader == nil {
		return nil
	}
	return g.threader.Close()
}

// build creates the composition: background and layers as colour and tone
// pairs, layers placed on the timeline with offset and on the picture with
// lerp, all merged by a compositor.
func build(cfg config.Config, l log.Logger) (*graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := compositor.New(compositor.WithLogger(l), compositor.WithSlots(len(cfg.Layers)+1))
	if err := c.Attributes().SetString(compositor.InterpKey, cfg.Interp); err != nil {
		return nil, err
	}

	background, err := source(cfg, cfg.Background, cfg.Frames)
	if err != nil {
		return nil, errors.Wrap(err, "background")
	}
	if err := c.Connect(background, 0); err != nil {
		return nil, err
	}
	for i, layer := range cfg.Layers {
		n, err := place(cfg, layer)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if err := c.Connect(n, i+1); err != nil {
			return nil, err
		}
	}
	if err := c.Init(); err != nil {
		return nil, err
	}

	g := &graph{root: c, compositor: c}
	if !cfg.Threaded {
		return g, nil
	}
	t := threader.New(threader.WithLogger(l), threader.WithQueue(cfg.Queue))
	if err := t.Connect(c, 0); err != nil {
		return nil, err
	}
	if err := t.Init(); err != nil {
		return nil, err
	}
	if err := t.Start(); err != nil {
		return nil, err
	}
	g.root, g.threader = t, t
	return g, nil
}

// source returns a colour picture muxed with a tone.
func source(cfg config.Config, s config.Source, frames int) (montage.Node, error) {
	colour, err := input.NewColour(s.Colour)
	if err != nil {
		return nil, err
	}
	colourspace, shape := cfg.Colourspace, input.Rectangle
	if s.Shape != "" {
		shape = s.Shape
	}
	if shape != input.Rectangle {
		// keep the transparent surroundings
		colourspace = string(montage.RGBA)
	}
	if err := set(colour.Attributes(), map[string]attr.Value{
		input.WidthKey:       attr.IntValue(cfg.Width),
		input.HeightKey:      attr.IntValue(cfg.Height),
		input.ColourspaceKey: attr.StringValue(colourspace),
		input.ShapeKey:       attr.StringValue(shape),
		input.OutKey:         attr.IntValue(frames),
		input.FPSNumKey:      attr.IntValue(cfg.FPSNum),
		input.FPSDenKey:      attr.IntValue(cfg.FPSDen),
	}); err != nil {
		return nil, err
	}
	tone := input.NewTone()
	if err := set(tone.Attributes(), map[string]attr.Value{
		input.FrequencyKey: attr.IntValue(cfg.Frequency),
		input.ChannelsKey:  attr.IntValue(cfg.Channels),
		input.PitchKey:     attr.FloatValue(s.Pitch),
		input.LevelKey:     attr.FloatValue(s.Level),
		input.OutKey:       attr.IntValue(frames),
		input.FPSNumKey:    attr.IntValue(cfg.FPSNum),
		input.FPSDenKey:    attr.IntValue(cfg.FPSDen),
	}); err != nil {
		return nil, err
	}
	m := filter.NewMuxer()
	if err := m.Connect(colour, 0); err != nil {
		return nil, err
	}
	if err := m.Connect(tone, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// sequence returns a track playing the clips one after another.
func sequence(cfg config.Config, clips []config.Clip) (montage.Node, error) {
	t := track.New()
	at := 0
	for i, c := range clips {
		src, err := source(cfg, c.Source, c.Length)
		if err != nil {
			return nil, errors.Wrapf(err, "clip %d", i)
		}
		if err := t.AddClip(at, src, 0, c.Length); err != nil {
			return nil, err
		}
		at += c.Length
	}
	return t, nil
}

// place returns the layer source stamped with its layout and shifted to its
// in point.
func place(cfg config.Config, layer config.Layer) (montage.Node, error) {
	var (
		src montage.Node
		err error
	)
	if len(layer.Clips) > 0 {
		src, err = sequence(cfg, layer.Clips)
	} else {
		src, err = source(cfg, layer.Source, layer.Length)
	}
	if err != nil {
		return nil, err
	}
	lerp := filter.NewLerp()
	if err := lerp.Connect(src, 0); err != nil {
		return nil, err
	}
	p := filter.Prefix
	if err := set(lerp.Attributes(), map[string]attr.Value{
		p + compositor.XKey:    attr.FloatValue(layer.X),
		p + compositor.YKey:    attr.FloatValue(layer.Y),
		p + compositor.WKey:    attr.FloatValue(layer.W),
		p + compositor.HKey:    attr.FloatValue(layer.H),
		p + compositor.ZKey:    attr.FloatValue(layer.Z),
		p + compositor.MixKey:  mix(layer.Mix),
		p + compositor.ModeKey: attr.StringValue(layer.Mode),
	}); err != nil {
		return nil, err
	}
	offset := filter.NewOffset(layer.In)
	if err := offset.Connect(lerp, 0); err != nil {
		return nil, err
	}
	return offset, nil
}

func mix(levels []float64) attr.Value {
	if len(levels) == 1 {
		return attr.FloatValue(levels[0])
	}
	return attr.NumbersValue(levels...)
}

func set(s *attr.Store, values map[string]attr.Value) error {
	for k, v := range values {
		if err := s.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
