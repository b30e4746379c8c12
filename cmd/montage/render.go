package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/dudk/montage"
	"github.com/dudk/montage/config"
	"github.com/dudk/montage/log"
	"github.com/dudk/montage/signal"
	"github.com/dudk/montage/store"
	"github.com/dudk/montage/wav"
)

type renderCommand struct {
	config  string
	output  string
	frames  int
	debug   bool
	noImage bool
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render a composition to a wav file and picture files"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVarP(&cmd.config, "config", "c", "", "YAML composition, defaults are used when empty")
	fs.StringVarP(&cmd.output, "output", "o", ".", "Output directory")
	fs.IntVarP(&cmd.frames, "frames", "n", 0, "Override number of rendered frames")
	fs.BoolVar(&cmd.noImage, "no-images", false, "Don't write picture files")
	fs.BoolVarP(&cmd.debug, "debug", "d", false, "Log at debug level")
}

func (cmd *renderCommand) Run(out io.Writer) error {
	cfg := config.Defaults()
	if cmd.config != "" {
		var err error
		if cfg, err = config.LoadFromFile(cmd.config); err != nil {
			return err
		}
	}
	if cmd.frames > 0 {
		cfg.Frames = cmd.frames
	}
	if err := os.MkdirAll(cmd.output, 0755); err != nil {
		return errors.Wrap(err, "output")
	}

	l := log.GetLogger()
	if cmd.debug {
		l.SetLevel(logrus.DebugLevel)
	}
	g, err := build(cfg, l)
	if err != nil {
		return err
	}
	defer g.close()

	audio, err := wav.NewStore(filepath.Join(cmd.output, cfg.Output.Audio), signal.BitDepth(cfg.Output.BitDepth))
	if err != nil {
		return err
	}
	tee := store.NewTee(audio)
	var images *store.Images
	if !cmd.noImage && cfg.Output.Images != "" {
		if images, err = store.NewImages(cmd.output, cfg.Output.Images); err != nil {
			return err
		}
		tee.Add(images)
	}

	start := time.Now()
	if err := render(g.root, cfg.Frames, tee); err != nil {
		return err
	}

	ok := color.New(color.FgGreen)
	ok.Fprintf(out, "rendered %d frames in %v\n", cfg.Frames, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "  audio   %s (%d samples)\n", filepath.Join(cmd.output, cfg.Output.Audio), audio.Samples())
	if images != nil {
		fmt.Fprintf(out, "  images  %d files\n", len(images.Written()))
	}
	fmt.Fprintf(out, "  blends  %d\n", g.compositor.Blends())
	return nil
}

// render pulls every position of n and pushes the frames to s.
func render(n montage.Node, frames int, s montage.Store) error {
	for p := 0; p < frames; p++ {
		f, err := montage.FetchAt(n, p)
		if err != nil {
			s.Complete()
			return errors.Wrapf(err, "frame %d", p)
		}
		if err := s.Push(f); err != nil {
			s.Complete()
			return err
		}
	}
	return s.Complete()
}
