package filter

import (
	"github.com/pkg/errors"

	"github.com/dudk/montage"
)

func init() {
	montage.Register("muxer", func(string) (montage.Node, error) {
		return NewMuxer(), nil
	})
}

// Muxer combines the picture of slot 0 with the audio of slot 1.
type Muxer struct {
	*montage.Base
}

// NewMuxer returns a muxer with two slots.
func NewMuxer() *Muxer {
	m := &Muxer{Base: montage.NewBase("muxer", 2)}
	m.Bind(m)
	return m
}

// Frames returns the longer length of the two slots.
func (m *Muxer) Frames() int {
	result := 0
	for i := 0; i < m.SlotCount(); i++ {
		if n := m.Slot(i); n != nil && n.Frames() > result {
			result = n.Frames()
		}
	}
	return result
}

// Fetch returns the frame of slot 0 carrying audio of slot 1.
func (m *Muxer) Fetch() (*montage.Frame, error) {
	p := m.Position()
	video, audio := m.Slot(0), m.Slot(1)
	if video == nil || audio == nil {
		return nil, errors.Wrap(montage.ErrNotConnected, "muxer")
	}
	result, err := montage.FetchAt(video, p)
	if err != nil {
		return nil, errors.Wrap(err, "video")
	}
	sound, err := montage.FetchAt(audio, p)
	if err != nil {
		return nil, errors.Wrap(err, "audio")
	}
	result.SetAudio(sound.Audio())
	result.SetPosition(p)
	return result, nil
}
