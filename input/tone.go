package input

import (
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/signal"
)

// Attribute keys of tone.
const (
	FrequencyKey = "frequency"
	ChannelsKey  = "channels"
	PitchKey     = "pitch"
	LevelKey     = "level"
)

const (
	defaultFrequency = 48000
	defaultChannels  = 2
	defaultPitch     = 440
	defaultLevel     = 0.5
)

func init() {
	montage.Register("tone", func(resource string) (montage.Node, error) {
		t := NewTone()
		if resource != "" {
			pitch, err := strconv.ParseFloat(resource, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "tone %q", resource)
			}
			t.Attributes().SetFloat(PitchKey, pitch)
		}
		return t, nil
	})
	montage.Register("silence", func(string) (montage.Node, error) {
		return NewSilence(), nil
	})
}

// Tone generates a sine wave. Samples are computed from the absolute sample
// offset of the frame, so random access yields a continuous signal.
type Tone struct {
	*montage.Base
}

// NewTone returns a tone input.
func NewTone() *Tone {
	return newTone("tone", defaultLevel)
}

// NewSilence returns a tone with zero level.
func NewSilence() *Tone {
	return newTone("silence", 0)
}

func newTone(uri string, level float64) *Tone {
	t := &Tone{Base: montage.NewBase(uri, 0)}
	t.Bind(t)
	t.Attributes().
		Declare(FrequencyKey, attr.IntValue(defaultFrequency)).
		Declare(ChannelsKey, attr.IntValue(defaultChannels)).
		Declare(PitchKey, attr.FloatValue(defaultPitch)).
		Declare(LevelKey, attr.FloatValue(level)).
		Declare(OutKey, attr.IntValue(defaultOut)).
		Declare(FPSNumKey, attr.IntValue(25)).
		Declare(FPSDenKey, attr.IntValue(1))
	return t
}

// Frames returns the out attribute.
func (t *Tone) Frames() int {
	return t.Attributes().IntOr(OutKey, defaultOut)
}

// Fetch returns a frame with audio only.
func (t *Tone) Fetch() (*montage.Frame, error) {
	p := t.Position()
	f := montage.NewFrame(p)
	if p >= t.Frames() {
		return f, nil
	}
	attrs := t.Attributes()
	frequency := attrs.IntOr(FrequencyKey, defaultFrequency)
	channels := attrs.IntOr(ChannelsKey, defaultChannels)
	num, den := attrs.IntOr(FPSNumKey, 25), attrs.IntOr(FPSDenKey, 1)
	if frequency <= 0 || channels <= 0 {
		return nil, errors.Errorf("%s: invalid format %d Hz %d channels", t.URI(), frequency, channels)
	}
	start := signal.FrameOffset(p, frequency, num, den)
	samples := int(signal.FrameOffset(p+1, frequency, num, den) - start)

	level := attrs.FloatOr(LevelKey, 0)
	data := signal.EmptyFloat64(channels, samples)
	if level != 0 {
		step := 2 * math.Pi * attrs.FloatOr(PitchKey, defaultPitch) / float64(frequency)
		for i := 0; i < samples; i++ {
			v := level * math.Sin(step*float64(start+int64(i)))
			for c := range data {
				data[c][i] = v
			}
		}
	}
	a := montage.AudioFrom(montage.PCM16, frequency, data)
	a.Freeze()
	f.SetAudio(a)
	f.SetFPS(num, den)
	f.SetPTS(float64(p) * float64(den) / float64(num))
	f.SetDuration(float64(den) / float64(num))
	return f, nil
}

// RequiresImage reports false: tones carry no picture.
func (t *Tone) RequiresImage() bool {
	return false
}
