package input_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/montage"
	"github.com/dudk/montage/input"
)

func TestColour(t *testing.T) {
	tests := []struct {
		resource string
		pixel    []byte
		err      bool
	}{
		{resource: "", pixel: []byte{0, 0, 0}},
		{resource: "#ff0000", pixel: []byte{0xff, 0, 0}},
		{resource: "#102030", pixel: []byte{0x10, 0x20, 0x30}},
		{resource: "red", err: true},
		{resource: "#zzzzzz", err: true},
	}
	for _, test := range tests {
		n, err := montage.Open("colour:" + test.resource)
		if test.err {
			assert.NotNil(t, err, test.resource)
			continue
		}
		assert.Nil(t, err, test.resource)
		attrs := n.Attributes()
		assert.Nil(t, attrs.SetString(input.ColourspaceKey, string(montage.RGB24)))
		assert.Nil(t, attrs.SetInt(input.WidthKey, 2))
		assert.Nil(t, attrs.SetInt(input.HeightKey, 2))

		f, err := montage.FetchAt(n, 3)
		assert.Nil(t, err)
		assert.Equal(t, 3, f.Position())
		img := f.Image()
		assert.Equal(t, montage.RGB24, img.Format())
		assert.Equal(t, 2, img.Width())
		assert.Equal(t, test.pixel, img.Plane(0).Data[:3])
		assert.True(t, img.Frozen())
	}
}

func TestColourAlpha(t *testing.T) {
	c, err := input.NewColour("#10203040")
	assert.Nil(t, err)
	assert.Equal(t, 0x40, c.Attributes().IntOr(input.AKey, 0))
	assert.Nil(t, c.Attributes().SetString(input.ColourspaceKey, string(montage.RGBA)))
	f, err := montage.FetchAt(c, 0)
	assert.Nil(t, err)
	assert.True(t, f.Image().HasAlpha())
	assert.Equal(t, byte(0x40), f.Image().Plane(0).Data[3])
}

func TestColourEllipse(t *testing.T) {
	c, err := input.NewColour("#ff0000")
	assert.Nil(t, err)
	attrs := c.Attributes()
	assert.Nil(t, attrs.SetString(input.ColourspaceKey, string(montage.RGBA)))
	assert.Nil(t, attrs.SetInt(input.WidthKey, 8))
	assert.Nil(t, attrs.SetInt(input.HeightKey, 8))
	assert.Nil(t, attrs.SetString(input.ShapeKey, input.Ellipse))

	f, err := montage.FetchAt(c, 0)
	assert.Nil(t, err)
	p := f.Image().Plane(0)
	// corners are transparent
	assert.Equal(t, byte(0), p.Data[3])
	assert.Equal(t, byte(0), p.Data[7*p.Pitch+7*4+3])
	centre := p.Data[4*p.Pitch+4*4:]
	assert.Equal(t, []byte{0xff, 0, 0, 0xff}, centre[:4])

	assert.Nil(t, attrs.SetString(input.ShapeKey, "star"))
	_, err = montage.FetchAt(c, 0)
	assert.NotNil(t, err)
}

func TestColourDefaults(t *testing.T) {
	c, err := input.NewColour("#808080")
	assert.Nil(t, err)
	assert.Equal(t, 250, c.Frames())

	f, err := montage.FetchAt(c, 0)
	assert.Nil(t, err)
	img := f.Image()
	assert.Equal(t, montage.YUV420P, img.Format())
	assert.Equal(t, 720, img.Width())
	assert.Equal(t, 576, img.Height())
	num, den := img.SAR()
	assert.Equal(t, 1, num)
	assert.Equal(t, 1, den)

	// picture is shared until attributes change
	next, err := montage.FetchAt(c, 1)
	assert.Nil(t, err)
	assert.True(t, img == next.Image())
	assert.Nil(t, c.Attributes().SetInt(input.WidthKey, 360))
	next, err = montage.FetchAt(c, 1)
	assert.Nil(t, err)
	assert.False(t, img == next.Image())
	assert.Equal(t, 360, next.Image().Width())

	// inputs of the same colour share the picture
	other, err := input.NewColour("#808080")
	assert.Nil(t, err)
	f, err = montage.FetchAt(other, 0)
	assert.Nil(t, err)
	assert.True(t, img == f.Image())

	// seek is clamped to out
	assert.Nil(t, c.Attributes().SetInt(input.OutKey, 5))
	c.Seek(10, false)
	assert.Equal(t, 4, c.Position())

	assert.Nil(t, c.Attributes().SetInt(input.WidthKey, 0))
	_, err = montage.FetchAt(c, 0)
	assert.NotNil(t, err)
}

func TestTone(t *testing.T) {
	n, err := montage.Open("tone:1000")
	assert.Nil(t, err)
	tone := n.(*input.Tone)
	assert.Equal(t, 1000.0, tone.Attributes().FloatOr(input.PitchKey, 0))
	assert.False(t, tone.RequiresImage())

	level := tone.Attributes().FloatOr(input.LevelKey, 0)
	step := 2 * math.Pi * 1000 / 48000
	for _, p := range []int{0, 1, 7} {
		f, err := montage.FetchAt(tone, p)
		assert.Nil(t, err)
		assert.False(t, f.HasImage())
		a := f.Audio()
		assert.Equal(t, 48000, a.Frequency())
		assert.Equal(t, 2, a.Channels())
		assert.Equal(t, 1920, a.Samples())
		// random access gives a continuous signal
		start := float64(p * 1920)
		assert.InDelta(t, level*math.Sin(step*start), a.Data()[0][0], 1e-9)
		assert.InDelta(t, level*math.Sin(step*(start+10)), a.Data()[1][10], 1e-9)
		assert.InDelta(t, 0.04*float64(p), f.PTS(), 1e-9)
	}

	_, err = montage.Open("tone:high")
	assert.NotNil(t, err)
}

func TestToneFrameRate(t *testing.T) {
	tone := input.NewTone()
	assert.Nil(t, tone.Attributes().SetInt(input.FPSNumKey, 30000))
	assert.Nil(t, tone.Attributes().SetInt(input.FPSDenKey, 1001))
	sizes := []int{1601, 1602, 1601}
	for p, size := range sizes {
		f, err := montage.FetchAt(tone, p)
		assert.Nil(t, err)
		assert.Equal(t, size, f.Audio().Samples())
	}
}

func TestSilence(t *testing.T) {
	n, err := montage.Open("silence:")
	assert.Nil(t, err)
	f, err := montage.FetchAt(n, 2)
	assert.Nil(t, err)
	for _, channel := range f.Audio().Data() {
		for _, v := range channel {
			assert.Equal(t, 0.0, v)
		}
	}

	// past the end
	f, err = montage.FetchAt(n, 300)
	assert.Nil(t, err)
	assert.Equal(t, 249, f.Position())
	assert.True(t, f.HasAudio())
}

func TestPusher(t *testing.T) {
	p := input.NewPusher()
	var _ montage.Store = p

	f, err := montage.FetchAt(p, 3)
	assert.Nil(t, err)
	assert.True(t, f.Empty())
	assert.Equal(t, 3, f.Position())

	first, second := montage.NewFrame(100), montage.NewFrame(200)
	assert.Nil(t, first.Attributes().SetInt("id", 1))
	assert.Nil(t, p.Push(first))
	assert.Nil(t, p.Push(second))
	assert.Nil(t, p.Push(nil))
	assert.Equal(t, 2, p.Len())

	f, err = montage.FetchAt(p, 7)
	assert.Nil(t, err)
	assert.Equal(t, 7, f.Position())
	assert.Equal(t, 1, f.Attributes().IntOr("id", 0))
	assert.Equal(t, 1, p.Len())

	flushed, err := p.Flush()
	assert.Nil(t, err)
	assert.Nil(t, flushed)

	assert.Nil(t, p.Complete())
	err = p.Push(montage.NewFrame(0))
	assert.Equal(t, input.ErrCompleted, errors.Cause(err))

	// queued frames are still served
	f, err = montage.FetchAt(p, 8)
	assert.Nil(t, err)
	assert.Equal(t, 8, f.Position())
	assert.Equal(t, 0, p.Len())
}

func TestPusherLength(t *testing.T) {
	p := input.NewPusher()
	assert.Equal(t, 0, p.Frames())
	assert.Nil(t, p.Attributes().SetInt(input.LengthKey, 4))
	assert.Equal(t, 4, p.Frames())
	p.Seek(9, false)
	assert.Equal(t, 3, p.Position())
}
