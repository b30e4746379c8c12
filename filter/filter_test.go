package filter_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/montage"
	"github.com/dudk/montage/filter"
	"github.com/dudk/montage/mock"
)

func TestOffset(t *testing.T) {
	tests := []struct {
		in       int
		position int
		empty    bool
		value    byte
	}{
		{in: 3, position: 0, empty: true},
		{in: 3, position: 2, empty: true},
		{in: 3, position: 3, value: 0},
		{in: 3, position: 6, value: 3},
		{in: 0, position: 2, value: 2},
		{in: -2, position: 0, value: 2},
	}
	for _, test := range tests {
		src := mock.New(4)
		o := filter.NewOffset(test.in)
		assert.Nil(t, o.Connect(src, 0))
		assert.Nil(t, o.Init())
		assert.Equal(t, 4+test.in, o.Frames())

		f, err := montage.FetchAt(o, test.position)
		assert.Nil(t, err)
		assert.Equal(t, test.position, f.Position())
		if test.empty {
			assert.True(t, f.Empty())
			assert.Equal(t, 0, src.TotalFetches())
			continue
		}
		assert.Equal(t, test.value, f.Image().Plane(0).Data[0])
	}
}

func TestOffsetFactory(t *testing.T) {
	n, err := montage.Open("offset:5")
	assert.Nil(t, err)
	assert.Equal(t, 5, n.(*filter.Offset).In())

	_, err = montage.Open("offset:five")
	assert.NotNil(t, err)

	_, err = n.Fetch()
	assert.Equal(t, montage.ErrNotConnected, errors.Cause(err))
}

func TestMuxer(t *testing.T) {
	video := mock.New(5, mock.WithAudio(0, 0), mock.WithValue(7))
	audio := mock.New(8, mock.WithImage(montage.RGB24, 0, 0), mock.WithLevel(0.3))
	m := filter.NewMuxer()
	assert.Nil(t, m.Connect(video, 0))
	assert.Nil(t, m.Connect(audio, 1))
	assert.Nil(t, m.Init())
	assert.Equal(t, 8, m.Frames())

	f, err := montage.FetchAt(m, 2)
	assert.Nil(t, err)
	assert.Equal(t, 2, f.Position())
	assert.Equal(t, byte(9), f.Image().Plane(0).Data[0])
	assert.Equal(t, 0.3, f.Audio().Data()[0][0])

	// video is over, audio goes on
	f, err = montage.FetchAt(m, 6)
	assert.Nil(t, err)
	assert.False(t, f.HasImage())
	assert.True(t, f.HasAudio())

	err = filter.NewMuxer().Connect(video, 2)
	assert.Equal(t, montage.ErrSlotOutOfRange, errors.Cause(err))
}

func TestLerp(t *testing.T) {
	src := mock.New(5)
	l := filter.NewLerp()
	assert.Nil(t, l.Connect(src, 0))
	assert.Nil(t, l.Attributes().SetFloat("@x", 0.25))
	assert.Nil(t, l.Attributes().SetString("@mode", "distort"))
	assert.Nil(t, l.Attributes().SetNumbers("@mix", 0, 1))
	assert.Nil(t, l.Attributes().SetInt("untouched", 1))

	tests := []struct {
		position int
		mix      float64
	}{
		{position: 0, mix: 0},
		{position: 2, mix: 0.5},
		{position: 4, mix: 1},
	}
	for _, test := range tests {
		f, err := montage.FetchAt(l, test.position)
		assert.Nil(t, err)
		attrs := f.Attributes()
		assert.Equal(t, 0.25, attrs.FloatOr("x", 0))
		assert.Equal(t, "distort", attrs.StringOr("mode", ""))
		assert.InDelta(t, test.mix, attrs.FloatOr("mix", -1), 1e-9)
		assert.False(t, attrs.Valid("untouched"))
	}
}
